package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced across the public operation boundary.
var (
	// ErrNotFound - the referenced scenario/sale/recommendation does not exist
	ErrNotFound = errors.New("not found")
	// ErrIllegalTransition - the requested status change is not permitted
	ErrIllegalTransition = errors.New("illegal status transition")
)

// DataAccessError wraps a repository or market-data failure. The core propagates
// these unchanged; retries belong to the data-access layer, not here.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access failed during %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// NewDataAccessError wraps err with the operation that failed
func NewDataAccessError(op string, err error) *DataAccessError {
	return &DataAccessError{Op: op, Err: err}
}

// Severity distinguishes blocking validation errors from advisory warnings
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationEntry is a single field-level validation finding
type ValidationEntry struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ValidationResult collects all findings from one validation pass.
// Callers enumerate every violation in one pass, not just the first.
type ValidationResult struct {
	Entries []ValidationEntry `json:"entries"`
}

// AddError appends a blocking finding for field
func (r *ValidationResult) AddError(field, message string) {
	r.Entries = append(r.Entries, ValidationEntry{Field: field, Message: message, Severity: SeverityError})
}

// AddWarning appends an advisory finding for field
func (r *ValidationResult) AddWarning(field, message string) {
	r.Entries = append(r.Entries, ValidationEntry{Field: field, Message: message, Severity: SeverityWarning})
}

// IsValid reports whether the result contains no error-severity entries.
// Warnings do not block.
func (r ValidationResult) IsValid() bool {
	for _, e := range r.Entries {
		if e.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors returns only the error-severity entries
func (r ValidationResult) Errors() []ValidationEntry {
	var out []ValidationEntry
	for _, e := range r.Entries {
		if e.Severity == SeverityError {
			out = append(out, e)
		}
	}
	return out
}

// Warnings returns only the warning-severity entries
func (r ValidationResult) Warnings() []ValidationEntry {
	var out []ValidationEntry
	for _, e := range r.Entries {
		if e.Severity == SeverityWarning {
			out = append(out, e)
		}
	}
	return out
}

// ValidationFailedError carries a failed ValidationResult across the service
// boundary so handlers can render field-level messages.
type ValidationFailedError struct {
	Result ValidationResult
}

func (e *ValidationFailedError) Error() string {
	n := len(e.Result.Errors())
	return fmt.Sprintf("validation failed with %d error(s)", n)
}
