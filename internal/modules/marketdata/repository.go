// Package marketdata provides read-only access to the daily grain price time
// series and the reference tables (crops, classes, regions, towns, elevators).
package marketdata

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ericscottllc/triggergrain/internal/domain"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
)

// Accessor is the market-data contract the evaluation engine consumes.
// Fetch applies every configured scope filter conjunctively and returns rows
// ordered by date. An empty window is an empty slice, never an error.
type Accessor interface {
	Fetch(scope domain.Scope, start, end time.Time) ([]domain.PricePoint, error)
	LatestPrice(scope domain.Scope) (*domain.PricePoint, error)
}

// Repository implements Accessor over market.db
type Repository struct {
	db  *sql.DB // market.db
	log zerolog.Logger
}

// NewRepository creates a new market data repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "marketdata").Logger(),
	}
}

// scopeFilter builds the conjunctive WHERE fragment for a scenario scope
func scopeFilter(scope domain.Scope) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if scope.CropID != nil {
		clauses = append(clauses, "crop_id = ?")
		args = append(args, *scope.CropID)
	}
	if scope.ClassID != nil {
		clauses = append(clauses, "class_id = ?")
		args = append(args, *scope.ClassID)
	}
	if scope.RegionID != nil {
		clauses = append(clauses, "region_id = ?")
		args = append(args, *scope.RegionID)
	}
	if scope.TownID != nil {
		clauses = append(clauses, "town_id = ?")
		args = append(args, *scope.TownID)
	}
	if scope.ElevatorID != nil {
		clauses = append(clauses, "elevator_id = ?")
		args = append(args, *scope.ElevatorID)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// Fetch returns the ordered price series for a scope within [start, end]
func (r *Repository) Fetch(scope domain.Scope, start, end time.Time) ([]domain.PricePoint, error) {
	query := `
		SELECT entry_date, cash_price, futures_price, basis
		FROM grain_entries
		WHERE entry_date >= ? AND entry_date <= ?`
	args := []interface{}{start.Unix(), end.Unix()}

	filter, filterArgs := scopeFilter(scope)
	query += filter
	args = append(args, filterArgs...)
	query += " ORDER BY entry_date ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grain entries: %w", err)
	}
	defer rows.Close()

	points := []domain.PricePoint{}
	for rows.Next() {
		var p domain.PricePoint
		var entryDate int64
		if err := rows.Scan(&entryDate, &p.CashPrice, &p.FuturesPrice, &p.Basis); err != nil {
			return nil, fmt.Errorf("failed to scan grain entry: %w", err)
		}
		p.Date = time.Unix(entryDate, 0).UTC()
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grain entries: %w", err)
	}

	return points, nil
}

// LatestPrice returns the most recent observation for a scope, or nil when
// no rows match.
func (r *Repository) LatestPrice(scope domain.Scope) (*domain.PricePoint, error) {
	query := `
		SELECT entry_date, cash_price, futures_price, basis
		FROM grain_entries
		WHERE 1=1`
	var args []interface{}

	filter, filterArgs := scopeFilter(scope)
	query += filter
	args = append(args, filterArgs...)
	query += " ORDER BY entry_date DESC LIMIT 1"

	var p domain.PricePoint
	var entryDate int64
	err := r.db.QueryRow(query, args...).Scan(&entryDate, &p.CashPrice, &p.FuturesPrice, &p.Basis)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest grain entry: %w", err)
	}

	p.Date = time.Unix(entryDate, 0).UTC()
	return &p, nil
}

// GetEntry returns the price observation recorded under a grain entry id,
// or domain.ErrNotFound.
func (r *Repository) GetEntry(id string) (*domain.PricePoint, error) {
	var p domain.PricePoint
	var entryDate int64
	err := r.db.QueryRow(`
		SELECT entry_date, cash_price, futures_price, basis
		FROM grain_entries
		WHERE id = ?`, id).Scan(&entryDate, &p.CashPrice, &p.FuturesPrice, &p.Basis)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get grain entry %s: %w", id, err)
	}

	p.Date = time.Unix(entryDate, 0).UTC()
	return &p, nil
}

// ReferenceItem is a named reference-data row used by scope pickers
type ReferenceItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// referenceTables maps the public reference kinds to their tables.
// Keys are the only values accepted by ListReference.
var referenceTables = map[string]string{
	"crops":     "crops",
	"classes":   "crop_classes",
	"regions":   "regions",
	"towns":     "towns",
	"elevators": "elevators",
}

// ListReference returns all rows of one reference kind ordered by name
func (r *Repository) ListReference(kind string) ([]ReferenceItem, error) {
	table, ok := referenceTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown reference kind %q", kind)
	}

	rows, err := r.db.Query(`SELECT id, name FROM ` + table + ` ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	items := []ReferenceItem{}
	for rows.Next() {
		var item ReferenceItem
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}

	return items, nil
}
