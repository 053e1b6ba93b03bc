package scenario

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository handles scenario database operations
type Repository struct {
	db  *sql.DB // scenario.db
	log zerolog.Logger
}

// NewRepository creates a new scenario repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "scenario").Logger(),
	}
}

const scenarioColumns = `id, name, crop_id, class_id, region_id, town_id, elevator_id,
	start_date, end_date, production_estimate, status, description, risk_tolerance,
	market_assumptions, notes, created_by, created_at, updated_at`

// Create inserts a new scenario in planning status
func (r *Repository) Create(s domain.Scenario) (*domain.Scenario, error) {
	s.ID = uuid.New().String()
	s.Status = domain.StatusPlanning
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO scenarios (`+scenarioColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.Name,
		s.Scope.CropID,
		s.Scope.ClassID,
		s.Scope.RegionID,
		s.Scope.TownID,
		s.Scope.ElevatorID,
		s.StartDate.Unix(),
		s.EndDate.Unix(),
		s.ProductionEstimate,
		string(s.Status),
		s.Description,
		s.RiskTolerance,
		s.MarketAssumptions,
		s.Notes,
		s.CreatedBy,
		s.CreatedAt.Unix(),
		s.UpdatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert scenario: %w", err)
	}

	r.log.Info().Str("scenario_id", s.ID).Str("name", s.Name).Msg("Scenario created")
	return &s, nil
}

// GetByID returns a scenario, or domain.ErrNotFound
func (r *Repository) GetByID(id string) (*domain.Scenario, error) {
	row := r.db.QueryRow(`SELECT `+scenarioColumns+` FROM scenarios WHERE id = ?`, id)

	s, err := scanScenario(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get scenario %s: %w", id, err)
	}
	return s, nil
}

// List returns scenarios, optionally filtered by status, newest first
func (r *Repository) List(status *domain.ScenarioStatus) ([]domain.Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios`
	var args []interface{}
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []domain.Scenario
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		scenarios = append(scenarios, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scenarios: %w", err)
	}

	return scenarios, nil
}

// UpdateStatus sets a scenario's status unconditionally.
// Transition legality is the service's responsibility.
func (r *Repository) UpdateStatus(id string, status domain.ScenarioStatus) error {
	result, err := r.db.Exec(`UPDATE scenarios SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update scenario status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check status update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// UpdateStatusIf atomically sets status only when the current status matches
// expected. Returns domain.ErrIllegalTransition when the row exists but the
// conditional update did not apply, so two concurrent finalizers cannot both
// succeed.
func (r *Repository) UpdateStatusIf(tx *sql.Tx, id string, expected, next domain.ScenarioStatus) error {
	result, err := tx.Exec(`
		UPDATE scenarios
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(next), time.Now().UTC().Unix(), id, string(expected))
	if err != nil {
		return fmt.Errorf("failed conditional status update: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check conditional update result: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM scenarios WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check scenario existence: %w", err)
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrIllegalTransition
	}

	return nil
}

// UpdateDetails edits a scenario's mutable narrative and planning fields.
// Status and created_by never change here.
func (r *Repository) UpdateDetails(s domain.Scenario) error {
	result, err := r.db.Exec(`
		UPDATE scenarios
		SET name = ?, crop_id = ?, class_id = ?, region_id = ?, town_id = ?, elevator_id = ?,
			start_date = ?, end_date = ?, production_estimate = ?, description = ?,
			risk_tolerance = ?, market_assumptions = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		s.Name,
		s.Scope.CropID,
		s.Scope.ClassID,
		s.Scope.RegionID,
		s.Scope.TownID,
		s.Scope.ElevatorID,
		s.StartDate.Unix(),
		s.EndDate.Unix(),
		s.ProductionEstimate,
		s.Description,
		s.RiskTolerance,
		s.MarketAssumptions,
		s.Notes,
		time.Now().UTC().Unix(),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update scenario %s: %w", s.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Delete removes a scenario. Foreign keys cascade to sales, recommendations,
// and evaluations.
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM scenarios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scenario %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	r.log.Info().Str("scenario_id", id).Msg("Scenario deleted")
	return nil
}

// Conn exposes the underlying connection for transactional callers
func (r *Repository) Conn() *sql.DB {
	return r.db
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanScenario(row scanner) (*domain.Scenario, error) {
	var s domain.Scenario
	var cropID, classID, regionID, townID, elevatorID sql.NullString
	var startDate, endDate, createdAt, updatedAt int64
	var status string

	err := row.Scan(
		&s.ID,
		&s.Name,
		&cropID,
		&classID,
		&regionID,
		&townID,
		&elevatorID,
		&startDate,
		&endDate,
		&s.ProductionEstimate,
		&status,
		&s.Description,
		&s.RiskTolerance,
		&s.MarketAssumptions,
		&s.Notes,
		&s.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = domain.ScenarioStatus(status)
	s.StartDate = time.Unix(startDate, 0).UTC()
	s.EndDate = time.Unix(endDate, 0).UTC()
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if cropID.Valid {
		s.Scope.CropID = &cropID.String
	}
	if classID.Valid {
		s.Scope.ClassID = &classID.String
	}
	if regionID.Valid {
		s.Scope.RegionID = &regionID.String
	}
	if townID.Valid {
		s.Scope.TownID = &townID.String
	}
	if elevatorID.Valid {
		s.Scope.ElevatorID = &elevatorID.String
	}

	return &s, nil
}
