package timeline

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RecommendationRepository handles recommendation point database operations
type RecommendationRepository struct {
	db  *sql.DB // scenario.db
	log zerolog.Logger
}

// NewRecommendationRepository creates a new recommendation repository
func NewRecommendationRepository(db *sql.DB, log zerolog.Logger) *RecommendationRepository {
	return &RecommendationRepository{
		db:  db,
		log: log.With().Str("repository", "recommendation").Logger(),
	}
}

const recommendationColumns = `id, scenario_id, target_date, target_percentage_sold,
	notes, created_by, created_at`

// Create inserts a new recommendation point
func (r *RecommendationRepository) Create(point domain.RecommendationPoint) (*domain.RecommendationPoint, error) {
	point.ID = uuid.New().String()
	point.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO recommendation_points (`+recommendationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		point.ID,
		point.ScenarioID,
		point.TargetDate.Unix(),
		point.TargetPercentageSold,
		point.Notes,
		point.CreatedBy,
		point.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert recommendation point: %w", err)
	}

	r.log.Debug().
		Str("recommendation_id", point.ID).
		Str("scenario_id", point.ScenarioID).
		Float64("target", point.TargetPercentageSold).
		Msg("Recommendation point recorded")
	return &point, nil
}

// GetByScenario returns all recommendation points for a scenario ordered by target date
func (r *RecommendationRepository) GetByScenario(scenarioID string) ([]domain.RecommendationPoint, error) {
	rows, err := r.db.Query(`
		SELECT `+recommendationColumns+`
		FROM recommendation_points
		WHERE scenario_id = ?
		ORDER BY target_date ASC`,
		scenarioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendation points: %w", err)
	}
	defer rows.Close()

	var points []domain.RecommendationPoint
	for rows.Next() {
		var p domain.RecommendationPoint
		var targetDate, createdAt int64
		if err := rows.Scan(&p.ID, &p.ScenarioID, &targetDate, &p.TargetPercentageSold,
			&p.Notes, &p.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation point: %w", err)
		}
		p.TargetDate = time.Unix(targetDate, 0).UTC()
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recommendation points: %w", err)
	}

	return points, nil
}

// GetByID returns a single recommendation point, or domain.ErrNotFound
func (r *RecommendationRepository) GetByID(id string) (*domain.RecommendationPoint, error) {
	var p domain.RecommendationPoint
	var targetDate, createdAt int64

	err := r.db.QueryRow(`SELECT `+recommendationColumns+` FROM recommendation_points WHERE id = ?`, id).
		Scan(&p.ID, &p.ScenarioID, &targetDate, &p.TargetPercentageSold, &p.Notes, &p.CreatedBy, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recommendation point %s: %w", id, err)
	}

	p.TargetDate = time.Unix(targetDate, 0).UTC()
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

// Delete removes a recommendation point
func (r *RecommendationRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM recommendation_points WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recommendation point %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	r.log.Debug().Str("recommendation_id", id).Msg("Recommendation point deleted")
	return nil
}
