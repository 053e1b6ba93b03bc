// Package evaluation implements the performance-evaluation engine: scoring a
// scenario's actual selling behavior against the market window and the
// recommendation timeline, and persisting immutable evaluation records.
package evaluation

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository handles evaluation database operations. Evaluations are an
// append-only audit trail: there is no Update and no single-row Delete.
type Repository struct {
	db  *sql.DB // scenario.db
	log zerolog.Logger
}

// NewRepository creates a new evaluation repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "evaluation").Logger(),
	}
}

const evaluationColumns = `id, scenario_id, evaluation_date, is_final, percentage_sold,
	total_volume_sold, average_price_achieved, market_average_price, market_high_price,
	market_low_price, performance_score, variance_from_recommendation, opportunities_missed,
	total_revenue, unrealized_value, evaluation_notes, market_snapshot, created_by, created_at`

// insertTx inserts an evaluation inside an existing transaction so the final
// transition and the record commit or roll back together.
func (r *Repository) insertTx(tx *sql.Tx, e *domain.Evaluation) error {
	_, err := tx.Exec(`
		INSERT INTO evaluations (`+evaluationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.ScenarioID,
		e.EvaluationDate.Unix(),
		boolToInt(e.IsFinal),
		e.PercentageSold,
		e.TotalVolumeSold,
		e.AveragePriceAchieved,
		e.MarketAveragePrice,
		e.MarketHighPrice,
		e.MarketLowPrice,
		e.PerformanceScore,
		e.VarianceFromRecommendation,
		e.OpportunitiesMissed,
		e.TotalRevenue,
		e.UnrealizedValue,
		e.EvaluationNotes,
		e.MarketSnapshot,
		e.CreatedBy,
		e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}
	return nil
}

// newID stamps identity and creation time onto an evaluation before insert
func (r *Repository) newID(e *domain.Evaluation) {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()
}

// GetByScenario returns the evaluation time series for a scenario, newest first
func (r *Repository) GetByScenario(scenarioID string) ([]domain.Evaluation, error) {
	rows, err := r.db.Query(`
		SELECT `+evaluationColumns+`
		FROM evaluations
		WHERE scenario_id = ?
		ORDER BY evaluation_date DESC, created_at DESC`,
		scenarioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var evaluations []domain.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evaluations = append(evaluations, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evaluations: %w", err)
	}

	return evaluations, nil
}

// LatestByScenario returns the most recent evaluation, or nil when none exist
func (r *Repository) LatestByScenario(scenarioID string) (*domain.Evaluation, error) {
	row := r.db.QueryRow(`
		SELECT `+evaluationColumns+`
		FROM evaluations
		WHERE scenario_id = ?
		ORDER BY evaluation_date DESC, created_at DESC
		LIMIT 1`,
		scenarioID,
	)

	e, err := scanEvaluation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest evaluation: %w", err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvaluation(row scanner) (*domain.Evaluation, error) {
	var e domain.Evaluation
	var evaluationDate, createdAt int64
	var isFinal int
	var snapshot []byte

	err := row.Scan(
		&e.ID,
		&e.ScenarioID,
		&evaluationDate,
		&isFinal,
		&e.PercentageSold,
		&e.TotalVolumeSold,
		&e.AveragePriceAchieved,
		&e.MarketAveragePrice,
		&e.MarketHighPrice,
		&e.MarketLowPrice,
		&e.PerformanceScore,
		&e.VarianceFromRecommendation,
		&e.OpportunitiesMissed,
		&e.TotalRevenue,
		&e.UnrealizedValue,
		&e.EvaluationNotes,
		&snapshot,
		&e.CreatedBy,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	e.EvaluationDate = time.Unix(evaluationDate, 0).UTC()
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	e.IsFinal = isFinal != 0
	e.MarketSnapshot = snapshot

	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
