package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/ericscottllc/triggergrain/internal/domain"
)

// ScenarioLister returns scenarios filtered by status
type ScenarioLister interface {
	List(status *domain.ScenarioStatus) ([]domain.Scenario, error)
}

// Evaluator runs a single scenario evaluation
type Evaluator interface {
	Evaluate(scenarioID string, isFinal bool, actorID string) (*domain.Evaluation, error)
}

// AutoEvaluateJob runs interim evaluations for every active scenario so
// performance history accumulates without user action
type AutoEvaluateJob struct {
	scenarios ScenarioLister
	engine    Evaluator
	log       zerolog.Logger
}

// NewAutoEvaluateJob creates the periodic evaluation job
func NewAutoEvaluateJob(scenarios ScenarioLister, engine Evaluator, log zerolog.Logger) *AutoEvaluateJob {
	return &AutoEvaluateJob{
		scenarios: scenarios,
		engine:    engine,
		log:       log.With().Str("job", "auto_evaluate").Logger(),
	}
}

// Name returns the job name
func (j *AutoEvaluateJob) Name() string {
	return "auto_evaluate"
}

// Run evaluates all active scenarios. A failure on one scenario does not
// stop the rest.
func (j *AutoEvaluateJob) Run() error {
	status := domain.StatusActive
	active, err := j.scenarios.List(&status)
	if err != nil {
		return err
	}

	var failed int
	for _, scn := range active {
		if _, err := j.engine.Evaluate(scn.ID, false, "system"); err != nil {
			failed++
			j.log.Error().Err(err).Str("scenario_id", scn.ID).Msg("Auto evaluation failed")
		}
	}

	j.log.Info().
		Int("evaluated", len(active)-failed).
		Int("failed", failed).
		Msg("Auto evaluation cycle complete")

	return nil
}
