package evaluation

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericscottllc/triggergrain/internal/config"
	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/ericscottllc/triggergrain/internal/events"
	"github.com/ericscottllc/triggergrain/internal/modules/ledger"
	"github.com/ericscottllc/triggergrain/internal/modules/scenario"
	"github.com/ericscottllc/triggergrain/internal/modules/timeline"
	tgtesting "github.com/ericscottllc/triggergrain/internal/testing"
)

func testEvalConfig() config.EvaluationConfig {
	return config.EvaluationConfig{
		PricePerformanceWeight:  0.7,
		StrategyAdherenceWeight: 0.3,
		OnTrackToleranceBand:    5,
		OpportunityPercentile:   90,
		ProductionSanityCap:     10000000,
		CashPriceCeiling:        1000,
	}
}

func TestCompute_WorkedExample(t *testing.T) {
	scn := tgtesting.NewScenarioFixture()
	sales := tgtesting.NewSaleFixtures(scn.ID)
	recs := tgtesting.NewRecommendationFixtures(scn.ID)
	window := tgtesting.NewPricePointFixtures()
	asOf := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

	eval := Compute(*scn, sales, recs, window, asOf, testEvalConfig())

	assert.Equal(t, scn.ID, eval.ScenarioID)
	assert.InDelta(t, 45000.0, eval.TotalVolumeSold, 0.001)
	assert.InDelta(t, 45.0, eval.PercentageSold, 0.001)
	// (15000*12.50 + 20000*13.10 + 10000*12.80) / 45000
	assert.InDelta(t, 12.8333, eval.AveragePriceAchieved, 0.001)
	assert.InDelta(t, 577500.0, eval.TotalRevenue, 0.001)

	assert.InDelta(t, 12.5714, eval.MarketAveragePrice, 0.001)
	assert.InDelta(t, 13.50, eval.MarketHighPrice, 0.001)
	assert.InDelta(t, 11.80, eval.MarketLowPrice, 0.001)

	// At June 15 the last target (60%) applies: 45 - 60 = -15
	assert.InDelta(t, -15.0, eval.VarianceFromRecommendation, 0.001)

	// 7 points at the 90th percentile yields the single highest day (13.50 on
	// April 15), which had no sale
	assert.Equal(t, 1, eval.OpportunitiesMissed)

	// 0.7 * (12.8333/13.50*100) + 0.3 * (100-15)
	assert.InDelta(t, 92.04, eval.PerformanceScore, 0.01)

	// Remaining 55000 bushels at the latest window price of 12.10
	assert.InDelta(t, 665500.0, eval.UnrealizedValue, 0.001)

	assert.Contains(t, eval.EvaluationNotes, "Excellent marketing performance")
	assert.Contains(t, eval.EvaluationNotes, "1 high-price day(s) passed without a sale")
}

func TestCompute_Deterministic(t *testing.T) {
	scn := tgtesting.NewScenarioFixture()
	sales := tgtesting.NewSaleFixtures(scn.ID)
	recs := tgtesting.NewRecommendationFixtures(scn.ID)
	window := tgtesting.NewPricePointFixtures()
	asOf := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)

	first := Compute(*scn, sales, recs, window, asOf, testEvalConfig())
	second := Compute(*scn, sales, recs, window, asOf, testEvalConfig())

	assert.Equal(t, first, second)
}

func TestCompute_EmptyInputs(t *testing.T) {
	scn := tgtesting.NewScenarioFixture()
	asOf := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	eval := Compute(*scn, nil, nil, nil, asOf, testEvalConfig())

	assert.Zero(t, eval.TotalVolumeSold)
	assert.Zero(t, eval.PercentageSold)
	assert.Zero(t, eval.MarketAveragePrice)
	assert.Zero(t, eval.MarketHighPrice)
	assert.Zero(t, eval.MarketLowPrice)
	assert.Zero(t, eval.OpportunitiesMissed)
	assert.Zero(t, eval.VarianceFromRecommendation)
	assert.Zero(t, eval.UnrealizedValue)
	// No price data means no price performance; full adherence remains
	assert.InDelta(t, 30.0, eval.PerformanceScore, 0.001)
}

func TestCompute_ScoreStaysInBounds(t *testing.T) {
	scn := tgtesting.NewScenarioFixture()
	asOf := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

	// Average above the market high would push price performance past 100
	high := 20.0
	sale := domain.VirtualSale{
		ID:            "sale-high",
		ScenarioID:    scn.ID,
		SaleDate:      time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		VolumeBushels: 10000,
		PriceType:     domain.PriceTypeManual,
		CashPrice:     &high,
	}
	window := []domain.PricePoint{
		{Date: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), CashPrice: 10.0},
	}

	eval := Compute(*scn, []domain.VirtualSale{sale}, nil, window, asOf, testEvalConfig())
	assert.LessOrEqual(t, eval.PerformanceScore, 100.0)
	assert.GreaterOrEqual(t, eval.PerformanceScore, 0.0)
}

func TestCompute_IgnoresSalesOutsideWindow(t *testing.T) {
	scn := tgtesting.NewScenarioFixture()
	asOf := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

	price := 12.0
	outside := domain.VirtualSale{
		ID:            "sale-outside",
		ScenarioID:    scn.ID,
		SaleDate:      time.Date(2024, time.November, 1, 0, 0, 0, 0, time.UTC),
		VolumeBushels: 50000,
		PriceType:     domain.PriceTypeManual,
		CashPrice:     &price,
	}

	eval := Compute(*scn, []domain.VirtualSale{outside}, nil, nil, asOf, testEvalConfig())
	assert.Zero(t, eval.TotalVolumeSold)
	assert.Zero(t, eval.TotalRevenue)
}

// stubAccessor serves a fixed market window
type stubAccessor struct {
	window []domain.PricePoint
}

func (s *stubAccessor) Fetch(scope domain.Scope, start, end time.Time) ([]domain.PricePoint, error) {
	return s.window, nil
}

func (s *stubAccessor) LatestPrice(scope domain.Scope) (*domain.PricePoint, error) {
	if len(s.window) == 0 {
		return nil, nil
	}
	p := s.window[len(s.window)-1]
	return &p, nil
}

func newTestEngine(t *testing.T) (*Engine, *scenario.Repository, func()) {
	t.Helper()
	db, cleanup := tgtesting.NewTestDB(t, "scenario")
	log := zerolog.Nop()

	scenarioRepo := scenario.NewRepository(db.Conn(), log)
	saleRepo := ledger.NewSaleRepository(db.Conn(), log)
	recRepo := timeline.NewRecommendationRepository(db.Conn(), log)
	evalRepo := NewRepository(db.Conn(), log)
	bus := events.NewBus(log)

	engine := NewEngine(
		scenarioRepo,
		saleRepo,
		recRepo,
		&stubAccessor{window: tgtesting.NewPricePointFixtures()},
		evalRepo,
		bus,
		testEvalConfig(),
		log,
	).WithClock(func() time.Time {
		return time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	})

	return engine, scenarioRepo, cleanup
}

func TestEvaluate_InterimKeepsStatus(t *testing.T) {
	engine, scenarioRepo, cleanup := newTestEngine(t)
	defer cleanup()

	created, err := scenarioRepo.Create(*tgtesting.NewScenarioFixture())
	require.NoError(t, err)
	require.NoError(t, scenarioRepo.UpdateStatus(created.ID, domain.StatusActive))

	eval, err := engine.Evaluate(created.ID, false, "tester")
	require.NoError(t, err)
	assert.False(t, eval.IsFinal)
	assert.NotEmpty(t, eval.ID)
	assert.Equal(t, "tester", eval.CreatedBy)

	after, err := scenarioRepo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, after.Status)
}

func TestEvaluate_FinalTransitionsClosedScenario(t *testing.T) {
	engine, scenarioRepo, cleanup := newTestEngine(t)
	defer cleanup()

	created, err := scenarioRepo.Create(*tgtesting.NewScenarioFixture())
	require.NoError(t, err)
	require.NoError(t, scenarioRepo.UpdateStatus(created.ID, domain.StatusActive))
	require.NoError(t, scenarioRepo.UpdateStatus(created.ID, domain.StatusClosed))

	eval, err := engine.Evaluate(created.ID, true, "tester")
	require.NoError(t, err)
	assert.True(t, eval.IsFinal)

	after, err := scenarioRepo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEvaluated, after.Status)

	// A second final evaluation finds nothing in closed and persists nothing
	_, err = engine.Evaluate(created.ID, true, "tester")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	evals, err := engine.evalRepo.GetByScenario(created.ID)
	require.NoError(t, err)
	assert.Len(t, evals, 1)
}

func TestEvaluate_ConcurrentFinalizersExactlyOneWins(t *testing.T) {
	engine, scenarioRepo, cleanup := newTestEngine(t)
	defer cleanup()

	created, err := scenarioRepo.Create(*tgtesting.NewScenarioFixture())
	require.NoError(t, err)
	require.NoError(t, scenarioRepo.UpdateStatus(created.ID, domain.StatusActive))
	require.NoError(t, scenarioRepo.UpdateStatus(created.ID, domain.StatusClosed))

	start := make(chan struct{})
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.Evaluate(created.ID, true, "tester")
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		losses++
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	after, err := scenarioRepo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEvaluated, after.Status)

	// Only the winner's record survives
	evals, err := engine.evalRepo.GetByScenario(created.ID)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.True(t, evals[0].IsFinal)
}

func TestEvaluate_FinalRequiresClosed(t *testing.T) {
	engine, scenarioRepo, cleanup := newTestEngine(t)
	defer cleanup()

	created, err := scenarioRepo.Create(*tgtesting.NewScenarioFixture())
	require.NoError(t, err)
	require.NoError(t, scenarioRepo.UpdateStatus(created.ID, domain.StatusActive))

	_, err = engine.Evaluate(created.ID, true, "tester")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	// The failed transition rolled back the evaluation insert as well
	evals, err := engine.evalRepo.GetByScenario(created.ID)
	require.NoError(t, err)
	assert.Empty(t, evals)
}

func TestEvaluate_UnknownScenario(t *testing.T) {
	engine, _, cleanup := newTestEngine(t)
	defer cleanup()

	_, err := engine.Evaluate("missing", false, "tester")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEvaluate_ReEvaluationAppendsHistory(t *testing.T) {
	engine, scenarioRepo, cleanup := newTestEngine(t)
	defer cleanup()

	created, err := scenarioRepo.Create(*tgtesting.NewScenarioFixture())
	require.NoError(t, err)
	require.NoError(t, scenarioRepo.UpdateStatus(created.ID, domain.StatusActive))

	first, err := engine.Evaluate(created.ID, false, "tester")
	require.NoError(t, err)
	second, err := engine.Evaluate(created.ID, false, "tester")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	// Same inputs, same figures
	assert.Equal(t, first.PerformanceScore, second.PerformanceScore)

	evals, err := engine.evalRepo.GetByScenario(created.ID)
	require.NoError(t, err)
	assert.Len(t, evals, 2)
}
