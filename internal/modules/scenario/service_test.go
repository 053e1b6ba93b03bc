package scenario

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericscottllc/triggergrain/internal/config"
	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/ericscottllc/triggergrain/internal/events"
	"github.com/ericscottllc/triggergrain/internal/modules/ledger"
	"github.com/ericscottllc/triggergrain/internal/modules/timeline"
	"github.com/ericscottllc/triggergrain/internal/modules/validation"
	tgtesting "github.com/ericscottllc/triggergrain/internal/testing"
)

// fakePrices serves canned market entries keyed by id
type fakePrices struct {
	entries map[string]domain.PricePoint
	latest  *domain.PricePoint
}

func (f *fakePrices) GetEntry(id string) (*domain.PricePoint, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

func (f *fakePrices) LatestPrice(scope domain.Scope) (*domain.PricePoint, error) {
	return f.latest, nil
}

// fakeQuotes reports one live price with controllable freshness
type fakeQuotes struct {
	price float64
	fresh bool
}

func (f *fakeQuotes) LatestCashPrice() (float64, bool) {
	return f.price, f.fresh
}

// fakeLatestEval returns a fixed latest evaluation
type fakeLatestEval struct {
	latest *domain.Evaluation
}

func (f *fakeLatestEval) LatestByScenario(scenarioID string) (*domain.Evaluation, error) {
	return f.latest, nil
}

type serviceFixture struct {
	service *Service
	repo    *Repository
	prices  *fakePrices
	quotes  *fakeQuotes
	evals   *fakeLatestEval
	cleanup func()
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db, cleanup := tgtesting.NewTestDB(t, "scenario")
	log := zerolog.Nop()

	repo := NewRepository(db.Conn(), log)
	saleRepo := ledger.NewSaleRepository(db.Conn(), log)
	recRepo := timeline.NewRecommendationRepository(db.Conn(), log)

	prices := &fakePrices{entries: map[string]domain.PricePoint{}}
	quotes := &fakeQuotes{}
	evals := &fakeLatestEval{}

	cfg := config.EvaluationConfig{
		PricePerformanceWeight:  0.7,
		StrategyAdherenceWeight: 0.3,
		OnTrackToleranceBand:    5,
		OpportunityPercentile:   90,
		ProductionSanityCap:     10000000,
		CashPriceCeiling:        1000,
	}

	service := NewService(repo, saleRepo, recRepo, prices, quotes, evals, events.NewBus(log), cfg, log)

	return &serviceFixture{
		service: service,
		repo:    repo,
		prices:  prices,
		quotes:  quotes,
		evals:   evals,
		cleanup: cleanup,
	}
}

func validScenarioInput() validation.ScenarioInput {
	return validation.ScenarioInput{
		Name:               "2025 HRSW Marketing Plan",
		StartDate:          time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
		ProductionEstimate: 100000,
	}
}

func manualSaleInput(date time.Time, volume, price float64) validation.SaleInput {
	return validation.SaleInput{
		SaleDate:      date,
		VolumeBushels: volume,
		PriceType:     domain.PriceTypeManual,
		CashPrice:     &price,
	}
}

func TestCreateScenario(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()

	created, err := f.service.CreateScenario("tester", validScenarioInput())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.StatusPlanning, created.Status)
	assert.Equal(t, "tester", created.CreatedBy)
}

func TestCreateScenario_ValidationFailure(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()

	in := validScenarioInput()
	in.EndDate = in.StartDate.AddDate(0, -1, 0)

	_, err := f.service.CreateScenario("tester", in)
	var vErr *domain.ValidationFailedError
	require.ErrorAs(t, err, &vErr)
	assert.NotEmpty(t, vErr.Result.Errors())
}

func activeScenario(t *testing.T, f *serviceFixture) *domain.Scenario {
	t.Helper()
	created, err := f.service.CreateScenario("tester", validScenarioInput())
	require.NoError(t, err)
	activated, err := f.service.SetStatus(created.ID, "tester", domain.StatusActive)
	require.NoError(t, err)
	return activated
}

func TestAddSale_Manual(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	sale, warnings, err := f.service.AddSale(scn.ID, "tester",
		manualSaleInput(time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC), 15000, 12.50))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.NotEmpty(t, sale.ID)
	require.NotNil(t, sale.CashPrice)
	assert.Equal(t, 12.50, *sale.CashPrice)
}

func TestAddSale_OversellWarningDoesNotBlock(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	date := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := f.service.AddSale(scn.ID, "tester", manualSaleInput(date, 90000, 12.00))
	require.NoError(t, err)

	// Cumulative 170% of the estimate: warned, not rejected
	sale, warnings, err := f.service.AddSale(scn.ID, "tester", manualSaleInput(date.AddDate(0, 0, 7), 80000, 12.00))
	require.NoError(t, err)
	assert.NotNil(t, sale)
	require.NotEmpty(t, warnings)
	assert.Equal(t, domain.SeverityWarning, warnings[0].Severity)
}

func TestAddSale_GrossVolumeRejected(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	// A single sale above twice the estimate is a hard error
	_, _, err := f.service.AddSale(scn.ID, "tester",
		manualSaleInput(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), 250000, 12.00))
	var vErr *domain.ValidationFailedError
	require.ErrorAs(t, err, &vErr)
}

func TestAddSale_OutsideWindowRejected(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	_, _, err := f.service.AddSale(scn.ID, "tester",
		manualSaleInput(time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC), 10000, 12.00))
	var vErr *domain.ValidationFailedError
	require.ErrorAs(t, err, &vErr)
}

func TestAddSale_GrainEntryPricing(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	f.prices.entries["entry-1"] = domain.PricePoint{
		Date:         time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC),
		CashPrice:    12.90,
		FuturesPrice: 12.40,
	}

	entryID := "entry-1"
	sale, _, err := f.service.AddSale(scn.ID, "tester", validation.SaleInput{
		SaleDate:      time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC),
		VolumeBushels: 10000,
		PriceType:     domain.PriceTypeGrainEntry,
		GrainEntryID:  &entryID,
	})
	require.NoError(t, err)
	require.NotNil(t, sale.CashPrice)
	assert.Equal(t, 12.90, *sale.CashPrice)
	require.NotNil(t, sale.FuturesPrice)
	assert.Equal(t, 12.40, *sale.FuturesPrice)
}

func TestAddSale_GrainEntryMissing(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	entryID := "missing"
	_, _, err := f.service.AddSale(scn.ID, "tester", validation.SaleInput{
		SaleDate:      time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC),
		VolumeBushels: 10000,
		PriceType:     domain.PriceTypeGrainEntry,
		GrainEntryID:  &entryID,
	})
	var vErr *domain.ValidationFailedError
	require.ErrorAs(t, err, &vErr)
}

func TestAddSale_CurrentMarketPrefersFreshQuote(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	f.quotes.price = 13.25
	f.quotes.fresh = true
	f.prices.latest = &domain.PricePoint{CashPrice: 12.00, FuturesPrice: 11.50}

	sale, _, err := f.service.AddSale(scn.ID, "tester", validation.SaleInput{
		SaleDate:      time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC),
		VolumeBushels: 10000,
		PriceType:     domain.PriceTypeCurrentMarket,
	})
	require.NoError(t, err)
	require.NotNil(t, sale.CashPrice)
	assert.Equal(t, 13.25, *sale.CashPrice)
}

func TestAddSale_CurrentMarketFallsBackToLatestEntry(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	f.quotes.fresh = false
	f.prices.latest = &domain.PricePoint{CashPrice: 12.00, FuturesPrice: 11.50}

	sale, _, err := f.service.AddSale(scn.ID, "tester", validation.SaleInput{
		SaleDate:      time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC),
		VolumeBushels: 10000,
		PriceType:     domain.PriceTypeCurrentMarket,
	})
	require.NoError(t, err)
	require.NotNil(t, sale.CashPrice)
	assert.Equal(t, 12.00, *sale.CashPrice)
}

func TestAddSale_CurrentMarketNoPriceAvailable(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	f.quotes.fresh = false
	f.prices.latest = nil

	_, _, err := f.service.AddSale(scn.ID, "tester", validation.SaleInput{
		SaleDate:      time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC),
		VolumeBushels: 10000,
		PriceType:     domain.PriceTypeCurrentMarket,
	})
	var vErr *domain.ValidationFailedError
	require.ErrorAs(t, err, &vErr)
}

func TestSetStatus_Lifecycle(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()

	created, err := f.service.CreateScenario("tester", validScenarioInput())
	require.NoError(t, err)

	// planning -> closed skips a state
	_, err = f.service.SetStatus(created.ID, "tester", domain.StatusClosed)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	active, err := f.service.SetStatus(created.ID, "tester", domain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, active.Status)

	closed, err := f.service.SetStatus(created.ID, "tester", domain.StatusClosed)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)

	// evaluated is reserved for the final evaluation
	_, err = f.service.SetStatus(created.ID, "tester", domain.StatusEvaluated)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestSetStatus_UnknownStatus(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	_, err := f.service.SetStatus(scn.ID, "tester", domain.ScenarioStatus("archived"))
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestAddRecommendation_DecreasingTargetWarns(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	_, warnings, err := f.service.AddRecommendation(scn.ID, "tester", validation.RecommendationInput{
		TargetDate:           time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		TargetPercentageSold: 50,
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	point, warnings, err := f.service.AddRecommendation(scn.ID, "tester", validation.RecommendationInput{
		TargetDate:           time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		TargetPercentageSold: 30,
	})
	require.NoError(t, err)
	assert.NotNil(t, point)
	require.NotEmpty(t, warnings)
	assert.Equal(t, domain.SeverityWarning, warnings[0].Severity)
}

func TestAddRecommendation_DuplicateDateRejected(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	date := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := f.service.AddRecommendation(scn.ID, "tester", validation.RecommendationInput{
		TargetDate:           date,
		TargetPercentageSold: 20,
	})
	require.NoError(t, err)

	_, _, err = f.service.AddRecommendation(scn.ID, "tester", validation.RecommendationInput{
		TargetDate:           date,
		TargetPercentageSold: 40,
	})
	var vErr *domain.ValidationFailedError
	require.ErrorAs(t, err, &vErr)
}

func TestDeleteSale_OwnershipEnforced(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	first := activeScenario(t, f)

	other, err := f.service.CreateScenario("tester", validScenarioInput())
	require.NoError(t, err)

	sale, _, err := f.service.AddSale(first.ID, "tester",
		manualSaleInput(time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC), 10000, 12.50))
	require.NoError(t, err)

	err = f.service.DeleteSale(other.ID, sale.ID, "tester")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.service.DeleteSale(first.ID, sale.ID, "tester"))
}

func TestGetSummary(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	_, _, err := f.service.AddSale(scn.ID, "tester",
		manualSaleInput(time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC), 15000, 12.50))
	require.NoError(t, err)
	_, _, err = f.service.AddSale(scn.ID, "tester",
		manualSaleInput(time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC), 20000, 13.10))
	require.NoError(t, err)

	f.evals.latest = &domain.Evaluation{ID: "eval-1", ScenarioID: scn.ID, PerformanceScore: 88}

	summary, err := f.service.GetSummary(scn.ID)
	require.NoError(t, err)

	assert.InDelta(t, 35000.0, summary.TotalSales, 0.001)
	assert.InDelta(t, 35.0, summary.PercentageSold, 0.001)
	assert.InDelta(t, 12.8428, summary.AveragePrice, 0.001)
	assert.InDelta(t, 449500.0, summary.TotalRevenue, 0.001)
	assert.Equal(t, 2, summary.SalesCount)
	require.NotNil(t, summary.LastSaleDate)
	assert.Equal(t, time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC), summary.LastSaleDate.UTC())
	require.NotNil(t, summary.LatestEvaluation)
	assert.Equal(t, "eval-1", summary.LatestEvaluation.ID)
	// No recommendation points means no target to miss
	assert.Equal(t, string(timeline.HealthNoTarget), summary.Health)
}

func TestUpdateScenario(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	in := validScenarioInput()
	in.Name = "2025 HRSW Marketing Plan (revised)"
	in.ProductionEstimate = 120000

	updated, err := f.service.UpdateScenario(scn.ID, "tester", in)
	require.NoError(t, err)
	assert.Equal(t, "2025 HRSW Marketing Plan (revised)", updated.Name)
	assert.Equal(t, 120000.0, updated.ProductionEstimate)
	// Status survives the edit
	assert.Equal(t, domain.StatusActive, updated.Status)

	in.ProductionEstimate = -5
	_, err = f.service.UpdateScenario(scn.ID, "tester", in)
	var vErr *domain.ValidationFailedError
	require.ErrorAs(t, err, &vErr)
}

func TestDeleteScenario_CascadesChildren(t *testing.T) {
	f := newServiceFixture(t)
	defer f.cleanup()
	scn := activeScenario(t, f)

	_, _, err := f.service.AddSale(scn.ID, "tester",
		manualSaleInput(time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC), 10000, 12.50))
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteScenario(scn.ID, "tester"))

	_, err = f.service.GetScenario(scn.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
