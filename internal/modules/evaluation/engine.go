package evaluation

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ericscottllc/triggergrain/internal/config"
	"github.com/ericscottllc/triggergrain/internal/database"
	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/ericscottllc/triggergrain/internal/events"
	"github.com/ericscottllc/triggergrain/internal/modules/ledger"
	"github.com/ericscottllc/triggergrain/internal/modules/marketdata"
	"github.com/ericscottllc/triggergrain/internal/modules/scenario"
	"github.com/ericscottllc/triggergrain/internal/modules/timeline"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Engine runs the 12-step evaluation algorithm and persists the result.
// Each evaluation is an independently inserted immutable record; a race
// between two non-final evaluations produces two records, which is fine.
// The final transition is serialized through a conditional status update.
type Engine struct {
	scenarioRepo *scenario.Repository
	saleRepo     *ledger.SaleRepository
	recRepo      *timeline.RecommendationRepository
	market       marketdata.Accessor
	evalRepo     *Repository
	bus          *events.Bus
	cfg          config.EvaluationConfig
	log          zerolog.Logger
	now          func() time.Time
}

// NewEngine creates a new evaluation engine
func NewEngine(
	scenarioRepo *scenario.Repository,
	saleRepo *ledger.SaleRepository,
	recRepo *timeline.RecommendationRepository,
	market marketdata.Accessor,
	evalRepo *Repository,
	bus *events.Bus,
	cfg config.EvaluationConfig,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		scenarioRepo: scenarioRepo,
		saleRepo:     saleRepo,
		recRepo:      recRepo,
		market:       market,
		evalRepo:     evalRepo,
		bus:          bus,
		cfg:          cfg,
		log:          log.With().Str("component", "evaluation_engine").Logger(),
		now:          time.Now,
	}
}

// WithClock overrides the engine's clock. Tests use this for reproducible
// evaluation dates.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Evaluate scores a scenario as of now and persists an immutable evaluation
// record. When isFinal is true the scenario must be closed; the record insert
// and the closed -> evaluated transition commit or roll back together.
func (e *Engine) Evaluate(scenarioID string, isFinal bool, actorID string) (*domain.Evaluation, error) {
	scn, err := e.scenarioRepo.GetByID(scenarioID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.NewDataAccessError("load scenario", err)
	}

	sales, err := e.saleRepo.GetByScenario(scenarioID)
	if err != nil {
		return nil, domain.NewDataAccessError("load sales", err)
	}

	recommendations, err := e.recRepo.GetByScenario(scenarioID)
	if err != nil {
		return nil, domain.NewDataAccessError("load recommendations", err)
	}

	window, err := e.market.Fetch(scn.Scope, scn.StartDate, scn.EndDate)
	if err != nil {
		return nil, domain.NewDataAccessError("fetch market window", err)
	}

	evaluation := Compute(*scn, sales, recommendations, window, e.now().UTC(), e.cfg)
	evaluation.CreatedBy = actorID
	evaluation.IsFinal = isFinal

	snapshot, err := EncodeMarketSnapshot(window)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot market window: %w", err)
	}
	evaluation.MarketSnapshot = snapshot

	e.evalRepo.newID(&evaluation)

	// All-or-nothing: a failed final transition persists nothing
	err = database.WithTransaction(e.scenarioRepo.Conn(), func(tx *sql.Tx) error {
		if isFinal {
			if err := e.scenarioRepo.UpdateStatusIf(tx, scenarioID, domain.StatusClosed, domain.StatusEvaluated); err != nil {
				return err
			}
		}
		return e.evalRepo.insertTx(tx, &evaluation)
	})
	if err != nil {
		// WithTransaction wraps with %w, so sentinel errors still match
		return nil, err
	}

	e.log.Info().
		Str("scenario_id", scenarioID).
		Bool("is_final", isFinal).
		Float64("score", evaluation.PerformanceScore).
		Msg("Evaluation recorded")

	e.bus.Publish(events.EvaluationCompleted, &events.EvaluationCompletedData{
		ScenarioID:       scenarioID,
		EvaluationID:     evaluation.ID,
		PerformanceScore: evaluation.PerformanceScore,
		IsFinal:          isFinal,
	})

	return &evaluation, nil
}

// Compute runs the scoring algorithm over fully materialized inputs. It is a
// pure function: same inputs, same figures, so re-evaluation is deterministic.
func Compute(
	scn domain.Scenario,
	sales []domain.VirtualSale,
	recommendations []domain.RecommendationPoint,
	window []domain.PricePoint,
	asOf time.Time,
	cfg config.EvaluationConfig,
) domain.Evaluation {
	// Defensive re-validation: out-of-window rows never reach the score
	filtered := ledger.FilterToWindow(sales, scn.StartDate, scn.EndDate)

	percentageSold := ledger.PercentageSold(filtered, scn.ProductionEstimate)
	totalVolume := ledger.TotalVolume(filtered)
	averagePrice := ledger.WeightedAveragePrice(filtered)
	totalRevenue := ledger.TotalRevenue(filtered)

	marketAverage, marketHigh, marketLow := marketStats(window)

	variance := timeline.VarianceFromRecommendation(percentageSold, recommendations, asOf)

	opportunitiesMissed := countMissedOpportunities(window, filtered, cfg.OpportunityPercentile)

	score := performanceScore(averagePrice, marketHigh, variance, cfg)

	currentMarketPrice := 0.0
	if len(window) > 0 {
		currentMarketPrice = window[len(window)-1].CashPrice
	}
	unrealizedValue := ledger.UnrealizedValue(filtered, scn.ProductionEstimate, currentMarketPrice)

	notes := composeNotes(score, variance, opportunitiesMissed, window)

	return domain.Evaluation{
		ScenarioID:                 scn.ID,
		EvaluationDate:             asOf,
		PercentageSold:             percentageSold,
		TotalVolumeSold:            totalVolume,
		AveragePriceAchieved:       averagePrice,
		MarketAveragePrice:         marketAverage,
		MarketHighPrice:            marketHigh,
		MarketLowPrice:             marketLow,
		PerformanceScore:           score,
		VarianceFromRecommendation: variance,
		OpportunitiesMissed:        opportunitiesMissed,
		TotalRevenue:               totalRevenue,
		UnrealizedValue:            unrealizedValue,
		EvaluationNotes:            notes,
	}
}

// marketStats returns mean, high, and low cash price; all zero for an empty window
func marketStats(window []domain.PricePoint) (mean, high, low float64) {
	if len(window) == 0 {
		return 0, 0, 0
	}

	prices := make([]float64, len(window))
	high = window[0].CashPrice
	low = window[0].CashPrice
	for i, p := range window {
		prices[i] = p.CashPrice
		if p.CashPrice > high {
			high = p.CashPrice
		}
		if p.CashPrice < low {
			low = p.CashPrice
		}
	}

	return stat.Mean(prices, nil), high, low
}

// countMissedOpportunities counts distinct market dates whose cash price is at
// or above the top-percentile threshold and on which no sale was recorded.
// Exact-date matching is deliberate; near-date sales do not count.
func countMissedOpportunities(window []domain.PricePoint, sales []domain.VirtualSale, percentile float64) int {
	if len(window) == 0 {
		return 0
	}

	threshold := topPercentileThreshold(window, percentile)

	saleDates := make(map[string]bool, len(sales))
	for _, s := range sales {
		saleDates[s.SaleDate.Format("2006-01-02")] = true
	}

	seen := make(map[string]bool)
	missed := 0
	for _, p := range window {
		if p.CashPrice < threshold {
			continue
		}
		day := p.Date.Format("2006-01-02")
		if seen[day] {
			continue
		}
		seen[day] = true
		if !saleDates[day] {
			missed++
		}
	}

	return missed
}

// topPercentileThreshold returns the price marking the top (100-percentile)%
// of the window: prices sorted descending, indexed at floor(N*(1-p/100)).
func topPercentileThreshold(window []domain.PricePoint, percentile float64) float64 {
	prices := make([]float64, len(window))
	for i, p := range window {
		prices[i] = p.CashPrice
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(prices)))

	idx := int(math.Floor(float64(len(prices)) * (1 - percentile/100)))
	if idx >= len(prices) {
		idx = len(prices) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return prices[idx]
}

// performanceScore blends price capture against the market high with adherence
// to the recommendation timeline. Weights come from configuration.
func performanceScore(averagePrice, marketHigh, variance float64, cfg config.EvaluationConfig) float64 {
	pricePerformance := 0.0
	if marketHigh > 0 {
		pricePerformance = averagePrice / marketHigh * 100
	}

	strategyAdherence := math.Max(0, 100-math.Abs(variance))

	score := pricePerformance*cfg.PricePerformanceWeight + strategyAdherence*cfg.StrategyAdherenceWeight
	return math.Min(100, math.Max(0, score))
}

// Variance beyond this many percentage points earns a callout in the notes
const varianceCalloutThreshold = 15.0

// composeNotes builds the human-readable narrative by score band, with
// conditional sentences for large plan variance, missed opportunities, and
// the market trend.
func composeNotes(score, variance float64, opportunitiesMissed int, window []domain.PricePoint) string {
	var notes string
	switch {
	case score >= 80:
		notes = "Excellent marketing performance. Sales captured strong prices while tracking the plan."
	case score >= 60:
		notes = "Good marketing performance with room to improve price capture or plan adherence."
	case score >= 40:
		notes = "Fair marketing performance. Review sale timing against the recommendation schedule."
	default:
		notes = "Performance below target. Pricing and plan adherence both need attention."
	}

	if math.Abs(variance) > varianceCalloutThreshold {
		if variance > 0 {
			notes += fmt.Sprintf(" Sales are running %.1f points ahead of the recommended pace.", variance)
		} else {
			notes += fmt.Sprintf(" Sales are running %.1f points behind the recommended pace.", -variance)
		}
	}

	if opportunitiesMissed > 0 {
		notes += fmt.Sprintf(" %d high-price day(s) passed without a sale.", opportunitiesMissed)
	}

	switch marketdata.DetectTrend(window) {
	case marketdata.TrendUp:
		notes += " Market prices are trending up over the scenario window."
	case marketdata.TrendDown:
		notes += " Market prices are trending down over the scenario window."
	}

	return notes
}
