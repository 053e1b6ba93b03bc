package scenario

import (
	"errors"
	"time"

	"github.com/ericscottllc/triggergrain/internal/config"
	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/ericscottllc/triggergrain/internal/events"
	"github.com/ericscottllc/triggergrain/internal/modules/ledger"
	"github.com/ericscottllc/triggergrain/internal/modules/timeline"
	"github.com/ericscottllc/triggergrain/internal/modules/validation"
	"github.com/rs/zerolog"
)

// PriceSource resolves referenced and latest market prices for sale pricing.
// Implemented by the marketdata repository; defined here to keep the import
// direction one-way.
type PriceSource interface {
	GetEntry(id string) (*domain.PricePoint, error)
	LatestPrice(scope domain.Scope) (*domain.PricePoint, error)
}

// QuoteSource supplies a live cash price when the quote feed is connected and
// fresh. The bool result reports freshness.
type QuoteSource interface {
	LatestCashPrice() (float64, bool)
}

// LatestEvaluationProvider supplies the newest evaluation for the summary
// projection. Implemented by the evaluation repository.
type LatestEvaluationProvider interface {
	LatestByScenario(scenarioID string) (*domain.Evaluation, error)
}

// Service exposes the scenario operation set: creation, sale entry,
// recommendation entry, status transitions, deletion, and the summary
// projection. Every mutating operation takes an explicit actor id.
type Service struct {
	repo       *Repository
	saleRepo   *ledger.SaleRepository
	recRepo    *timeline.RecommendationRepository
	prices     PriceSource
	quotes     QuoteSource // may be nil when no feed is configured
	latestEval LatestEvaluationProvider
	bus        *events.Bus
	cfg        config.EvaluationConfig
	log        zerolog.Logger
}

// NewService creates a new scenario service
func NewService(
	repo *Repository,
	saleRepo *ledger.SaleRepository,
	recRepo *timeline.RecommendationRepository,
	prices PriceSource,
	quotes QuoteSource,
	latestEval LatestEvaluationProvider,
	bus *events.Bus,
	cfg config.EvaluationConfig,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		saleRepo:   saleRepo,
		recRepo:    recRepo,
		prices:     prices,
		quotes:     quotes,
		latestEval: latestEval,
		bus:        bus,
		cfg:        cfg,
		log:        log.With().Str("service", "scenario").Logger(),
	}
}

// CreateScenario validates and persists a new scenario in planning status
func (s *Service) CreateScenario(actorID string, in validation.ScenarioInput) (*domain.Scenario, error) {
	result := validation.ValidateScenario(in, s.cfg)
	if !result.IsValid() {
		return nil, &domain.ValidationFailedError{Result: result}
	}

	created, err := s.repo.Create(domain.Scenario{
		Name:               in.Name,
		Scope:              in.Scope,
		StartDate:          in.StartDate,
		EndDate:            in.EndDate,
		ProductionEstimate: in.ProductionEstimate,
		Description:        in.Description,
		RiskTolerance:      in.RiskTolerance,
		MarketAssumptions:  in.MarketAssumptions,
		Notes:              in.Notes,
		CreatedBy:          actorID,
	})
	if err != nil {
		return nil, domain.NewDataAccessError("create scenario", err)
	}

	s.bus.Publish(events.ScenarioCreated, &events.ScenarioCreatedData{
		ScenarioID: created.ID,
		Name:       created.Name,
		CreatedBy:  actorID,
	})

	return created, nil
}

// AddSale validates and records a virtual sale against a scenario. Returned
// warnings (e.g. the cumulative oversell check) do not block the sale.
func (s *Service) AddSale(scenarioID, actorID string, in validation.SaleInput) (*domain.VirtualSale, []domain.ValidationEntry, error) {
	scn, err := s.repo.GetByID(scenarioID)
	if err != nil {
		return nil, nil, err
	}

	existing, err := s.saleRepo.GetByScenario(scenarioID)
	if err != nil {
		return nil, nil, domain.NewDataAccessError("load sales", err)
	}

	result := validation.ValidateSale(in, scn.ProductionEstimate, scn.StartDate, scn.EndDate, existing, s.cfg)
	if !result.IsValid() {
		return nil, nil, &domain.ValidationFailedError{Result: result}
	}

	sale := domain.VirtualSale{
		ScenarioID:    scenarioID,
		SaleDate:      in.SaleDate,
		VolumeBushels: in.VolumeBushels,
		PriceType:     in.PriceType,
		CashPrice:     in.CashPrice,
		FuturesPrice:  in.FuturesPrice,
		GrainEntryID:  in.GrainEntryID,
		ElevatorID:    in.ElevatorID,
		TownID:        in.TownID,
		ContractMonth: in.ContractMonth,
		CreatedBy:     actorID,
	}

	if err := s.resolveSalePrice(&sale, scn.Scope); err != nil {
		return nil, nil, err
	}

	created, err := s.saleRepo.Create(sale)
	if err != nil {
		return nil, nil, domain.NewDataAccessError("create sale", err)
	}

	s.bus.Publish(events.SaleRecorded, &events.SaleRecordedData{
		ScenarioID:    scenarioID,
		SaleID:        created.ID,
		VolumeBushels: created.VolumeBushels,
	})

	return created, result.Warnings(), nil
}

// resolveSalePrice fills in prices for the grain_entry and current_market
// modes. Manual prices pass through untouched.
func (s *Service) resolveSalePrice(sale *domain.VirtualSale, scope domain.Scope) error {
	switch sale.PriceType {
	case domain.PriceTypeGrainEntry:
		entry, err := s.prices.GetEntry(*sale.GrainEntryID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				var result domain.ValidationResult
				result.AddError("grain_entry_id", "referenced grain entry does not exist")
				return &domain.ValidationFailedError{Result: result}
			}
			return domain.NewDataAccessError("resolve grain entry price", err)
		}
		sale.CashPrice = &entry.CashPrice
		sale.FuturesPrice = &entry.FuturesPrice

	case domain.PriceTypeCurrentMarket:
		// Live quote first, latest recorded entry as fallback
		if s.quotes != nil {
			if price, fresh := s.quotes.LatestCashPrice(); fresh {
				sale.CashPrice = &price
				return nil
			}
		}
		latest, err := s.prices.LatestPrice(scope)
		if err != nil {
			return domain.NewDataAccessError("resolve current market price", err)
		}
		if latest == nil {
			var result domain.ValidationResult
			result.AddError("price_type", "no current market price is available for this scope")
			return &domain.ValidationFailedError{Result: result}
		}
		sale.CashPrice = &latest.CashPrice
		sale.FuturesPrice = &latest.FuturesPrice
	}

	return nil
}

// AddRecommendation validates and records a recommendation point. Sequence
// findings against the existing points come back as warnings.
func (s *Service) AddRecommendation(scenarioID, actorID string, in validation.RecommendationInput) (*domain.RecommendationPoint, []domain.ValidationEntry, error) {
	scn, err := s.repo.GetByID(scenarioID)
	if err != nil {
		return nil, nil, err
	}

	result := validation.ValidateRecommendation(in, scn.StartDate, scn.EndDate)
	if !result.IsValid() {
		return nil, nil, &domain.ValidationFailedError{Result: result}
	}

	existing, err := s.recRepo.GetByScenario(scenarioID)
	if err != nil {
		return nil, nil, domain.NewDataAccessError("load recommendations", err)
	}

	candidate := domain.RecommendationPoint{
		ScenarioID:           scenarioID,
		TargetDate:           in.TargetDate,
		TargetPercentageSold: in.TargetPercentageSold,
		Notes:                in.Notes,
		CreatedBy:            actorID,
	}

	sequence := validation.ValidateRecommendationSequence(append(existing, candidate))
	if !sequence.IsValid() {
		return nil, nil, &domain.ValidationFailedError{Result: sequence}
	}

	created, err := s.recRepo.Create(candidate)
	if err != nil {
		return nil, nil, domain.NewDataAccessError("create recommendation", err)
	}

	s.bus.Publish(events.RecommendationAdded, &events.RecommendationAddedData{
		ScenarioID:       scenarioID,
		RecommendationID: created.ID,
		TargetPercentage: created.TargetPercentageSold,
	})

	return created, sequence.Warnings(), nil
}

// SetStatus applies an explicit user-requested lifecycle transition.
// closed -> evaluated is rejected here; only a final evaluation enters it.
func (s *Service) SetStatus(scenarioID, actorID string, next domain.ScenarioStatus) (*domain.Scenario, error) {
	if !next.Valid() {
		return nil, domain.ErrIllegalTransition
	}

	scn, err := s.repo.GetByID(scenarioID)
	if err != nil {
		return nil, err
	}

	if !CanUserTransition(scn.Status, next) {
		return nil, domain.ErrIllegalTransition
	}

	if err := s.repo.UpdateStatus(scenarioID, next); err != nil {
		return nil, domain.NewDataAccessError("update status", err)
	}

	s.log.Info().
		Str("scenario_id", scenarioID).
		Str("actor_id", actorID).
		Str("from", string(scn.Status)).
		Str("to", string(next)).
		Msg("Scenario status changed")

	s.bus.Publish(events.StatusChanged, &events.StatusChangedData{
		ScenarioID: scenarioID,
		From:       string(scn.Status),
		To:         string(next),
	})

	scn.Status = next
	return scn, nil
}

// UpdateScenario edits a scenario's planning fields after re-validation.
// Status, creator, and the sales ledger are untouched.
func (s *Service) UpdateScenario(scenarioID, actorID string, in validation.ScenarioInput) (*domain.Scenario, error) {
	scn, err := s.repo.GetByID(scenarioID)
	if err != nil {
		return nil, err
	}

	result := validation.ValidateScenario(in, s.cfg)
	if !result.IsValid() {
		return nil, &domain.ValidationFailedError{Result: result}
	}

	scn.Name = in.Name
	scn.Scope = in.Scope
	scn.StartDate = in.StartDate
	scn.EndDate = in.EndDate
	scn.ProductionEstimate = in.ProductionEstimate
	scn.Description = in.Description
	scn.RiskTolerance = in.RiskTolerance
	scn.MarketAssumptions = in.MarketAssumptions
	scn.Notes = in.Notes

	if err := s.repo.UpdateDetails(*scn); err != nil {
		return nil, domain.NewDataAccessError("update scenario", err)
	}

	s.log.Info().Str("scenario_id", scenarioID).Str("actor_id", actorID).Msg("Scenario updated")
	return scn, nil
}

// GetScenario returns a single scenario
func (s *Service) GetScenario(scenarioID string) (*domain.Scenario, error) {
	return s.repo.GetByID(scenarioID)
}

// ListScenarios returns scenarios, optionally filtered by status
func (s *Service) ListScenarios(status *domain.ScenarioStatus) ([]domain.Scenario, error) {
	return s.repo.List(status)
}

// DeleteScenario removes a scenario in any state; children cascade
func (s *Service) DeleteScenario(scenarioID, actorID string) error {
	if err := s.repo.Delete(scenarioID); err != nil {
		return err
	}

	s.log.Info().Str("scenario_id", scenarioID).Str("actor_id", actorID).Msg("Scenario deleted")
	s.bus.Publish(events.ScenarioDeleted, &events.ScenarioDeletedData{ScenarioID: scenarioID})
	return nil
}

// DeleteSale removes a sale after confirming it belongs to the scenario
func (s *Service) DeleteSale(scenarioID, saleID, actorID string) error {
	sale, err := s.saleRepo.GetByID(saleID)
	if err != nil {
		return err
	}
	if sale.ScenarioID != scenarioID {
		return domain.ErrNotFound
	}

	if err := s.saleRepo.Delete(saleID); err != nil {
		return err
	}

	s.bus.Publish(events.SaleDeleted, &events.SaleDeletedData{ScenarioID: scenarioID, SaleID: saleID})
	return nil
}

// DeleteRecommendation removes a recommendation point after ownership check
func (s *Service) DeleteRecommendation(scenarioID, recID, actorID string) error {
	point, err := s.recRepo.GetByID(recID)
	if err != nil {
		return err
	}
	if point.ScenarioID != scenarioID {
		return domain.ErrNotFound
	}

	if err := s.recRepo.Delete(recID); err != nil {
		return err
	}

	s.bus.Publish(events.RecommendationDeleted, &events.RecommendationDeletedData{
		ScenarioID:       scenarioID,
		RecommendationID: recID,
	})
	return nil
}

// GetSummary recomputes the read-optimized projection for a scenario.
// Derived on every call; never cached.
func (s *Service) GetSummary(scenarioID string) (*domain.ScenarioSummary, error) {
	scn, err := s.repo.GetByID(scenarioID)
	if err != nil {
		return nil, err
	}

	sales, err := s.saleRepo.GetByScenario(scenarioID)
	if err != nil {
		return nil, domain.NewDataAccessError("load sales", err)
	}

	points, err := s.recRepo.GetByScenario(scenarioID)
	if err != nil {
		return nil, domain.NewDataAccessError("load recommendations", err)
	}

	latest, err := s.latestEval.LatestByScenario(scenarioID)
	if err != nil {
		return nil, domain.NewDataAccessError("load latest evaluation", err)
	}

	percentageSold := ledger.PercentageSold(sales, scn.ProductionEstimate)
	health := timeline.Classify(percentageSold, points, time.Now().UTC(), s.cfg.OnTrackToleranceBand)

	return &domain.ScenarioSummary{
		Scenario:         *scn,
		TotalSales:       ledger.TotalVolume(sales),
		PercentageSold:   percentageSold,
		AveragePrice:     ledger.WeightedAveragePrice(sales),
		TotalRevenue:     ledger.TotalRevenue(sales),
		SalesCount:       len(sales),
		LastSaleDate:     ledger.LastSaleDate(sales),
		Health:           string(health),
		LatestEvaluation: latest,
	}, nil
}
