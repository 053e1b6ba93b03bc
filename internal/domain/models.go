// Package domain provides core domain models and types for the scenario engine.
package domain

import "time"

// ScenarioStatus represents a scenario's lifecycle state
type ScenarioStatus string

const (
	// StatusPlanning - scenario is being drafted, nothing committed yet
	StatusPlanning ScenarioStatus = "planning"
	// StatusActive - scenario is live and accumulating sales
	StatusActive ScenarioStatus = "active"
	// StatusClosed - scenario window has ended, awaiting final evaluation
	StatusClosed ScenarioStatus = "closed"
	// StatusEvaluated - terminal state, final evaluation recorded
	StatusEvaluated ScenarioStatus = "evaluated"
)

// Valid reports whether s is one of the known lifecycle states
func (s ScenarioStatus) Valid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusClosed, StatusEvaluated:
		return true
	}
	return false
}

// PriceType represents how a virtual sale is priced
type PriceType string

const (
	// PriceTypeManual - user supplies the cash price explicitly
	PriceTypeManual PriceType = "manual"
	// PriceTypeGrainEntry - price references a recorded grain entry
	PriceTypeGrainEntry PriceType = "grain_entry"
	// PriceTypeCurrentMarket - price is filled in from the live market
	PriceTypeCurrentMarket PriceType = "current_market"
)

// Valid reports whether p is one of the known pricing modes
func (p PriceType) Valid() bool {
	switch p {
	case PriceTypeManual, PriceTypeGrainEntry, PriceTypeCurrentMarket:
		return true
	}
	return false
}

// Scope narrows which market-data rows apply to a scenario.
// All set fields are combined conjunctively (AND semantics).
type Scope struct {
	CropID     *string `json:"crop_id,omitempty"`
	ClassID    *string `json:"class_id,omitempty"`
	RegionID   *string `json:"region_id,omitempty"`
	TownID     *string `json:"town_id,omitempty"`
	ElevatorID *string `json:"elevator_id,omitempty"`
}

// IsEmpty reports whether no scope dimension is set
func (s Scope) IsEmpty() bool {
	return s.CropID == nil && s.ClassID == nil && s.RegionID == nil &&
		s.TownID == nil && s.ElevatorID == nil
}

// Scenario represents a bounded grain-marketing plan
type Scenario struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Scope              Scope          `json:"scope"`
	StartDate          time.Time      `json:"start_date"`
	EndDate            time.Time      `json:"end_date"`
	ProductionEstimate float64        `json:"production_estimate"` // bushels
	Status             ScenarioStatus `json:"status"`
	Description        string         `json:"description,omitempty"`
	RiskTolerance      string         `json:"risk_tolerance,omitempty"`
	MarketAssumptions  string         `json:"market_assumptions,omitempty"`
	Notes              string         `json:"notes,omitempty"`
	CreatedBy          string         `json:"created_by"` // immutable after creation
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// VirtualSale represents a hypothetical disposition of grain against a scenario.
// Sales are immutable once created; the correction path is delete + re-add.
type VirtualSale struct {
	ID            string    `json:"id"`
	ScenarioID    string    `json:"scenario_id"`
	SaleDate      time.Time `json:"sale_date"`
	VolumeBushels float64   `json:"volume_bushels"`
	PriceType     PriceType `json:"price_type"`
	CashPrice     *float64  `json:"cash_price,omitempty"`
	FuturesPrice  *float64  `json:"futures_price,omitempty"`
	GrainEntryID  *string   `json:"grain_entry_id,omitempty"`
	ElevatorID    *string   `json:"elevator_id,omitempty"`
	TownID        *string   `json:"town_id,omitempty"`
	ContractMonth string    `json:"contract_month,omitempty"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// Basis returns cash price minus futures price, or nil when either is missing
func (s *VirtualSale) Basis() *float64 {
	if s.CashPrice == nil || s.FuturesPrice == nil {
		return nil
	}
	b := *s.CashPrice - *s.FuturesPrice
	return &b
}

// PercentageOfProduction derives the sale's share of the given production estimate.
// Derived from the current estimate at read time, never stored, so it cannot go stale.
func (s *VirtualSale) PercentageOfProduction(productionEstimate float64) float64 {
	if productionEstimate <= 0 {
		return 0
	}
	return s.VolumeBushels / productionEstimate * 100
}

// RecommendationPoint represents a target on the selling timeline
type RecommendationPoint struct {
	ID                   string    `json:"id"`
	ScenarioID           string    `json:"scenario_id"`
	TargetDate           time.Time `json:"target_date"`
	TargetPercentageSold float64   `json:"target_percentage_sold"` // [0, 100]
	Notes                string    `json:"notes,omitempty"`
	CreatedBy            string    `json:"created_by"`
	CreatedAt            time.Time `json:"created_at"`
}

// Evaluation is an immutable snapshot of scenario performance as of a date.
// Re-evaluation inserts a new record; stored figures are never recomputed in place.
type Evaluation struct {
	ID                         string    `json:"id"`
	ScenarioID                 string    `json:"scenario_id"`
	EvaluationDate             time.Time `json:"evaluation_date"`
	IsFinal                    bool      `json:"is_final"`
	PercentageSold             float64   `json:"percentage_sold"`
	TotalVolumeSold            float64   `json:"total_volume_sold"`
	AveragePriceAchieved       float64   `json:"average_price_achieved"`
	MarketAveragePrice         float64   `json:"market_average_price"`
	MarketHighPrice            float64   `json:"market_high_price"`
	MarketLowPrice             float64   `json:"market_low_price"`
	PerformanceScore           float64   `json:"performance_score"` // [0, 100]
	VarianceFromRecommendation float64   `json:"variance_from_recommendation"`
	OpportunitiesMissed        int       `json:"opportunities_missed"`
	TotalRevenue               float64   `json:"total_revenue"`
	UnrealizedValue            float64   `json:"unrealized_value"`
	EvaluationNotes            string    `json:"evaluation_notes"`
	MarketSnapshot             []byte    `json:"-"` // msgpack-encoded market window consumed by this evaluation
	CreatedBy                  string    `json:"created_by"`
	CreatedAt                  time.Time `json:"created_at"`
}

// PricePoint is a single observed market price
type PricePoint struct {
	Date         time.Time `json:"date"`
	CashPrice    float64   `json:"cash_price"`
	FuturesPrice float64   `json:"futures_price"`
	Basis        float64   `json:"basis"`
}

// ScenarioSummary is the read-optimized projection combining a scenario with its
// ledger aggregates and latest evaluation. Derived view, never a source of truth.
type ScenarioSummary struct {
	Scenario         Scenario    `json:"scenario"`
	TotalSales       float64     `json:"total_sales"`
	PercentageSold   float64     `json:"percentage_sold"`
	AveragePrice     float64     `json:"average_price"`
	TotalRevenue     float64     `json:"total_revenue"`
	SalesCount       int         `json:"sales_count"`
	LastSaleDate     *time.Time  `json:"last_sale_date,omitempty"`
	Health           string      `json:"health"`
	LatestEvaluation *Evaluation `json:"latest_evaluation,omitempty"`
}
