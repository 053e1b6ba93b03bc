// Package validation provides pure, side-effect-free validation of scenario,
// sale, and recommendation input before it is persisted. No I/O happens here;
// every rule is enforced against the data passed in.
package validation

import (
	"sort"
	"strings"
	"time"

	"github.com/ericscottllc/triggergrain/internal/config"
	"github.com/ericscottllc/triggergrain/internal/domain"
)

const maxScenarioNameLength = 200

// Volume above this multiple of the production estimate fails outright.
const grossVolumeMultiple = 2.0

// Cumulative volume above this multiple of the production estimate raises an
// advisory warning. Oversold scenarios are legal; the ledger clamps remainder.
const oversellWarningMultiple = 1.5

// ScenarioInput is the payload validated before creating or editing a scenario
type ScenarioInput struct {
	Name               string       `json:"name"`
	Scope              domain.Scope `json:"scope"`
	StartDate          time.Time    `json:"start_date"`
	EndDate            time.Time    `json:"end_date"`
	ProductionEstimate float64      `json:"production_estimate"`
	Description        string       `json:"description"`
	RiskTolerance      string       `json:"risk_tolerance"`
	MarketAssumptions  string       `json:"market_assumptions"`
	Notes              string       `json:"notes"`
}

// SaleInput is the payload validated before recording a virtual sale
type SaleInput struct {
	SaleDate      time.Time        `json:"sale_date"`
	VolumeBushels float64          `json:"volume_bushels"`
	PriceType     domain.PriceType `json:"price_type"`
	CashPrice     *float64         `json:"cash_price,omitempty"`
	FuturesPrice  *float64         `json:"futures_price,omitempty"`
	GrainEntryID  *string          `json:"grain_entry_id,omitempty"`
	ElevatorID    *string          `json:"elevator_id,omitempty"`
	TownID        *string          `json:"town_id,omitempty"`
	ContractMonth string           `json:"contract_month"`
}

// RecommendationInput is the payload validated before adding a recommendation point
type RecommendationInput struct {
	TargetDate           time.Time `json:"target_date"`
	TargetPercentageSold float64   `json:"target_percentage_sold"`
	Notes                string    `json:"notes"`
}

// ValidateScenario checks structural and business rules for scenario creation.
// The production sanity cap comes from configuration, not a hard domain law.
func ValidateScenario(in ScenarioInput, cfg config.EvaluationConfig) domain.ValidationResult {
	var result domain.ValidationResult

	name := strings.TrimSpace(in.Name)
	if name == "" {
		result.AddError("name", "name is required")
	} else if len(name) > maxScenarioNameLength {
		result.AddError("name", "name must be 200 characters or fewer")
	}

	switch {
	case in.StartDate.IsZero():
		result.AddError("start_date", "start date is required")
	case in.EndDate.IsZero():
		result.AddError("end_date", "end date is required")
	case !in.EndDate.After(in.StartDate):
		result.AddError("end_date", "end date must be after start date")
	}

	if in.ProductionEstimate <= 0 {
		result.AddError("production_estimate", "production estimate must be greater than zero")
	} else if in.ProductionEstimate > cfg.ProductionSanityCap {
		result.AddError("production_estimate", "production estimate exceeds the configured sanity bound")
	}

	// A scenario must anchor to at least one market-data dimension
	if in.Scope.IsEmpty() {
		result.AddError("granularity", "at least one of crop, class, region, town, or elevator is required")
	}

	return result
}

// ValidateSale checks a virtual sale against the scenario's production estimate,
// window, and existing sales. The 150% cumulative oversell check is advisory.
func ValidateSale(
	in SaleInput,
	productionEstimate float64,
	scenarioStart, scenarioEnd time.Time,
	existingSales []domain.VirtualSale,
	cfg config.EvaluationConfig,
) domain.ValidationResult {
	var result domain.ValidationResult

	if in.SaleDate.IsZero() {
		result.AddError("sale_date", "sale date is required")
	} else if in.SaleDate.Before(scenarioStart) || in.SaleDate.After(scenarioEnd) {
		result.AddError("sale_date", "sale date must fall within the scenario window")
	}

	if in.VolumeBushels <= 0 {
		result.AddError("volume_bushels", "volume must be greater than zero")
	} else if productionEstimate > 0 && in.VolumeBushels > grossVolumeMultiple*productionEstimate {
		result.AddError("volume_bushels", "volume exceeds twice the production estimate")
	} else if productionEstimate > 0 {
		total := in.VolumeBushels
		for _, sale := range existingSales {
			total += sale.VolumeBushels
		}
		if total > oversellWarningMultiple*productionEstimate {
			result.AddWarning("volume_bushels", "cumulative sales exceed 150% of the production estimate")
		}
	}

	if !in.PriceType.Valid() {
		result.AddError("price_type", "price type must be manual, grain_entry, or current_market")
	} else {
		switch in.PriceType {
		case domain.PriceTypeManual:
			if in.CashPrice == nil {
				result.AddError("cash_price", "cash price is required for manual pricing")
			}
		case domain.PriceTypeGrainEntry:
			if in.GrainEntryID == nil || *in.GrainEntryID == "" {
				result.AddError("grain_entry_id", "grain entry reference is required for grain_entry pricing")
			}
		}
	}

	if in.CashPrice != nil {
		if *in.CashPrice < 0 {
			result.AddError("cash_price", "cash price cannot be negative")
		} else if *in.CashPrice > cfg.CashPriceCeiling {
			result.AddError("cash_price", "cash price exceeds the configured ceiling")
		}
	}

	if in.FuturesPrice != nil && *in.FuturesPrice < 0 {
		result.AddError("futures_price", "futures price cannot be negative")
	}

	return result
}

// ValidateRecommendation checks a recommendation point against the scenario window
func ValidateRecommendation(in RecommendationInput, scenarioStart, scenarioEnd time.Time) domain.ValidationResult {
	var result domain.ValidationResult

	if in.TargetDate.IsZero() {
		result.AddError("target_date", "target date is required")
	} else if in.TargetDate.Before(scenarioStart) || in.TargetDate.After(scenarioEnd) {
		result.AddError("target_date", "target date must fall within the scenario window")
	}

	if in.TargetPercentageSold < 0 || in.TargetPercentageSold > 100 {
		result.AddError("target_percentage_sold", "target percentage must be between 0 and 100")
	}

	return result
}

// ValidateRecommendationSequence checks the full set of a scenario's recommendation
// points. Duplicate dates are errors. Selling targets are expected to be
// non-decreasing over time; out-of-sequence targets are flagged as warnings.
func ValidateRecommendationSequence(points []domain.RecommendationPoint) domain.ValidationResult {
	var result domain.ValidationResult

	sorted := make([]domain.RecommendationPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TargetDate.Before(sorted[j].TargetDate)
	})

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.TargetDate.Equal(prev.TargetDate) {
			result.AddError("target_date", "duplicate target date "+cur.TargetDate.Format("2006-01-02"))
			continue
		}
		if cur.TargetPercentageSold < prev.TargetPercentageSold {
			result.AddWarning("target_percentage_sold",
				"target on "+cur.TargetDate.Format("2006-01-02")+" is lower than an earlier target")
		}
	}

	return result
}
