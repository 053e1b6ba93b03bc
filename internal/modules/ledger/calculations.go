// Package ledger owns a scenario's virtual-sale list and its derived aggregates.
// All aggregates are pure functions recomputed over the full sale list on every
// read; at this scale no incremental index is needed.
package ledger

import (
	"time"

	"github.com/ericscottllc/triggergrain/internal/domain"
)

// TotalVolume sums sale volume in bushels. Negative volume anomalies are
// clamped to zero so bad rows cannot poison downstream aggregates.
func TotalVolume(sales []domain.VirtualSale) float64 {
	var total float64
	for _, s := range sales {
		if s.VolumeBushels > 0 {
			total += s.VolumeBushels
		}
	}
	return total
}

// WeightedAveragePrice returns the volume-weighted average cash price.
// Returns 0 for an empty list or zero total volume; that is a defined
// outcome, not an error.
func WeightedAveragePrice(sales []domain.VirtualSale) float64 {
	var volume, value float64
	for _, s := range sales {
		if s.VolumeBushels <= 0 {
			continue
		}
		volume += s.VolumeBushels
		if s.CashPrice != nil {
			value += *s.CashPrice * s.VolumeBushels
		}
	}
	if volume == 0 {
		return 0
	}
	return value / volume
}

// TotalRevenue sums cash_price x volume. A missing cash price contributes 0.
func TotalRevenue(sales []domain.VirtualSale) float64 {
	var revenue float64
	for _, s := range sales {
		if s.VolumeBushels <= 0 || s.CashPrice == nil {
			continue
		}
		revenue += *s.CashPrice * s.VolumeBushels
	}
	return revenue
}

// PercentageSold returns total volume as a percentage of the production
// estimate. Returns 0 when the estimate is 0.
func PercentageSold(sales []domain.VirtualSale, productionEstimate float64) float64 {
	if productionEstimate <= 0 {
		return 0
	}
	return TotalVolume(sales) / productionEstimate * 100
}

// RemainingVolume returns the unsold production, clamped at zero for
// oversold scenarios.
func RemainingVolume(sales []domain.VirtualSale, productionEstimate float64) float64 {
	remaining := productionEstimate - TotalVolume(sales)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UnrealizedValue prices the remaining production at the current market price
func UnrealizedValue(sales []domain.VirtualSale, productionEstimate, currentMarketPrice float64) float64 {
	return RemainingVolume(sales, productionEstimate) * currentMarketPrice
}

// FilterToWindow returns the sales whose date falls within [start, end]
// inclusive. The evaluation engine re-validates with this before scoring,
// since out-of-window rows can be persisted when validation is bypassed
// upstream.
func FilterToWindow(sales []domain.VirtualSale, start, end time.Time) []domain.VirtualSale {
	filtered := make([]domain.VirtualSale, 0, len(sales))
	for _, s := range sales {
		if s.SaleDate.Before(start) || s.SaleDate.After(end) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

// LastSaleDate returns the most recent sale date, or nil for an empty list
func LastSaleDate(sales []domain.VirtualSale) *time.Time {
	var last *time.Time
	for i := range sales {
		d := sales[i].SaleDate
		if last == nil || d.After(*last) {
			last = &d
		}
	}
	return last
}
