// Package timeline owns the ordered set of recommendation points on a
// scenario's selling timeline: current-target lookup, linear interpolation,
// variance from plan, and health classification.
package timeline

import (
	"sort"
	"time"

	"github.com/ericscottllc/triggergrain/internal/domain"
)

// Health classifies actual selling progress against the recommendation timeline
type Health string

const (
	HealthOnTrack  Health = "on-track"
	HealthAhead    Health = "ahead"
	HealthBehind   Health = "behind"
	HealthNoTarget Health = "no-target"
)

// sortedByDate returns a copy of points ordered by target date
func sortedByDate(points []domain.RecommendationPoint) []domain.RecommendationPoint {
	sorted := make([]domain.RecommendationPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TargetDate.Before(sorted[j].TargetDate)
	})
	return sorted
}

// CurrentTarget returns the target of the first point whose date is >= asOf.
// After all targets it returns the last point's target; with no points it
// returns 0.
func CurrentTarget(points []domain.RecommendationPoint, asOf time.Time) float64 {
	if len(points) == 0 {
		return 0
	}
	sorted := sortedByDate(points)
	for _, p := range sorted {
		if !p.TargetDate.Before(asOf) {
			return p.TargetPercentageSold
		}
	}
	return sorted[len(sorted)-1].TargetPercentageSold
}

// Interpolate returns the target percentage at asOf, linearly interpolated by
// elapsed-time ratio between the two surrounding points. Before the first
// point it returns 0; after the last point it returns the last point's value.
func Interpolate(points []domain.RecommendationPoint, asOf time.Time) float64 {
	if len(points) == 0 {
		return 0
	}
	sorted := sortedByDate(points)

	if asOf.Before(sorted[0].TargetDate) {
		return 0
	}
	last := sorted[len(sorted)-1]
	if !asOf.Before(last.TargetDate) {
		return last.TargetPercentageSold
	}

	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		if asOf.Before(next.TargetDate) {
			span := next.TargetDate.Sub(prev.TargetDate)
			if span <= 0 {
				return prev.TargetPercentageSold
			}
			elapsed := asOf.Sub(prev.TargetDate)
			ratio := float64(elapsed) / float64(span)
			return prev.TargetPercentageSold + ratio*(next.TargetPercentageSold-prev.TargetPercentageSold)
		}
	}

	return last.TargetPercentageSold
}

// VarianceFromRecommendation returns actual minus target percentage sold.
// Positive means ahead of plan, negative means behind.
func VarianceFromRecommendation(actualPct float64, points []domain.RecommendationPoint, asOf time.Time) float64 {
	return actualPct - CurrentTarget(points, asOf)
}

// Classify maps variance to a health state. toleranceBand is the +/- band of
// percentage points counted as on-track; it is configuration, not a domain law.
func Classify(actualPct float64, points []domain.RecommendationPoint, asOf time.Time, toleranceBand float64) Health {
	if len(points) == 0 {
		return HealthNoTarget
	}

	variance := VarianceFromRecommendation(actualPct, points, asOf)
	switch {
	case variance > toleranceBand:
		return HealthAhead
	case variance < -toleranceBand:
		return HealthBehind
	default:
		return HealthOnTrack
	}
}
