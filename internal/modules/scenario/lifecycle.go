// Package scenario owns scenario records, their lifecycle state machine, and
// the service coordinating sales, recommendations, and summary projections.
package scenario

import (
	"github.com/ericscottllc/triggergrain/internal/domain"
)

// legalTransitions holds every permitted lifecycle edge.
// closed -> evaluated is reachable only through a final evaluation, never
// through a freestanding status set; userTransitions excludes it.
var legalTransitions = map[domain.ScenarioStatus][]domain.ScenarioStatus{
	domain.StatusPlanning: {domain.StatusActive},
	domain.StatusActive:   {domain.StatusClosed},
	domain.StatusClosed:   {domain.StatusEvaluated},
}

// CanTransition reports whether from -> to is a legal lifecycle edge
func CanTransition(from, to domain.ScenarioStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanUserTransition reports whether from -> to may be requested as an explicit
// status set. The evaluated state is excluded: it is entered only as part of a
// final evaluation.
func CanUserTransition(from, to domain.ScenarioStatus) bool {
	if to == domain.StatusEvaluated {
		return false
	}
	return CanTransition(from, to)
}
