package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericscottllc/triggergrain/internal/domain"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from domain.ScenarioStatus
		to   domain.ScenarioStatus
		want bool
	}{
		{"planning to active", domain.StatusPlanning, domain.StatusActive, true},
		{"active to closed", domain.StatusActive, domain.StatusClosed, true},
		{"closed to evaluated", domain.StatusClosed, domain.StatusEvaluated, true},
		{"planning to closed skips active", domain.StatusPlanning, domain.StatusClosed, false},
		{"planning to evaluated", domain.StatusPlanning, domain.StatusEvaluated, false},
		{"active to planning reverses", domain.StatusActive, domain.StatusPlanning, false},
		{"closed to active reverses", domain.StatusClosed, domain.StatusActive, false},
		{"evaluated is terminal", domain.StatusEvaluated, domain.StatusClosed, false},
		{"self transition", domain.StatusActive, domain.StatusActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCanUserTransition_ExcludesEvaluated(t *testing.T) {
	// The only edge into evaluated belongs to the final evaluation
	assert.True(t, CanTransition(domain.StatusClosed, domain.StatusEvaluated))
	assert.False(t, CanUserTransition(domain.StatusClosed, domain.StatusEvaluated))

	assert.True(t, CanUserTransition(domain.StatusPlanning, domain.StatusActive))
	assert.True(t, CanUserTransition(domain.StatusActive, domain.StatusClosed))
}
