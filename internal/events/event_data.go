// Package events provides the typed event bus connecting scenario mutations
// to stream consumers.
package events

import (
	"encoding/json"
	"time"
)

// EventType identifies a kind of system event
type EventType string

const (
	ScenarioCreated       EventType = "scenario.created"
	ScenarioDeleted       EventType = "scenario.deleted"
	StatusChanged         EventType = "scenario.status_changed"
	SaleRecorded          EventType = "scenario.sale_recorded"
	SaleDeleted           EventType = "scenario.sale_deleted"
	RecommendationAdded   EventType = "scenario.recommendation_added"
	RecommendationDeleted EventType = "scenario.recommendation_deleted"
	EvaluationCompleted   EventType = "scenario.evaluation_completed"
)

// EventData is the interface that all event data types must implement.
// This allows type-safe event payloads while keeping the bus generic.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// ScenarioCreatedData contains data for ScenarioCreated events
type ScenarioCreatedData struct {
	ScenarioID string `json:"scenario_id"`
	Name       string `json:"name"`
	CreatedBy  string `json:"created_by"`
}

// EventType returns the event type for ScenarioCreatedData
func (d *ScenarioCreatedData) EventType() EventType { return ScenarioCreated }

// ScenarioDeletedData contains data for ScenarioDeleted events
type ScenarioDeletedData struct {
	ScenarioID string `json:"scenario_id"`
}

// EventType returns the event type for ScenarioDeletedData
func (d *ScenarioDeletedData) EventType() EventType { return ScenarioDeleted }

// StatusChangedData contains data for StatusChanged events
type StatusChangedData struct {
	ScenarioID string `json:"scenario_id"`
	From       string `json:"from"`
	To         string `json:"to"`
}

// EventType returns the event type for StatusChangedData
func (d *StatusChangedData) EventType() EventType { return StatusChanged }

// SaleRecordedData contains data for SaleRecorded events
type SaleRecordedData struct {
	ScenarioID    string  `json:"scenario_id"`
	SaleID        string  `json:"sale_id"`
	VolumeBushels float64 `json:"volume_bushels"`
}

// EventType returns the event type for SaleRecordedData
func (d *SaleRecordedData) EventType() EventType { return SaleRecorded }

// SaleDeletedData contains data for SaleDeleted events
type SaleDeletedData struct {
	ScenarioID string `json:"scenario_id"`
	SaleID     string `json:"sale_id"`
}

// EventType returns the event type for SaleDeletedData
func (d *SaleDeletedData) EventType() EventType { return SaleDeleted }

// RecommendationAddedData contains data for RecommendationAdded events
type RecommendationAddedData struct {
	ScenarioID       string  `json:"scenario_id"`
	RecommendationID string  `json:"recommendation_id"`
	TargetPercentage float64 `json:"target_percentage"`
}

// EventType returns the event type for RecommendationAddedData
func (d *RecommendationAddedData) EventType() EventType { return RecommendationAdded }

// RecommendationDeletedData contains data for RecommendationDeleted events
type RecommendationDeletedData struct {
	ScenarioID       string `json:"scenario_id"`
	RecommendationID string `json:"recommendation_id"`
}

// EventType returns the event type for RecommendationDeletedData
func (d *RecommendationDeletedData) EventType() EventType { return RecommendationDeleted }

// EvaluationCompletedData contains data for EvaluationCompleted events
type EvaluationCompletedData struct {
	ScenarioID       string  `json:"scenario_id"`
	EvaluationID     string  `json:"evaluation_id"`
	PerformanceScore float64 `json:"performance_score"`
	IsFinal          bool    `json:"is_final"`
}

// EventType returns the event type for EvaluationCompletedData
func (d *EvaluationCompletedData) EventType() EventType { return EvaluationCompleted }

// Event is a published event with its envelope
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// JSON renders the event for stream transport
func (e Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}
