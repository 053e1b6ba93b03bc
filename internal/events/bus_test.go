package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	ch, cancel := bus.Subscribe()
	defer cancel()
	assert.Equal(t, 1, bus.SubscriberCount())

	bus.Publish(ScenarioCreated, &ScenarioCreatedData{
		ScenarioID: "scn-1",
		Name:       "test scenario",
		CreatedBy:  "tester",
	})

	select {
	case event := <-ch:
		assert.Equal(t, ScenarioCreated, event.Type)
		data, ok := event.Data.(*ScenarioCreatedData)
		require.True(t, ok)
		assert.Equal(t, "scn-1", data.ScenarioID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusCancelRemovesSubscriber(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	_, cancel := bus.Subscribe()
	_, cancel2 := bus.Subscribe()
	assert.Equal(t, 2, bus.SubscriberCount())

	cancel()
	assert.Equal(t, 1, bus.SubscriberCount())

	// Cancelling twice is safe
	cancel()
	assert.Equal(t, 1, bus.SubscriberCount())

	cancel2()
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	// Must not block or panic
	bus.Publish(ScenarioDeleted, &ScenarioDeletedData{ScenarioID: "scn-1"})
}

func TestBusDropsWhenSubscriberIsSlow(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	_, cancel := bus.Subscribe()
	defer cancel()

	// Overfill the buffer; Publish must never block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			bus.Publish(SaleRecorded, &SaleRecordedData{ScenarioID: "scn-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestEventJSON(t *testing.T) {
	event := Event{
		Type:      StatusChanged,
		Timestamp: time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC),
		Data:      &StatusChangedData{ScenarioID: "scn-1", From: "active", To: "closed"},
	}

	payload, err := event.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"type":"scenario.status_changed"`)
	assert.Contains(t, string(payload), `"scn-1"`)
}
