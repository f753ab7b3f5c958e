package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_PublishDeliversToSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())

	b.PublishRebuild("definition_created", "def-1")

	select {
	case evt := <-sub:
		assert.Equal(t, EventXDSRebuildRequested, evt.Type)
		assert.Equal(t, "def-1", evt.Metadata["resource_id"])
		assert.False(t, evt.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroker_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub
	assert.False(t, ok, "channel must be closed on unsubscribe")
}

func TestBroker_FanOutToMultipleSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	subA := b.Subscribe()
	subB := b.Subscribe()

	b.Publish(&Event{Type: EventDefinitionUpdated, Message: "updated"})

	for _, sub := range []Subscriber{subA, subB} {
		select {
		case evt := <-sub:
			require.Equal(t, EventDefinitionUpdated, evt.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out event")
		}
	}
}
