package events

import (
	"sync"
	"time"
)

// EventType names a change the xDS engine and audit tooling might care
// about. The set is domain-scoped to the control plane: resource
// mutations that must trigger a snapshot rebuild, plus secret lifecycle
// notifications consumed by rotation tooling.
type EventType string

const (
	EventDefinitionCreated   EventType = "definition.created"
	EventDefinitionUpdated   EventType = "definition.updated"
	EventDefinitionDeleted   EventType = "definition.deleted"
	EventXDSRebuildRequested EventType = "xds.rebuild_requested"
	EventSecretCreated       EventType = "secret.created"
	EventSecretRotated       EventType = "secret.rotated"
	EventSecretDeleted       EventType = "secret.deleted"
)

// Event is one change notification published by the materializer (or
// secret lifecycle code) for the xDS engine and audit tooling to react
// to.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker fans a single publish out to every active subscriber. The xDS
// server holds exactly one subscription for its whole lifetime and
// triggers a full cache rebuild on every event it receives; a slow or
// stuck subscriber drops events rather than blocking the publisher,
// since the periodic full rebuild (pkg/xds/server) converges on missed
// signals anyway.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

// PublishRebuild is the convenience the materializer calls after every
// committed transaction. The payload carries only enough metadata for
// logging — the xDS engine always rebuilds its cache from the
// repositories rather than from event contents, so a dropped or
// reordered event is harmless.
func (b *Broker) PublishRebuild(reason, resourceID string) {
	b.Publish(&Event{
		Type:     EventXDSRebuildRequested,
		Message:  reason,
		Metadata: map[string]string{"resource_id": resourceID},
	})
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
