package bus

import (
	"fmt"
	"sync"

	"github.com/hupe1980/supportmesh/core"
	"github.com/hupe1980/supportmesh/logging"
)

// Handler consumes one event. A non-nil error (or a panic, which the broker
// recovers) is counted as a handler error; it does not affect delivery to
// other subscribers.
type Handler func(event core.Event) error

// Subscription identifies one registered handler. Go functions are not
// comparable, so the token returned by Subscribe is the handler identity used
// by Unsubscribe.
type Subscription struct {
	id        string
	eventType core.EventType
	handler   Handler
}

// EventType returns the event type this subscription listens for.
func (s *Subscription) EventType() core.EventType { return s.eventType }

// Stats are the broker's delivery counters.
type Stats struct {
	Published int64 `json:"published"`
	Delivered int64 `json:"delivered"`
	Errors    int64 `json:"errors"`
}

// Options configures a Bus.
type Options struct {
	// Logger receives delivery diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Bus routes events to subscribers. The subscriber table is protected by a
// mutex scoped to table operations only; the lock is never held across a
// handler invocation.
type Bus struct {
	mu          sync.Mutex
	subscribers map[core.EventType][]*Subscription
	stats       Stats
	logger      logging.Logger
}

// New constructs an empty broker. Create one instance per workflow (or per
// test case) and inject it; there is deliberately no package-level singleton.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bus{
		subscribers: make(map[core.EventType][]*Subscription),
		logger:      opts.Logger,
	}
}

// Subscribe registers handler for eventType and returns the token that
// identifies it for Unsubscribe. Handlers are invoked in subscription order.
func (b *Bus) Subscribe(eventType core.EventType, handler Handler) *Subscription {
	sub := &Subscription{id: core.NewID(), eventType: eventType, handler: handler}
	b.mu.Lock()
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
	count := len(b.subscribers[eventType])
	b.mu.Unlock()
	b.logger.Debug("subscribed", "event_type", string(eventType), "subscribers", count)
	return sub
}

// Unsubscribe removes a previously registered subscription. It reports
// whether the subscription was found. An in-flight Publish that already took
// its snapshot will still deliver to the removed handler once.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[sub.eventType]
	for i, s := range subs {
		if s.id == sub.id {
			b.subscribers[sub.eventType] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	b.logger.Warn("unsubscribe: subscription not found", "event_type", string(sub.eventType))
	return false
}

// Publish constructs an Event and delivers it synchronously to every handler
// registered for eventType at the moment of dispatch. Publishing with zero
// subscribers is not an error but is logged as an undelivered event.
func (b *Bus) Publish(eventType core.EventType, payload any) core.Event {
	event := core.NewEvent(eventType, payload)

	b.mu.Lock()
	b.stats.Published++
	snapshot := make([]*Subscription, len(b.subscribers[eventType]))
	copy(snapshot, b.subscribers[eventType])
	b.mu.Unlock()

	b.logger.Debug("publishing event", "event_type", string(eventType), "event_id", event.ID)

	if len(snapshot) == 0 {
		b.logger.Warn("undelivered event: no subscribers", "event_type", string(eventType), "event_id", event.ID)
		return event
	}

	for _, sub := range snapshot {
		if err := b.invoke(sub, event); err != nil {
			b.mu.Lock()
			b.stats.Errors++
			b.mu.Unlock()
			b.logger.Error("handler error", "event_type", string(eventType), "event_id", event.ID, "error", err)
			continue
		}
		b.mu.Lock()
		b.stats.Delivered++
		b.mu.Unlock()
	}
	return event
}

// invoke runs one handler with a panic boundary so a misbehaving subscriber
// cannot take down the publisher's call stack.
func (b *Bus) invoke(sub *Subscription, event core.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler(event)
}

// Stats returns a copy of the delivery counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// SubscriberCount reports the number of handlers registered for eventType.
func (b *Bus) SubscriberCount(eventType core.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[eventType])
}

// SubscriberCounts reports handler counts for every event type with at least
// one subscriber.
func (b *Bus) SubscriberCounts() map[core.EventType]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[core.EventType]int, len(b.subscribers))
	for t, subs := range b.subscribers {
		if len(subs) > 0 {
			counts[t] = len(subs)
		}
	}
	return counts
}

// Clear removes every subscription. Intended for shutdown and tests.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for _, subs := range b.subscribers {
		removed += len(subs)
	}
	b.subscribers = make(map[core.EventType][]*Subscription)
	b.logger.Info("cleared all subscribers", "removed", removed)
}
