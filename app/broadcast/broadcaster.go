// Package broadcast fans ledger and order mutations out to in-process subscribers
// and, when configured, to remote sinks so other instances observe them too.
package broadcast

import (
	"context"
	"inventory-service/app/domain"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Wildcard matches any collection or event type in a subscription.
const Wildcard = "*"

type Handler func(ctx context.Context, evt domain.Event)

type subscription struct {
	id         uint64
	collection string
	eventType  string
	handler    Handler
}

func (s subscription) matches(evt domain.Event) bool {
	return (s.collection == Wildcard || s.collection == evt.Collection) &&
		(s.eventType == Wildcard || s.eventType == string(evt.Event))
}

type Broadcaster struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	sinks  []domain.EventSink
	origin string
	now    func() time.Time
}

func New(origin string, sinks ...domain.EventSink) *Broadcaster {
	return &Broadcaster{
		origin: origin,
		sinks:  sinks,
		now:    time.Now,
	}
}

// AddSink attaches a sink for events published from now on.
func (b *Broadcaster) AddSink(sink domain.EventSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks[:len(b.sinks):len(b.sinks)], sink)
}

// Subscribe registers handler for (collection, eventType). Either may be Wildcard.
// The returned func removes the subscription.
func (b *Broadcaster) Subscribe(collection string, eventType string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, collection: collection, eventType: eventType, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish stamps evt, delivers it synchronously to local subscribers in registration
// order and forwards it to every sink. Delivery is best effort; failures are logged.
func (b *Broadcaster) Publish(ctx context.Context, evt domain.Event) {
	if evt.ID == "" {
		if id, err := uuid.NewV4(); err == nil {
			evt.ID = id.String()
		}
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = b.now().UTC()
	}
	if evt.Origin == "" {
		evt.Origin = b.origin
	}

	b.dispatch(ctx, evt)

	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()
	for _, sink := range sinks {
		if err := sink.Forward(ctx, evt); err != nil {
			slog.WarnContext(ctx, "[broadcaster] Publish", "forward", err, "collection", evt.Collection, "event", evt.Event)
		}
	}
}

// Deliver hands an event received from another instance to local subscribers only.
func (b *Broadcaster) Deliver(ctx context.Context, evt domain.Event) {
	if evt.Origin == b.origin {
		return
	}
	b.dispatch(ctx, evt)
}

func (b *Broadcaster) dispatch(ctx context.Context, evt domain.Event) {
	b.mu.RLock()
	matched := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.matches(evt) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range matched {
		b.invoke(ctx, s, evt)
	}
}

func (b *Broadcaster) invoke(ctx context.Context, s subscription, evt domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "[broadcaster] dispatch", "subscriberPanic", r, "collection", evt.Collection, "event", evt.Event)
		}
	}()
	s.handler(ctx, evt)
}

func (b *Broadcaster) Origin() string {
	return b.origin
}

func (b *Broadcaster) Close() error {
	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()

	var firstErr error
	for _, sink := range sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Recorder keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *Recorder) Handle(_ context.Context, evt domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Filter returns recorded events of one collection in delivery order.
func (r *Recorder) Filter(collection string) []domain.Event {
	var out []domain.Event
	for _, evt := range r.Events() {
		if evt.Collection == collection {
			out = append(out, evt)
		}
	}
	return out
}
