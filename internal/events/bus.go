package events

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/skycms/skycms/internal/foundation/errors"
)

// Bus is a typed in-process event bus for pipeline orchestration.
// Subscriptions are keyed by event type; Publish blocks until every
// subscriber has accepted the event or the context is canceled. It is
// not durable: events published while nobody listens are dropped.
type Bus struct {
	mu     sync.RWMutex
	subs   map[reflect.Type]map[uint64]chan any
	nextID atomic.Uint64
	closed atomic.Bool
	once   sync.Once
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type]map[uint64]chan any)}
}

// Subscribe registers for events of concrete type T. The returned
// channel receives matching events until unsubscribe is called or the
// bus closes; both close the channel.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	out := make(chan T, buffer)
	if b.closed.Load() {
		close(out)
		return out, func() {}
	}

	eventType := reflect.TypeFor[T]()
	raw := make(chan any, buffer)
	id := b.nextID.Add(1)

	b.mu.Lock()
	// Re-check under the lock: a concurrent Close must not leave a
	// subscriber registered whose channel will never be closed.
	if b.closed.Load() {
		b.mu.Unlock()
		close(out)
		return out, func() {}
	}
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]chan any)
	}
	b.subs[eventType][id] = raw
	b.mu.Unlock()

	// Typed delivery loop; exits when raw closes.
	go func() {
		defer close(out)
		for evt := range raw {
			out <- evt.(T)
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if typeSubs, ok := b.subs[eventType]; ok {
				if ch, ok := typeSubs[id]; ok {
					delete(typeSubs, id)
					close(ch)
				}
				if len(typeSubs) == 0 {
					delete(b.subs, eventType)
				}
			}
		})
	}
	return out, unsubscribe
}

// SubscriberCount reports the active subscriptions for type T.
func SubscriberCount[T any](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[reflect.TypeFor[T]()])
}

// Publish delivers evt to every subscriber of its concrete type,
// blocking per subscriber until accepted or ctx is canceled.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return errors.ValidationError("event cannot be nil").Build()
	}
	if b.closed.Load() {
		return errors.RuntimeError("event bus is closed").Build()
	}

	b.mu.RLock()
	typeSubs := b.subs[reflect.TypeOf(evt)]
	targets := make([]chan any, 0, len(typeSubs))
	for _, ch := range typeSubs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- evt:
		case <-ctx.Done():
			return errors.WrapError(ctx.Err(), errors.CategoryRuntime, "event publish canceled").
				WithContext("event_type", reflect.TypeOf(evt).String()).
				Build()
		}
	}
	return nil
}

// Close shuts the bus down and closes all subscription channels.
// Publishing after Close returns an error; Close is idempotent.
func (b *Bus) Close() {
	b.once.Do(func() {
		b.closed.Store(true)

		b.mu.Lock()
		defer b.mu.Unlock()
		for _, typeSubs := range b.subs {
			for _, ch := range typeSubs {
				close(ch)
			}
		}
		b.subs = make(map[reflect.Type]map[uint64]chan any)
	})
}
