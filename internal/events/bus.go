package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Handler reacts to a delivered event.
type Handler func(ctx context.Context, evt Event) error

// Publisher is the publishing side of the bus.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Subscriber is the subscribing side of the bus.
type Subscriber interface {
	Subscribe(kind Kind, h Handler) (unsubscribe func())
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers events synchronously, in subscription order, on the publisher's goroutine.
// Handler failures are logged and never returned to the publisher.
type Bus struct {
	mu        sync.RWMutex
	subs      map[Kind][]subscription
	nextID    uint64
	closed    bool
	logger    *slog.Logger
	published *prometheus.CounterVec
}

// Option customises a Bus.
type Option func(*Bus)

// WithPublishedCounter counts deliveries per kind and outcome.
func WithPublishedCounter(counter *prometheus.CounterVec) Option {
	return func(b *Bus) { b.published = counter }
}

// NewBus constructs an empty bus.
func NewBus(logger *slog.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{subs: make(map[Kind][]subscription), logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for kind. The returned function removes the subscription.
func (b *Bus) Subscribe(kind Kind, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || h == nil {
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, handler: h})
	return func() { b.unsubscribe(kind, id) }
}

func (b *Bus) unsubscribe(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[kind]
	for i, sub := range list {
		if sub.id == id {
			b.subs[kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish hands evt to every current subscriber of its kind.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(b.subs[evt.Kind()]))
	for _, sub := range b.subs[evt.Kind()] {
		handlers = append(handlers, sub.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		outcome := "delivered"
		if err := b.deliver(ctx, h, evt); err != nil {
			outcome = "failed"
			b.logger.Error("event handler failed",
				slog.String("kind", string(evt.Kind())),
				slog.Any("error", err))
		}
		if b.published != nil {
			b.published.WithLabelValues(string(evt.Kind()), outcome).Inc()
		}
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("events: handler panic: %v", r)
		}
	}()
	return h(ctx, evt)
}

// SubscriberCount reports how many handlers listen for kind.
func (b *Bus) SubscriberCount(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

// Close drops every subscription; later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[Kind][]subscription)
}

// On subscribes a handler typed to a single event variant.
func On[E Event](s Subscriber, fn func(context.Context, E) error) func() {
	var zero E
	return s.Subscribe(zero.Kind(), func(ctx context.Context, evt Event) error {
		typed, ok := evt.(E)
		if !ok {
			return fmt.Errorf("events: unexpected payload %T for %s", evt, zero.Kind())
		}
		return fn(ctx, typed)
	})
}

var (
	_ Publisher  = (*Bus)(nil)
	_ Subscriber = (*Bus)(nil)
)
