// Package event delivers ledger change notifications to in-process subscribers.
package event

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stockledger/internal/domain"
	"stockledger/internal/port"
)

// Handler receives a published event. Handlers run synchronously on the
// publishing goroutine, in subscription order.
type Handler func(ctx context.Context, ev domain.LedgerEvent)

// Bus is an in-process fan-out of LedgerEvents.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]subscription
	logger   logrus.FieldLogger
	now      func() time.Time
}

type subscription struct {
	id    int
	types map[domain.LedgerEventType]bool
	fn    Handler
}

// NewBus creates an empty Bus.
func NewBus(logger logrus.FieldLogger) *Bus {
	return &Bus{
		handlers: make(map[int]subscription),
		logger:   logger.WithField("component", "event.bus"),
		now:      time.Now,
	}
}

var _ port.EventPublisher = (*Bus)(nil)

// Subscribe registers fn for the given event types, or for every type when
// none are given. The returned func removes the subscription.
func (b *Bus) Subscribe(fn Handler, types ...domain.LedgerEventType) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscription{id: b.nextID, fn: fn}
	if len(types) > 0 {
		sub.types = make(map[domain.LedgerEventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	b.handlers[sub.id] = sub

	return func() {
		b.mu.Lock()
		delete(b.handlers, sub.id)
		b.mu.Unlock()
	}
}

// Publish delivers ev to every matching subscriber. A panicking handler is
// logged and does not stop delivery to the rest.
func (b *Bus) Publish(ctx context.Context, ev domain.LedgerEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = b.now().UTC()
	}

	b.mu.RLock()
	subs := make([]subscription, 0, len(b.handlers))
	for _, s := range b.handlers {
		if s.types == nil || s.types[ev.Type] {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	slices.SortFunc(subs, func(x, y subscription) int { return cmp.Compare(x.id, y.id) })
	for _, s := range subs {
		b.deliver(ctx, s, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, ev domain.LedgerEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{
				"event": ev.Type,
				"panic": r,
			}).Error("event handler panicked")
		}
	}()
	s.fn(ctx, ev)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, domain.LedgerEvent) {}
