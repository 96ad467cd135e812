// Package event provides the in-process bus connecting the dispatch service
// to realtime and notification consumers.
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	wrap "github.com/olzhas-a/dispatch-core/pkg/logger/wrapper"
)

// Handler consumes one domain event. Returned errors are logged, never
// propagated back to the publisher.
type Handler func(ctx context.Context, e models.Event) error

// Bus is an in-process publish/subscribe fan-out. Publishing never blocks the
// caller and a failing handler cannot affect other handlers or the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	l        logger.Logger
}

func NewBus(l logger.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		l:        l,
	}
}

// Subscribe registers a handler for an event type. Registration normally
// happens once at startup, before the first Publish.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Publish dispatches the event to all subscribers of its type. Each handler
// runs on its own goroutine, detached from the publisher's context lifetime
// so an already-answered HTTP request does not cancel notification delivery.
func (b *Bus) Publish(ctx context.Context, e models.Event) {
	b.mu.RLock()
	hs := b.handlers[e.EventType()]
	b.mu.RUnlock()

	if len(hs) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, h := range hs {
		go b.run(ctx, h, e)
	}
}

func (b *Bus) run(ctx context.Context, h Handler, e models.Event) {
	defer func() {
		if p := recover(); p != nil {
			b.l.Error(ctx, "event handler panicked", fmt.Errorf("panic: %v", p), "event_type", e.EventType())
		}
	}()

	if err := h(ctx, e); err != nil {
		b.l.Error(wrap.ErrorCtx(ctx, err), "event handler failed", err, "event_type", e.EventType())
	}
}
