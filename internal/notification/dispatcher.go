// Package notification routes inbound provider notifications to handlers
// registered by event type.
package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Notification is anything the provider sends us out of band.
type Notification interface {
	EventType() string
}

type HandlerFunc[N Notification] func(ctx context.Context, n N) error

// Reconciler applies a notification to local state. handled is false when
// nothing is registered for the notification's type.
type Reconciler[N Notification] interface {
	Reconcile(ctx context.Context, n N) (handled bool, err error)
}

type Dispatcher[N Notification] struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc[N]
}

func NewDispatcher[N Notification]() *Dispatcher[N] {
	return &Dispatcher[N]{handlers: make(map[string]HandlerFunc[N])}
}

// Register binds h to eventType. Registering the same type twice panics.
func (d *Dispatcher[N]) Register(eventType string, h HandlerFunc[N]) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.handlers[eventType]; dup {
		panic(fmt.Sprintf("notification: handler for %q already registered", eventType))
	}
	d.handlers[eventType] = h
}

func (d *Dispatcher[N]) Reconcile(ctx context.Context, n N) (bool, error) {
	d.mu.RLock()
	h, ok := d.handlers[n.EventType()]
	d.mu.RUnlock()

	if !ok {
		return false, nil
	}
	return true, h(ctx, n)
}

// Types lists the registered event types in order.
func (d *Dispatcher[N]) Types() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
