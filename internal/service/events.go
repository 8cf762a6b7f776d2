package service

import (
	"context"
	"sync"

	"github.com/tazhate/fiscalbot/internal/domain"
)

// ChangeEvent describes a committed change to an entity. Entity holds the
// saved value and is nil on deletion.
type ChangeEvent struct {
	EntityType domain.EntityType
	EntityID   string
	Action     domain.AuditAction
	Entity     any
}

// Events fans change notifications out to subscribers. Handlers run
// synchronously in subscription order and must not block for long.
type Events struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(context.Context, ChangeEvent)
	order  []int
}

func NewEvents() *Events {
	return &Events{subs: make(map[int]func(context.Context, ChangeEvent))}
}

// Subscribe registers fn and returns the function that removes it.
func (e *Events) Subscribe(fn func(context.Context, ChangeEvent)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	e.order = append(e.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.subs, id)
			for i, v := range e.order {
				if v == id {
					e.order = append(e.order[:i], e.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish is a no-op on a nil receiver.
func (e *Events) Publish(ctx context.Context, ev ChangeEvent) {
	if e == nil {
		return
	}
	e.mu.RLock()
	handlers := make([]func(context.Context, ChangeEvent), 0, len(e.order))
	for _, id := range e.order {
		handlers = append(handlers, e.subs[id])
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}
