package event

import (
	"reflect"
)

// Bus is a synchronous typed event bus. Publish delivers to every subscriber
// of the event's type in subscription order, on the caller's goroutine.
// Accessed only from the tick loop goroutine, no locks.
type Bus struct {
	handlers map[reflect.Type][]*subscriber
	nextID   uint64
}

type subscriber struct {
	id uint64
	fn any
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[reflect.Type][]*subscriber),
	}
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Subscribe registers a typed handler for events of type T.
// The returned func removes the handler; calling it twice is harmless.
func Subscribe[T any](b *Bus, fn func(T)) (unsubscribe func()) {
	t := typeKey[T]()
	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], &subscriber{id: id, fn: fn})
	return func() {
		subs := b.handlers[t]
		for i, s := range subs {
			if s.id == id {
				// copy so an in-flight Publish keeps iterating its own snapshot
				next := make([]*subscriber, 0, len(subs)-1)
				next = append(next, subs[:i]...)
				b.handlers[t] = append(next, subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers event to all current subscribers of T.
// A nil bus drops the event.
func Publish[T any](b *Bus, event T) {
	if b == nil {
		return
	}
	for _, s := range b.handlers[typeKey[T]()] {
		s.fn.(func(T))(event)
	}
}

// Subscribers reports how many handlers are registered for T.
func Subscribers[T any](b *Bus) int {
	return len(b.handlers[typeKey[T]()])
}
