package event

import (
	"reflect"
	"sync"
)

// Event is any value emitted by a simulation subsystem. Concrete types live in
// events.go; subscribers register per concrete type.
type Event any

// Bus is a double-buffered event bus. Events emitted in tick N are delivered
// to subscribers at the start of tick N+1, so handlers always observe a world
// that has finished the tick that produced the event.
//
// Emit and DispatchAll run on the scheduler goroutine only; Subscribe may be
// called from any goroutine before or after the scheduler starts.
type Bus struct {
	mu       sync.Mutex // protects handler registration only
	front    map[reflect.Type][]Event
	back     map[reflect.Type][]Event
	handlers map[reflect.Type][]any
}

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]Event),
		back:     make(map[reflect.Type][]Event),
		handlers: make(map[reflect.Type][]any),
	}
}

// Emit queues an event into the back buffer (delivered next tick).
func (b *Bus) Emit(ev Event) {
	t := reflect.TypeOf(ev)
	b.back[t] = append(b.back[t], ev)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], fn)
}

// SwapBuffers rotates back→front and clears the new back buffer.
// Called once at tick start, before DispatchAll.
func (b *Bus) SwapBuffers() {
	b.front, b.back = b.back, b.front
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
}

// DispatchAll delivers all front-buffer events to their subscribed handlers.
func (b *Bus) DispatchAll() {
	b.mu.Lock()
	handlers := b.handlers
	b.mu.Unlock()
	for t, events := range b.front {
		hs := handlers[t]
		if len(hs) == 0 {
			continue
		}
		for _, ev := range events {
			for _, h := range hs {
				// Safe: Subscribe and Emit key on the same concrete type.
				reflect.ValueOf(h).Call([]reflect.Value{reflect.ValueOf(ev)})
			}
		}
	}
}

// Pending reports the number of events waiting in the back buffer.
func (b *Bus) Pending() int {
	n := 0
	for _, evs := range b.back {
		n += len(evs)
	}
	return n
}
