package interaction

import (
	"fmt"
	"sync"

	"github.com/georgepadayatti/signpad/geometry"
)

// EventKind identifies a pointer event delivered to listeners.
type EventKind int

const (
	PointerMoveEvent EventKind = iota
	PointerUpEvent
)

func (k EventKind) String() string {
	switch k {
	case PointerMoveEvent:
		return "pointermove"
	case PointerUpEvent:
		return "pointerup"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Listener receives the pointer position of an event.
type Listener func(p geometry.Point)

// PointerTarget is the surface gestures listen on. Listen returns a function
// that removes the listener; calling it more than once is harmless.
type PointerTarget interface {
	Listen(kind EventKind, fn func(p geometry.Point)) (remove func())
}

// Dispatcher is an in-memory PointerTarget. Events are delivered
// synchronously in registration order.
type Dispatcher struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[EventKind][]registration
}

type registration struct {
	id uint64
	fn Listener
}

// NewDispatcher creates a Dispatcher with no listeners.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[EventKind][]registration)}
}

// Listen implements PointerTarget.
func (d *Dispatcher) Listen(kind EventKind, fn func(p geometry.Point)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.listeners[kind] = append(d.listeners[kind], registration{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		regs := d.listeners[kind]
		for i, r := range regs {
			if r.id == id {
				d.listeners[kind] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch delivers an event to the listeners registered for kind at the
// time of the call. Listeners may remove themselves while running.
func (d *Dispatcher) Dispatch(kind EventKind, p geometry.Point) {
	d.mu.Lock()
	regs := append([]registration(nil), d.listeners[kind]...)
	d.mu.Unlock()

	for _, r := range regs {
		r.fn(p)
	}
}

// Count returns how many listeners are registered for kind.
func (d *Dispatcher) Count(kind EventKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[kind])
}
