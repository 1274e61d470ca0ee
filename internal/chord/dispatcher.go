package chord

import (
	"log"
	"runtime/debug"
)

// Handler receives raw key notifications from a Source.
type Handler interface {
	Press(key string)
	Release(key string)
}

// PanicHandler is told about a callback that panicked during dispatch.
type PanicHandler func(id ID, value any, stack []byte)

func defaultPanicHandler(id ID, value any, stack []byte) {
	log.Printf("Chord: callback for chord %d panicked: %v\n%s", id, value, stack)
}

// Dispatcher applies key notifications to every registration in a Registry
// and fires callbacks on the transition into "all keys held".
type Dispatcher struct {
	registry *Registry
	onPanic  PanicHandler
}

// NewDispatcher returns a dispatcher over registry.
func NewDispatcher(registry *Registry, onPanic PanicHandler) *Dispatcher {
	if onPanic == nil {
		onPanic = defaultPanicHandler
	}
	return &Dispatcher{registry: registry, onPanic: onPanic}
}

// Press marks key down in every chord that contains it and returns how many
// callbacks fired. A repeated press of a key that is already down never fires
// a chord a second time.
func (d *Dispatcher) Press(key string) int {
	fired := 0
	d.registry.forEachMatching(key, func(reg *Registration) {
		if reg.press(key) {
			fired++
			d.invoke(reg)
		}
	})
	return fired
}

// Release marks key up in every chord that contains it, re-arming them, and
// returns how many registrations were affected.
func (d *Dispatcher) Release(key string) int {
	touched := 0
	d.registry.forEachMatching(key, func(reg *Registration) {
		if reg.release(key) {
			touched++
		}
	})
	return touched
}

// ReleaseAll releases every key of every chord.
func (d *Dispatcher) ReleaseAll() {
	for _, reg := range d.registry.snapshot() {
		reg.reset()
	}
}

// Handler returns the dispatcher as a Source-facing Handler.
func (d *Dispatcher) Handler() Handler { return sourceHandler{d} }

// sourceHandler drops the dispatcher's counts, which a Source has no use for.
type sourceHandler struct{ d *Dispatcher }

func (h sourceHandler) Press(key string) { h.d.Press(key) }
func (h sourceHandler) Release(key string) { h.d.Release(key) }

func (d *Dispatcher) invoke(reg *Registration) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			func() {
				defer func() { _ = recover() }()
				d.onPanic(reg.id, r, stack)
			}()
		}
	}()
	reg.callback()
}
