// Package chord detects simultaneous key chords.
//
// A Manager keeps any number of independent registrations, each a set of keys
// and a callback. It consumes a stream of press and release notifications and
// fires a registration's callback once each time all of its keys become held
// together. Repeated presses of a key that is already down do not fire again;
// releasing any key of the chord re-arms it.
//
// Key identifiers are opaque, case-sensitive strings. The package performs no
// normalization: register exactly the names your Source emits.
//
// A Manager is not safe for concurrent use. Callers that receive notifications
// on several goroutines must serialize access themselves (see internal/hotkey).
package chord

import (
	"fmt"
)

// Manager is the public entry point for registering chords.
type Manager struct {
	registry   *Registry
	dispatcher *Dispatcher

	source     Source
	sub        Subscription
	subscribed bool
	closed     bool
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	source  Source
	onPanic PanicHandler
}

// WithSource attaches the manager to src. The manager subscribes on the first
// successful Add and stays subscribed until Close.
func WithSource(src Source) Option {
	return func(o *managerOptions) { o.source = src }
}

// WithPanicHandler overrides how panicking callbacks are reported.
func WithPanicHandler(h PanicHandler) Option {
	return func(o *managerOptions) { o.onPanic = h }
}

// New creates an empty manager.
func New(opts ...Option) *Manager {
	var o managerOptions
	for _, opt := range opts {
		opt(&o)
	}
	reg := NewRegistry()
	return &Manager{
		registry:   reg,
		dispatcher: NewDispatcher(reg, o.onPanic),
		source:     o.source,
	}
}

// Add registers a chord of keys and returns its id. Duplicate keys collapse
// into one. On invalid input it returns InvalidID and an error wrapping
// ErrInvalidInput, and the manager is left untouched.
func (m *Manager) Add(keys []string, cb func()) (ID, error) {
	if err := validate(keys, cb); err != nil {
		return InvalidID, err
	}
	if m.closed {
		return InvalidID, ErrClosed
	}
	if err := m.subscribe(); err != nil {
		return InvalidID, err
	}

	id := m.registry.allocate()
	m.registry.insert(newRegistration(id, keys, cb))
	return id, nil
}

// AddKey registers a single-key chord.
func (m *Manager) AddKey(key string, cb func()) (ID, error) {
	return m.Add([]string{key}, cb)
}

// Remove withdraws a registration. It reports false for ids that were never
// issued or were already removed.
func (m *Manager) Remove(id ID) bool {
	if id <= InvalidID {
		return false
	}
	return m.registry.remove(id)
}

// Clear removes every registration. Ids are not reissued afterwards.
func (m *Manager) Clear() {
	for _, id := range m.registry.IDs() {
		m.registry.remove(id)
	}
}

// Len returns the number of registrations.
func (m *Manager) Len() int { return m.registry.Len() }

// IDs returns the live registration ids in registration order.
func (m *Manager) IDs() []ID { return m.registry.IDs() }

// Keys returns the keys of registration id.
func (m *Manager) Keys(id ID) ([]string, bool) {
	reg, ok := m.registry.get(id)
	if !ok {
		return nil, false
	}
	return reg.Keys(), true
}

// Press delivers a key-down notification.
func (m *Manager) Press(key string) int { return m.dispatcher.Press(key) }

// Release delivers a key-up notification.
func (m *Manager) Release(key string) int { return m.dispatcher.Release(key) }

// ReleaseAll forgets every held key and re-arms every chord, for when the
// input source can no longer be trusted (focus loss, source restart).
func (m *Manager) ReleaseAll() { m.dispatcher.ReleaseAll() }

// Close detaches from the source. Registrations are kept but no further
// Add is accepted.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if m.sub == nil {
		return nil
	}
	sub := m.sub
	m.sub = nil
	if err := sub.Close(); err != nil {
		return fmt.Errorf("close subscription: %w", err)
	}
	return nil
}

func (m *Manager) subscribe() error {
	if m.subscribed || m.source == nil {
		return nil
	}
	sub, err := m.source.Subscribe(m.dispatcher.Handler())
	if err != nil {
		return fmt.Errorf("subscribe to key source: %w", err)
	}
	m.sub = sub
	m.subscribed = true
	return nil
}

func validate(keys []string, cb func()) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: no keys", ErrInvalidInput)
	}
	for i, k := range keys {
		if k == "" {
			return fmt.Errorf("%w: empty key at position %d", ErrInvalidInput, i)
		}
	}
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrInvalidInput)
	}
	return nil
}
