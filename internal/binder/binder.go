// Package binder registers configured chords with the hotkey engine.
package binder

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"keychord/internal/action"
	"keychord/internal/chord"
	"keychord/internal/config"
	"keychord/internal/hotkey"
)

// DefaultGrace is how long Close waits for running actions before cancelling them
const DefaultGrace = 5 * time.Second

// Engine is the registration surface of hotkey.Engine
type Engine interface {
	Register(keys []string, cb hotkey.Callback) (chord.ID, error)
	Unregister(id chord.ID) bool
}

// Notifier is told about every chord that fires
type Notifier interface {
	BroadcastChord(name string, id chord.ID, origin string)
}

// Binder keeps the engine's registrations in step with the config
type Binder struct {
	engine   Engine
	notifier Notifier

	ctx    context.Context
	cancel context.CancelFunc
	grace  time.Duration
	runMu  sync.Mutex
	closed bool
	wg     sync.WaitGroup

	mu  sync.Mutex
	ids map[string]chord.ID
}

// New creates a binder. notifier may be nil.
func New(engine Engine, notifier Notifier) *Binder {
	ctx, cancel := context.WithCancel(context.Background())
	return &Binder{
		engine:   engine,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
		grace:    DefaultGrace,
		ids:      make(map[string]chord.ID),
	}
}

// SetGrace changes how long Close waits for running actions. Call before Close.
func (b *Binder) SetGrace(d time.Duration) {
	b.grace = d
}

// Apply replaces the binder's registrations with the chords in cfg and
// returns how many were bound. Chords that fail to build or register are
// logged and skipped.
func (b *Binder) Apply(cfg *config.Config) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, id := range b.ids {
		b.engine.Unregister(id)
		delete(b.ids, name)
	}

	for _, ch := range cfg.Chords {
		act, err := action.Build(ch)
		if err != nil {
			log.Printf("Binder: skipping chord %q: %v", ch.Name, err)
			continue
		}

		name := ch.Name
		bound := new(atomic.Int64)
		id, err := b.engine.Register(ch.KeyList(), func(ev hotkey.KeyEvent) {
			b.fire(name, chord.ID(bound.Load()), ev, act)
		})
		if err != nil {
			log.Printf("Binder: failed to register chord %q: %v", name, err)
			continue
		}
		bound.Store(int64(id))
		b.ids[name] = id
		log.Printf("Binder: registered chord %q (%v) as #%d", name, ch.KeyList(), id)
	}
	return len(b.ids)
}

func (b *Binder) fire(name string, id chord.ID, ev hotkey.KeyEvent, act action.Action) {
	log.Printf("Binder: chord %q fired (origin %s)", name, ev.Origin)
	if b.notifier != nil {
		b.notifier.BroadcastChord(name, id, ev.Origin)
	}

	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.closed {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(b.ctx, action.DefaultTimeout)
		defer cancel()
		if err := act.Run(ctx); err != nil {
			log.Printf("Binder: action for chord %q failed: %v", name, err)
		}
	}()
}

// Bindings returns the current chord name to id mapping
func (b *Binder) Bindings() map[string]chord.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]chord.ID, len(b.ids))
	for name, id := range b.ids {
		out[name] = id
	}
	return out
}

// Close stops starting new actions and waits up to the grace period for
// running ones to finish. Actions still running after that are cancelled.
func (b *Binder) Close() {
	b.runMu.Lock()
	b.closed = true
	b.runMu.Unlock()

	finished := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(b.grace):
		log.Printf("Binder: actions still running after %v, cancelling", b.grace)
	}
	b.cancel()
	<-finished
}
