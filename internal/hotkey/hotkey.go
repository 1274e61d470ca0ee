// Package hotkey feeds global keyboard input into chord detection.
//
// An Engine owns a chord.Manager and acts as its key source. Key events from
// the platform hook and from remote clients are queued and processed on a
// single goroutine, so the manager sees one notification at a time.
package hotkey

import (
	"errors"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"keychord/internal/chord"
)

var (
	// ErrClosed is returned by Feed after the engine has been closed.
	ErrClosed = errors.New("hotkey engine closed")

	// ErrQueueFull is returned by Feed when the event queue cannot take more events.
	ErrQueueFull = errors.New("hotkey event queue full")
)

const defaultQueueSize = 256

// OriginLocal marks events produced by this machine's platform hook.
const OriginLocal = "local"

// KeyEvent is one press or release of a named key.
type KeyEvent struct {
	Key    string
	Down   bool
	Origin string
}

// Callback is run when a chord completes. ev is the event that completed it.
type Callback func(ev KeyEvent)

// Engine serializes key events into a chord.Manager. It is safe for concurrent
// use, including from inside chord callbacks.
type Engine struct {
	mu      sync.Mutex
	chords  *chord.Manager
	handler chord.Handler
	pending []Callback

	events    chan KeyEvent
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	running   atomic.Bool
	paused    atomic.Bool

	platformHook bool
	hookStarted  bool
	tap          func(KeyEvent)

	// physical keys currently down per name, so LCTRL and RCTRL share CTRL
	physMu   sync.Mutex
	physical map[string]map[uint32]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithPlatformHook enables or disables the OS keyboard hook. It is enabled by default.
func WithPlatformHook(enabled bool) Option {
	return func(e *Engine) { e.platformHook = enabled }
}

// WithQueueSize sets how many events may wait for processing.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.events = make(chan KeyEvent, n)
		}
	}
}

// WithTap registers fn to observe every event produced by the platform hook,
// before it is queued. Used to forward local input to another machine.
func WithTap(fn func(KeyEvent)) Option {
	return func(e *Engine) { e.tap = fn }
}

// NewEngine creates an engine. Nothing is started until the first chord is registered.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		events:       make(chan KeyEvent, defaultQueueSize),
		done:         make(chan struct{}),
		platformHook: true,
		physical:     make(map[string]map[uint32]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.chords = chord.New(chord.WithSource(e))
	return e
}

// Register adds a chord. cb runs on the engine goroutine after the event that
// completed the chord has been fully processed.
func (e *Engine) Register(keys []string, cb Callback) (chord.ID, error) {
	var queued func()
	if cb != nil {
		queued = func() { e.pending = append(e.pending, cb) }
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chords.Add(keys, queued)
}

// Unregister removes a chord, reporting whether it existed.
func (e *Engine) Unregister(id chord.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chords.Remove(id)
}

// Clear removes every chord.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chords.Clear()
}

// Len returns the number of registered chords.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chords.Len()
}

// ReleaseAll forgets every held key.
func (e *Engine) ReleaseAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chords.ReleaseAll()
}

// SetPaused suspends or resumes callbacks. Key state keeps being tracked while
// paused, so a chord held across a resume does not fire until re-pressed.
func (e *Engine) SetPaused(paused bool) {
	if e.paused.Swap(paused) != paused {
		log.Printf("Hotkey Engine: paused=%v", paused)
	}
}

// Paused reports whether callbacks are suspended.
func (e *Engine) Paused() bool { return e.paused.Load() }

// Feed queues an event for the engine goroutine. Events fed before the first
// chord is registered are dropped.
func (e *Engine) Feed(ev KeyEvent) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	if !e.running.Load() {
		return nil
	}
	select {
	case e.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// feedLocal is called by the platform hooks. code identifies the physical key;
// several physical keys may share one name. A release is only passed on once
// the last of them goes up.
func (e *Engine) feedLocal(key string, code uint32, down bool) {
	if !e.trackPhysical(key, code, down) {
		return
	}
	ev := KeyEvent{Key: key, Down: down, Origin: OriginLocal}
	if e.tap != nil {
		e.tap(ev)
	}
	if err := e.Feed(ev); errors.Is(err, ErrQueueFull) {
		log.Printf("Hotkey Engine: dropped %s event for %s: %v", direction(down), key, err)
	}
}

func (e *Engine) trackPhysical(key string, code uint32, down bool) bool {
	e.physMu.Lock()
	defer e.physMu.Unlock()

	codes := e.physical[key]
	if down {
		if codes == nil {
			codes = make(map[uint32]struct{})
			e.physical[key] = codes
		}
		codes[code] = struct{}{}
		return true
	}
	delete(codes, code)
	if len(codes) > 0 {
		return false
	}
	delete(e.physical, key)
	return true
}

// Handle processes one event synchronously and returns the number of
// callbacks it ran.
func (e *Engine) Handle(ev KeyEvent) int {
	e.mu.Lock()
	if e.handler == nil {
		e.mu.Unlock()
		return 0
	}
	if ev.Down {
		e.handler.Press(ev.Key)
	} else {
		e.handler.Release(ev.Key)
	}
	fired := e.pending
	e.pending = nil
	e.mu.Unlock()

	if len(fired) == 0 || e.paused.Load() {
		return 0
	}
	for _, cb := range fired {
		run(cb, ev)
	}
	return len(fired)
}

// Subscribe implements chord.Source. The manager calls it with e.mu held.
func (e *Engine) Subscribe(h chord.Handler) (chord.Subscription, error) {
	e.handler = h
	e.startOnce.Do(func() {
		e.running.Store(true)
		go e.loop()
		if e.platformHook {
			if err := e.startPlatform(); err != nil {
				log.Printf("Warning: Hotkey Engine failed to start platform hook: %v", err)
			} else {
				e.hookStarted = true
			}
		}
	})
	return subscription{e}, nil
}

// Close stops the engine goroutine and the platform hook.
func (e *Engine) Close() error {
	e.mu.Lock()
	err := e.chords.Close()
	e.mu.Unlock()
	e.stop()
	return err
}

func (e *Engine) loop() {
	for {
		select {
		case ev := <-e.events:
			e.Handle(ev)
		case <-e.done:
			return
		}
	}
}

func (e *Engine) stop() {
	e.stopOnce.Do(func() {
		close(e.done)
		e.running.Store(false)
		if e.hookStarted {
			e.stopPlatform()
		}
	})
}

type subscription struct{ e *Engine }

func (s subscription) Close() error {
	s.e.stop()
	return nil
}

func run(cb Callback, ev KeyEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Hotkey Engine: chord callback panicked: %v\n%s", r, debug.Stack())
		}
	}()
	cb(ev)
}

func direction(down bool) string {
	if down {
		return "press"
	}
	return "release"
}
