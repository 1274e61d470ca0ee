package binder

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"keychord/internal/chord"
	"keychord/internal/config"
	"keychord/internal/hotkey"
)

type fired struct {
	name   string
	id     chord.ID
	origin string
}

type recorder struct {
	mu    sync.Mutex
	fired []fired
}

func (r *recorder) BroadcastChord(name string, id chord.ID, origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, fired{name, id, origin})
}

func (r *recorder) snapshot() []fired {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fired(nil), r.fired...)
}

func newTestBinder(t *testing.T) (*Binder, *hotkey.Engine, *recorder) {
	t.Helper()
	eng := hotkey.NewEngine(hotkey.WithPlatformHook(false))
	t.Cleanup(func() { _ = eng.Close() })
	rec := &recorder{}
	b := New(eng, rec)
	t.Cleanup(b.Close)
	return b, eng, rec
}

func chordCombo(eng *hotkey.Engine, origin string, keys ...string) int {
	n := 0
	for _, k := range keys {
		n += eng.Handle(hotkey.KeyEvent{Key: k, Down: true, Origin: origin})
	}
	for _, k := range keys {
		eng.Handle(hotkey.KeyEvent{Key: k, Origin: origin})
	}
	return n
}

func TestApplyBindsChords(t *testing.T) {
	b, eng, rec := newTestBinder(t)

	cfg := &config.Config{Chords: []config.ChordConfig{
		{Name: "greet", Hotkey: "ctrl+alt+g", Message: "hello"},
		{Name: "lua", Keys: []string{"shift", "f1"}, Action: config.ActionLua, Script: `chord.log("hi")`},
	}}
	require.Equal(t, 2, b.Apply(cfg))
	require.Equal(t, 2, eng.Len())

	bindings := b.Bindings()
	require.Len(t, bindings, 2)

	require.Equal(t, 1, chordCombo(eng, "remote-1", hotkey.KeyCtrl, hotkey.KeyAlt, "G"))
	require.Equal(t, 1, chordCombo(eng, hotkey.OriginLocal, hotkey.KeyShift, "F1"))

	got := rec.snapshot()
	require.Equal(t, []fired{
		{"greet", bindings["greet"], "remote-1"},
		{"lua", bindings["lua"], hotkey.OriginLocal},
	}, got)
}

func TestApplyReplacesPreviousBindings(t *testing.T) {
	b, eng, rec := newTestBinder(t)

	require.Equal(t, 1, b.Apply(&config.Config{Chords: []config.ChordConfig{
		{Name: "old", Hotkey: "Ctrl+O"},
	}}))
	oldID := b.Bindings()["old"]

	require.Equal(t, 1, b.Apply(&config.Config{Chords: []config.ChordConfig{
		{Name: "new", Hotkey: "Ctrl+N"},
	}}))
	require.Equal(t, 1, eng.Len())
	require.NotContains(t, b.Bindings(), "old")
	require.Greater(t, b.Bindings()["new"], oldID)

	require.Zero(t, chordCombo(eng, hotkey.OriginLocal, hotkey.KeyCtrl, "O"))
	require.Equal(t, 1, chordCombo(eng, hotkey.OriginLocal, hotkey.KeyCtrl, "N"))
	require.Len(t, rec.snapshot(), 1)

	require.Zero(t, b.Apply(&config.Config{}))
	require.Zero(t, eng.Len())
}

func TestApplySkipsBadChords(t *testing.T) {
	b, eng, _ := newTestBinder(t)

	n := b.Apply(&config.Config{Chords: []config.ChordConfig{
		{Name: "ok", Hotkey: "Ctrl+K"},
		{Name: "nokeys", Hotkey: "  "},
		{Name: "bad", Hotkey: "Ctrl+B", Action: "teleport"},
		{Name: "noscript", Hotkey: "Ctrl+L", Action: config.ActionLua},
	}})
	require.Equal(t, 1, n)
	require.Equal(t, 1, eng.Len())
	require.Contains(t, b.Bindings(), "ok")
}

func TestActionRunsAndCloseWaits(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	b, eng, _ := newTestBinder(t)

	out := filepath.Join(t.TempDir(), "ran")
	b.Apply(&config.Config{Chords: []config.ChordConfig{
		{Name: "touch", Hotkey: "Ctrl+T", Action: config.ActionExec, Command: []string{"sh", "-c", "sleep 0.1; echo ok > " + out}},
	}})
	require.Equal(t, 1, chordCombo(eng, hotkey.OriginLocal, hotkey.KeyCtrl, "T"))

	b.Close()
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "ok\n", string(data))

	// Closed binders still notify but start no new actions.
	require.NoError(t, os.Remove(out))
	require.Equal(t, 1, chordCombo(eng, hotkey.OriginLocal, hotkey.KeyCtrl, "T"))
	_, err = os.Stat(out)
	require.True(t, os.IsNotExist(err))
}

func TestCloseCancelsActionsAfterGrace(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	b, eng, _ := newTestBinder(t)
	b.SetGrace(50 * time.Millisecond)

	out := filepath.Join(t.TempDir(), "ran")
	b.Apply(&config.Config{Chords: []config.ChordConfig{
		{Name: "slow", Hotkey: "Ctrl+S", Action: config.ActionExec, Command: []string{"sh", "-c", "sleep 10; echo ok > " + out}},
	}})
	require.Equal(t, 1, chordCombo(eng, hotkey.OriginLocal, hotkey.KeyCtrl, "S"))

	start := time.Now()
	b.Close()
	require.Less(t, time.Since(start), 5*time.Second)
	_, err := os.Stat(out)
	require.True(t, os.IsNotExist(err))
}

func TestNilNotifier(t *testing.T) {
	eng := hotkey.NewEngine(hotkey.WithPlatformHook(false))
	t.Cleanup(func() { _ = eng.Close() })
	b := New(eng, nil)
	t.Cleanup(b.Close)

	b.Apply(&config.Config{Chords: []config.ChordConfig{{Name: "x", Hotkey: "Alt+X"}}})
	require.Equal(t, 1, chordCombo(eng, hotkey.OriginLocal, hotkey.KeyAlt, "X"))
}
