package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[general]
listen_addr = "127.0.0.1:9999"
tray = false

[[chords]]
name = "terminal"
hotkey = "Ctrl+Alt+T"
action = "exec"
command = ["xterm", "-e", "htop"]

[[chords]]
name = "hello"
keys = ["Shift", "F1"]
action = "lua"
script = "chord.log('hi')"

[[chords]]
name = "note"
hotkey = "Win+N"
message = "noted"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadReadsChords(t *testing.T) {
	m, err := NewManager(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.NoError(t, m.Load())

	cfg := m.Get()
	require.Equal(t, "127.0.0.1:9999", cfg.General.ListenAddr)
	require.False(t, cfg.General.Tray)
	require.True(t, cfg.General.PlatformHook, "default kept")

	require.Len(t, cfg.Chords, 3)
	require.Equal(t, []string{"CTRL", "ALT", "T"}, cfg.Chords[0].KeyList())
	require.Equal(t, []string{"xterm", "-e", "htop"}, cfg.Chords[0].Command)
	require.Equal(t, []string{"SHIFT", "F1"}, cfg.Chords[1].KeyList())
	require.Equal(t, []string{"CMD", "N"}, cfg.Chords[2].KeyList())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.NoError(t, m.Load())
	require.Equal(t, DefaultConfig(), m.Get())
}

func TestLoadRejectsInvalidChords(t *testing.T) {
	cases := map[string]string{
		"no name":      "[[chords]]\nhotkey = \"A\"\n",
		"no keys":      "[[chords]]\nname = \"x\"\n",
		"no command":   "[[chords]]\nname = \"x\"\nhotkey = \"A\"\naction = \"exec\"\n",
		"no script":    "[[chords]]\nname = \"x\"\nhotkey = \"A\"\naction = \"lua\"\n",
		"bad action":   "[[chords]]\nname = \"x\"\nhotkey = \"A\"\naction = \"launch\"\n",
		"duplicate":    "[[chords]]\nname = \"x\"\nhotkey = \"A\"\n[[chords]]\nname = \"x\"\nhotkey = \"B\"\n",
		"blank hotkey": "[[chords]]\nname = \"x\"\nhotkey = \"  \"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			m, err := NewManager(writeConfig(t, body))
			require.NoError(t, err)
			require.ErrorIs(t, m.Load(), ErrInvalidConfig)
			require.Empty(t, m.Get().Chords)
		})
	}
}

func TestLoadNotifiesChange(t *testing.T) {
	m, err := NewManager(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	var got *Config
	m.OnChange(func(cfg *Config) { got = cfg })
	require.NoError(t, m.Load())
	require.NotNil(t, got)
	require.Len(t, got.Chords, 3)
}

func TestSetValidates(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "c.toml"))
	require.NoError(t, err)

	calls := 0
	m.OnChange(func(*Config) { calls++ })

	bad := DefaultConfig()
	bad.Chords = []ChordConfig{{Name: "x"}}
	require.ErrorIs(t, m.Set(bad), ErrInvalidConfig)
	require.Equal(t, 0, calls)

	good := DefaultConfig()
	good.Chords = []ChordConfig{{Name: "x", Hotkey: "A"}}
	require.NoError(t, m.Set(good))
	require.Equal(t, 1, calls)
	require.Same(t, good, m.Get())
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	m, err := NewManager(path)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.General.APIToken = "secret"
	cfg.Chords = []ChordConfig{
		{Name: "term", Hotkey: "Ctrl+Alt+T", Action: ActionExec, Command: []string{"xterm"}},
		{Name: "say", Keys: []string{"Shift", "S"}, Message: "hello"},
	}
	require.NoError(t, m.Set(cfg))
	require.NoError(t, m.Save())

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())
	require.Equal(t, cfg, reloaded.Get())
}

func TestEnvOverridesGeneral(t *testing.T) {
	t.Setenv("KEYCHORD_GENERAL_API_TOKEN", "from-env")
	m, err := NewManager(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.NoError(t, m.Load())
	require.Equal(t, "from-env", m.Get().General.APIToken)
}

func TestParseHotkey(t *testing.T) {
	cases := map[string][]string{
		"Ctrl+Alt+T":   {"Ctrl", "Alt", "T"},
		" Shift + F1 ": {"Shift", "F1"},
		"Ctrl++":       {"Ctrl", "+"},
		"A":            {"A"},
		"":             nil,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseHotkey(in), "ParseHotkey(%q)", in)
	}
}
