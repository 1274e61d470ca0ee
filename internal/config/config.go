// Package config provides configuration management for the keychord daemon.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"keychord/internal/hotkey"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Action kinds understood by internal/action.
const (
	ActionLog  = "log"
	ActionExec = "exec"
	ActionLua  = "lua"
)

// Config represents the daemon configuration
type Config struct {
	// General contains daemon-wide settings
	General GeneralConfig `mapstructure:"general"`

	// Chords lists the key chords to register
	Chords []ChordConfig `mapstructure:"chords"`
}

// GeneralConfig contains daemon-wide settings
type GeneralConfig struct {
	// ListenAddr is the address of the HTTP/WebSocket API; empty disables it
	ListenAddr string `mapstructure:"listen_addr"`

	// APIToken is an optional bearer token required by the API
	APIToken string `mapstructure:"api_token"`

	// ForwardTo is the address of another keychord daemon that receives this machine's key events
	ForwardTo string `mapstructure:"forward_to"`

	// Tray shows the system tray icon
	Tray bool `mapstructure:"tray"`

	// PlatformHook installs the OS global keyboard hook
	PlatformHook bool `mapstructure:"platform_hook"`
}

// ChordConfig describes one chord and what it does
type ChordConfig struct {
	// Name identifies the chord in logs and notifications
	Name string `mapstructure:"name"`

	// Hotkey is a "+" separated chord, e.g. "Ctrl+Alt+T". Ignored when Keys is set.
	Hotkey string `mapstructure:"hotkey"`

	// Keys lists the chord's keys explicitly
	Keys []string `mapstructure:"keys"`

	// Action is one of "log", "exec" or "lua"
	Action string `mapstructure:"action"`

	// Command is the program and arguments for "exec"
	Command []string `mapstructure:"command"`

	// Script is the Lua source for "lua"
	Script string `mapstructure:"script"`

	// Message is logged by "log"
	Message string `mapstructure:"message"`
}

// ParseHotkey splits "Ctrl+Alt+T" into its key names. A trailing "+" names the plus key.
func ParseHotkey(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, "+")
	keys := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			if i == len(parts)-1 && i > 0 {
				keys = append(keys, "+")
			}
			continue
		}
		keys = append(keys, p)
	}
	return keys
}

// KeyList returns the chord's keys in the platform hooks' naming convention.
func (c ChordConfig) KeyList() []string {
	keys := c.Keys
	if len(keys) == 0 {
		keys = ParseHotkey(c.Hotkey)
	}
	keys = hotkey.CanonicalAll(keys)
	out := keys[:0]
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Validate checks every chord for a name, keys and a usable action.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Chords))
	for i, ch := range c.Chords {
		name := ch.Name
		if name == "" {
			return fmt.Errorf("%w: chord #%d has no name", ErrInvalidConfig, i+1)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate chord name %q", ErrInvalidConfig, name)
		}
		seen[name] = true

		if len(ch.KeyList()) == 0 {
			return fmt.Errorf("%w: chord %q has no keys", ErrInvalidConfig, name)
		}
		switch ch.Action {
		case "", ActionLog:
		case ActionExec:
			if len(ch.Command) == 0 || ch.Command[0] == "" {
				return fmt.Errorf("%w: chord %q: exec action needs a command", ErrInvalidConfig, name)
			}
		case ActionLua:
			if strings.TrimSpace(ch.Script) == "" {
				return fmt.Errorf("%w: chord %q: lua action needs a script", ErrInvalidConfig, name)
			}
		default:
			return fmt.Errorf("%w: chord %q: unknown action %q", ErrInvalidConfig, name, ch.Action)
		}
	}
	return nil
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			ListenAddr:   "127.0.0.1:18420",
			Tray:         true,
			PlatformHook: true,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig().General
	v.SetDefault("general.listen_addr", d.ListenAddr)
	v.SetDefault("general.api_token", d.APIToken)
	v.SetDefault("general.forward_to", d.ForwardTo)
	v.SetDefault("general.tray", d.Tray)
	v.SetDefault("general.platform_hook", d.PlatformHook)
}

// Manager handles loading, saving and watching the configuration
type Manager struct {
	mu        sync.Mutex
	v         *viper.Viper
	path      string
	config    *Config
	onChanged func(*Config)
}

// NewManager creates a configuration manager for path. An empty path selects
// the per-user default location.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("KEYCHORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Manager{
		v:      v,
		path:   path,
		config: DefaultConfig(),
	}, nil
}

// DefaultPath returns the per-user configuration file path
func DefaultPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "keychord")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "keychord")
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(base, "keychord")
	}

	return filepath.Join(configDir, "config.toml"), nil
}

// Path returns the configuration file path
func (m *Manager) Path() string { return m.path }

// Load reads the configuration from disk. A missing file leaves the defaults in place.
func (m *Manager) Load() error {
	m.mu.Lock()
	cfg, err := m.read()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.config = cfg
	fn := m.onChanged
	m.mu.Unlock()

	if fn != nil {
		fn(cfg)
	}
	return nil
}

func (m *Manager) read() (*Config, error) {
	if err := m.v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", m.path, err)
	}

	cfg := DefaultConfig()
	if err := m.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// Save writes the current configuration to disk, creating the directory if needed
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	cfg := m.config
	out := viper.New()
	out.SetConfigType("toml")
	out.Set("general.listen_addr", cfg.General.ListenAddr)
	out.Set("general.api_token", cfg.General.APIToken)
	out.Set("general.forward_to", cfg.General.ForwardTo)
	out.Set("general.tray", cfg.General.Tray)
	out.Set("general.platform_hook", cfg.General.PlatformHook)

	chords := make([]map[string]any, 0, len(cfg.Chords))
	for _, ch := range cfg.Chords {
		entry := map[string]any{"name": ch.Name}
		if len(ch.Keys) > 0 {
			entry["keys"] = ch.Keys
		}
		if ch.Hotkey != "" {
			entry["hotkey"] = ch.Hotkey
		}
		if ch.Action != "" {
			entry["action"] = ch.Action
		}
		if len(ch.Command) > 0 {
			entry["command"] = ch.Command
		}
		if ch.Script != "" {
			entry["script"] = ch.Script
		}
		if ch.Message != "" {
			entry["message"] = ch.Message
		}
		chords = append(chords, entry)
	}
	out.Set("chords", chords)

	log.Printf("Config: Saving configuration to %s", m.path)
	if err := out.WriteConfigAs(m.path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set replaces the configuration after validating it and notifies the change callback
func (m *Manager) Set(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	fn := m.onChanged
	m.mu.Unlock()

	if fn != nil {
		fn(cfg)
	}
	return nil
}

// OnChange registers a function to be called with each newly loaded configuration
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}

// Watch reloads the configuration whenever the file changes. A reload that
// fails validation is logged and the previous configuration is kept.
func (m *Manager) Watch() {
	m.v.OnConfigChange(func(ev fsnotify.Event) {
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
			return
		}
		log.Printf("Config: %s changed, reloading", ev.Name)
		if err := m.Load(); err != nil {
			log.Printf("Config: Reload failed, keeping previous config: %v", err)
		}
	})
	m.v.WatchConfig()
}
