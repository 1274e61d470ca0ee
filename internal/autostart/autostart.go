// Package autostart registers the keychord daemon to start at login.
package autostart

import (
	"fmt"
	"os"
	"strings"
)

// Name identifies the login item on every platform
const Name = "keychord"

// Entry describes the command started at login
type Entry struct {
	Executable string
	Args       []string
}

// Current returns an Entry for the running executable with args
func Current(args ...string) (Entry, error) {
	exe, err := os.Executable()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get executable path: %w", err)
	}
	return Entry{Executable: exe, Args: args}, nil
}

// CommandLine returns the entry as one quoted command line
func (e Entry) CommandLine() string {
	parts := make([]string, 0, len(e.Args)+1)
	parts = append(parts, quote(e.Executable))
	for _, a := range e.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"'\\") {
		return s
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// Enable makes e start on login
func Enable(e Entry) error {
	return enable(e)
}

// Disable removes the login item. Disabling when not enabled is not an error.
func Disable() error {
	return disable()
}

// IsEnabled reports whether the login item is installed
func IsEnabled() bool {
	return isEnabled()
}
