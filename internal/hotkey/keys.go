package hotkey

import (
	"strings"
)

// Canonical key names emitted by the platform hooks.
const (
	KeyCtrl  = "CTRL"
	KeyAlt   = "ALT"
	KeyShift = "SHIFT"
	KeyCmd   = "CMD"
)

var keyAliases = map[string]string{
	"CONTROL": KeyCtrl,
	"LCTRL":   KeyCtrl,
	"RCTRL":   KeyCtrl,
	"OPTION":  KeyAlt,
	"OPT":     KeyAlt,
	"ALTGR":   KeyAlt,
	"COMMAND": KeyCmd,
	"META":    KeyCmd,
	"SUPER":   KeyCmd,
	"WIN":     KeyCmd,
	"WINDOWS": KeyCmd,
	"LSHIFT":  KeyShift,
	"RSHIFT":  KeyShift,
	"RETURN":  "ENTER",
	"ESCAPE":  "ESC",
	"DEL":     "DELETE",
	"INS":     "INSERT",
	"PGUP":    "PAGEUP",
	"PGDN":    "PAGEDOWN",
	"BKSP":    "BACKSPACE",
}

// Canonical maps a user-facing key name ("Ctrl", "Option", "escape") to the
// name the platform hooks emit. Unknown names are upper-cased and returned.
func Canonical(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		if name != "" {
			return "SPACE"
		}
		return ""
	}
	upper := strings.ToUpper(trimmed)
	if alias, ok := keyAliases[upper]; ok {
		return alias
	}
	return upper
}

// CanonicalAll applies Canonical to every name.
func CanonicalAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Canonical(n)
	}
	return out
}
