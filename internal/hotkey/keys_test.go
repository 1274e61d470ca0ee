package hotkey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"Ctrl":    KeyCtrl,
		"control": KeyCtrl,
		"Option":  KeyAlt,
		"alt":     KeyAlt,
		"Win":     KeyCmd,
		"Command": KeyCmd,
		"Escape":  "ESC",
		" t ":     "T",
		"f5":      "F5",
		"Mouse4":  "MOUSE4",
		" ":       "SPACE",
		"":        "",
	}
	for in, want := range cases {
		require.Equal(t, want, Canonical(in), "Canonical(%q)", in)
	}
}

func TestCanonicalAll(t *testing.T) {
	require.Equal(t, []string{KeyCtrl, KeyShift, "K"}, CanonicalAll([]string{"ctrl", "Shift", "k"}))
}
