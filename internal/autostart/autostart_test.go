package autostart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandLine(t *testing.T) {
	tests := map[string]struct {
		entry Entry
		want  string
	}{
		"plain":  {Entry{Executable: "/usr/bin/keychord"}, "/usr/bin/keychord"},
		"args":   {Entry{Executable: "/usr/bin/keychord", Args: []string{"-no-tray"}}, "/usr/bin/keychord -no-tray"},
		"spaces": {Entry{Executable: `C:\Program Files\keychord.exe`}, `"C:\\Program Files\\keychord.exe"`},
		"empty":  {Entry{Executable: "k", Args: []string{""}}, `k ""`},
		"quote":  {Entry{Executable: "k", Args: []string{`a"b`}}, `k "a\"b"`},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.entry.CommandLine())
		})
	}
}

func TestCurrent(t *testing.T) {
	e, err := Current("-config", "x.toml")
	require.NoError(t, err)
	require.NotEmpty(t, e.Executable)
	require.Equal(t, []string{"-config", "x.toml"}, e.Args)
}
