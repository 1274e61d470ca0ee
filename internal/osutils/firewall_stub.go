//go:build !windows

package osutils

// IsAdmin is only meaningful on Windows
func IsAdmin() bool {
	return false
}

// EnsureFirewallRule is a no-op outside Windows
func EnsureFirewallRule(port int) error {
	return nil
}
