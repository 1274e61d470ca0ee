// Package osutils holds OS integration the daemon needs outside the hotkey hooks.
package osutils

import (
	"fmt"
	"net"
	"strconv"
)

// RuleName is the inbound firewall rule created for the API port
const RuleName = "keychord API"

// ExposedPort returns the TCP port of listenAddr when the address accepts
// connections from other machines, or 0 when it is loopback only.
func ExposedPort(listenAddr string) (int, error) {
	host, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return 0, fmt.Errorf("parse listen address %q: %w", listenAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port in %q", listenAddr)
	}
	if host == "localhost" {
		return 0, nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return 0, nil
	}
	return port, nil
}
