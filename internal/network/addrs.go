// Package network connects keychord daemons to each other.
package network

import (
	"fmt"
	"net"
)

// LocalIPv4s returns the IPv4 addresses of every non-loopback interface that is up
func LocalIPv4s() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip = ip.To4(); ip == nil || ip.IsLoopback() {
				continue
			}
			ips = append(ips, ip.String())
		}
	}
	return ips, nil
}

// WebSocketURLs lists the URLs a forwarder on another machine can use to reach
// a daemon listening on listenAddr. Wildcard hosts expand to every local IPv4.
func WebSocketURLs(listenAddr string) ([]string, error) {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return nil, fmt.Errorf("parse listen address %q: %w", listenAddr, err)
	}
	if host != "" && host != "0.0.0.0" && host != "::" {
		return []string{wsURL(host, port)}, nil
	}

	ips, err := LocalIPv4s()
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(ips))
	for _, ip := range ips {
		urls = append(urls, wsURL(ip, port))
	}
	return urls, nil
}

func wsURL(host, port string) string {
	return "ws://" + net.JoinHostPort(host, port) + "/ws"
}
