package utils

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

var schemePorts = map[string]string{
	"http":  "80",
	"https": "443",
	"mysql": "3306",
}

// Reachable dials the host behind rawURL once over TCP. It answers "is the
// service up" without speaking its protocol, so it is safe to call against
// anything with a listening port.
func Reachable(rawURL string, timeout time.Duration) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	port := u.Port()
	if port == "" {
		if p, ok := schemePorts[u.Scheme]; ok {
			port = p
		} else {
			port = "80"
		}
	}

	address := net.JoinHostPort(u.Hostname(), port)
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return conn.Close()
}

// PingAuthorizer is the preflight used before initializing the auth client
// and by health reporting.
func PingAuthorizer(authzURL string) error {
	return Reachable(authzURL, 1500*time.Millisecond)
}
