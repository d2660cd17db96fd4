// Package hostutil classifies API hosts.
package hostutil

import (
	"net"
	"net/url"
	"strings"
)

// Normalize turns a configured base URL into a full URL without a trailing
// slash. Bare loopback hosts get http://, every other bare host https://.
func Normalize(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	if !strings.Contains(base, "://") {
		host, _, _ := strings.Cut(base, "/")
		if IsLocalhost(host) {
			base = "http://" + base
		} else {
			base = "https://" + base
		}
	}
	return strings.TrimRight(base, "/")
}

// IsLocalhost reports whether host, with or without a port, names this
// machine: localhost, a .localhost subdomain or a loopback address.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(strings.ToLower(host), "[]")

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// AllowsCredentials reports whether a bearer token may be sent to rawURL:
// always over https, over plain http only to this machine.
func AllowsCredentials(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "https":
		return true
	case "http":
		return IsLocalhost(u.Host)
	default:
		return false
	}
}
