// Package security provides SSRF protection for outbound fetches.
//
// Every tool that touches the network validates its target through a
// Validator first. Validation resolves hostnames to concrete addresses
// before deciding, so a public-looking hostname that resolves to an
// internal address is still blocked.
package security

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Decision is the result of validating a URL.
type Decision struct {
	Allowed bool
	Reason  string // Set when blocked
}

// Allowed is the positive decision.
func allowed() Decision {
	return Decision{Allowed: true}
}

// blocked creates a negative decision with a reason.
func blocked(format string, args ...interface{}) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Ports that front privileged services; connections to them are never
// legitimate research fetches.
var blockedPorts = map[int]bool{
	22:    true, // SSH
	23:    true, // Telnet
	25:    true, // SMTP
	445:   true, // SMB
	3306:  true, // MySQL
	5432:  true, // PostgreSQL
	6379:  true, // Redis
	27017: true, // MongoDB
}

// LookupFunc resolves a hostname to IP addresses. Injectable for tests.
type LookupFunc func(host string) ([]net.IP, error)

// Validator classifies URLs as fetchable or blocked. The zero-argument
// constructor uses the system resolver; it holds no mutable state and
// is safe for concurrent use.
type Validator struct {
	lookup LookupFunc
}

// NewValidator creates a validator backed by the system resolver.
func NewValidator() *Validator {
	return &Validator{lookup: net.LookupIP}
}

// NewValidatorWithLookup creates a validator with a custom resolver.
func NewValidatorWithLookup(lookup LookupFunc) *Validator {
	return &Validator{lookup: lookup}
}

// Validate classifies a candidate URL. A Blocked decision is a normal
// result, not an error; only a nil receiver is a programmer mistake.
func (v *Validator) Validate(rawURL string) Decision {
	u, err := url.Parse(rawURL)
	if err != nil {
		return blocked("invalid URL: %v", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return blocked("blocked scheme %q: only http/https allowed", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return blocked("invalid URL: no hostname")
	}

	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return blocked("invalid port %q", portStr)
		}
		if blockedPorts[port] {
			return blocked("blocked port %d", port)
		}
	}

	// Obvious localhost variants, without needing resolution.
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1", "0.0.0.0":
		return blocked("blocked host %q: localhost access not allowed", host)
	}

	// Literal IP addresses are checked directly.
	if ip := net.ParseIP(host); ip != nil {
		if reason := classifyIP(ip); reason != "" {
			return blocked("blocked address %s: %s", ip, reason)
		}
		return allowed()
	}

	// Resolve the hostname and check every address it maps to. This is
	// the DNS-rebinding defense: the literal string may look public
	// while the record points inside.
	ips, err := v.lookup(host)
	if err != nil {
		// Unresolvable hosts are allowed through; the fetch itself will
		// fail with a normal network error.
		return allowed()
	}
	for _, ip := range ips {
		if reason := classifyIP(ip); reason != "" {
			return blocked("host %q resolves to %s: %s", host, ip, reason)
		}
	}

	return allowed()
}

// classifyIP returns a non-empty reason when the address belongs to a
// range that must never be fetched.
func classifyIP(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "loopback address"
	case ip.IsPrivate():
		return "private address"
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return "link-local address"
	case ip.IsMulticast():
		return "multicast address"
	case ip.IsUnspecified():
		return "unspecified address"
	}
	// 0.0.0.0/8 "current network" range is not caught by the helpers above.
	if v4 := ip.To4(); v4 != nil && v4[0] == 0 {
		return "current-network address"
	}
	return ""
}
