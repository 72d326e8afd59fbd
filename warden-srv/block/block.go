// Package block implements the proxy's dynamically mutable hostname
// blocklist and the host-normalization algorithm shared by the blocklist and
// every request-handling path that needs to key off a bare hostname.
//
// Normalization and the exact-hostname set are grounded on the reference
// ProxyServer's blockedHosts (a ConcurrentHashMap-backed key set) and
// extractHost/isBlocked. sync.Map plays the role of that concurrent set:
// both support safe concurrent inserts and lookups without a caller-held
// lock. Set exposes no removal, matching the set's insertion-only lifetime.
package block

import (
	"net/url"
	"strings"
	"sync"
)

// Set is a concurrent, insertion-only set of normalized hostnames. The zero
// value is ready to use.
type Set struct {
	hosts sync.Map
}

// Add normalizes raw and inserts it into the set. added reports whether the
// normalized hostname was new to the set; ok reports whether raw normalized
// to a valid hostname at all (added is always false when ok is false).
func (s *Set) Add(raw string) (added bool, ok bool) {
	host, ok := Normalize(raw)
	if !ok {
		return false, false
	}
	_, loaded := s.hosts.LoadOrStore(host, struct{}{})
	return !loaded, true
}

// Contains reports whether raw, once normalized, is present in the set.
func (s *Set) Contains(raw string) bool {
	host, ok := Normalize(raw)
	if !ok {
		return false
	}
	_, present := s.hosts.Load(host)
	return present
}

// Normalize canonicalizes a free-form URL or bare host string to a blocklist
// lookup key:
//  1. if s contains "://", parse it as a URL and take its host; otherwise
//     use s unchanged,
//  2. lowercase,
//  3. strip a leading "www." prefix.
//
// The second return value is false if s could not be parsed or normalizes to
// an empty string.
func Normalize(s string) (string, bool) {
	host := s
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", false
		}
		host = u.Hostname()
	}

	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "www.")

	if host == "" {
		return "", false
	}
	return host, true
}
