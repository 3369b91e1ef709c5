package security

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP extracts the client IP address from a request.
//
// With trustProxy set, X-Forwarded-For (leftmost entry) and X-Real-IP are
// consulted first. Only enable trustProxy behind a reverse proxy that
// sanitizes these headers; otherwise they are attacker-controlled.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ip := strings.TrimSpace(strings.Split(xff, ",")[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			if net.ParseIP(xri) != nil {
				return xri
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port, e.g. in tests.
		if net.ParseIP(r.RemoteAddr) != nil {
			return r.RemoteAddr
		}
		return "unknown"
	}
	return host
}
