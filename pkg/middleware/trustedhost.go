// pkg/middleware/trustedhost.go
package middleware

import (
	"net"
	"net/http"
	"strings"
)

// TrustedHost rejects requests whose Host header matches none of the
// configured patterns. A leading "*." matches any subdomain. An empty
// pattern list disables the check.
func TrustedHost(patterns []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(patterns) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := r.Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			if !hostAllowed(host, patterns) {
				http.Error(w, "invalid host header", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hostAllowed(host string, patterns []string) bool {
	host = strings.ToLower(host)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if p == "*" || p == host {
			return true
		}
		if strings.HasPrefix(p, "*.") && strings.HasSuffix(host, p[1:]) {
			return true
		}
	}
	return false
}
