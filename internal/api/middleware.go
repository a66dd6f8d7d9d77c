// Package api implements the HTTP bridge used by out-of-process UIs.
package api

import (
	"net"
	"net/http"
)

// LoopbackOnly rejects requests that do not come from the local machine.
// If enabled is false, all requests pass through.
func LoopbackOnly(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled || isLoopback(r.RemoteAddr) {
				next.ServeHTTP(w, r)
				return
			}
			writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
		})
	}
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
