package server

import (
	"net"
	"net/http"
)

// LoopbackOnlyMiddleware rejects requests whose peer address is not a
// loopback address. Forwarding headers are ignored; only the TCP peer
// counts.
func LoopbackOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoopback(r.RemoteAddr) {
			Forbidden(w, "remote access is disabled", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopback(remoteAddr string) bool {
	ip := net.ParseIP(peerIP(remoteAddr))
	return ip != nil && ip.IsLoopback()
}
