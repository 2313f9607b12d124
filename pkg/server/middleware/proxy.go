package middleware

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/netops-labs/enms-in-go/pkg/identity"
)

// TrustFunc reports whether a peer address may set forwarding headers.
type TrustFunc func(ip string) bool

// TrustedProxies replaces the remote address with X-Forwarded-For (and
// the scheme with X-Forwarded-Proto) only for requests coming from a
// trusted proxy. Other peers cannot spoof their client address.
func TrustedProxies(trusted TrustFunc) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		proxied := handlers.ProxyHeaders(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := identity.ParseRemoteAddr(r.RemoteAddr)
			if ip != nil && trusted(ip.String()) {
				proxied.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
