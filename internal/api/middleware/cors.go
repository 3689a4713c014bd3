package middleware

import (
	"net/http"
	"slices"
)

const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type, Mcp-Protocol-Version, Mcp-Session-Id"
)

// CORS answers browser preflights and sets CORS headers for allowed origins.
// "*" allows any origin, but credentials are only allowed for origins
// listed explicitly.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	explicit := slices.DeleteFunc(slices.Clone(allowedOrigins), func(o string) bool { return o == "*" })
	wildcard := len(explicit) != len(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (wildcard || slices.Contains(explicit, origin)) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				if slices.Contains(explicit, origin) {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
