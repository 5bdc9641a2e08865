package middleware

import (
	"fmt"
	"net/http"
	"time"
)

// CacheControl sets Cache-Control on GET responses. A non-positive maxAge
// marks the response as uncacheable.
func CacheControl(maxAge time.Duration) func(http.Handler) http.Handler {
	value := "no-store"
	if maxAge > 0 {
		value = fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds()))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				w.Header().Set("Cache-Control", value)
				w.Header().Add("Vary", TenantAccountHeader)
			}
			next.ServeHTTP(w, r)
		})
	}
}
