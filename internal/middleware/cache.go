package middleware

import (
	"net/http"
	"strings"
)

// NoStore disables caching for API responses. Tabulated results and
// petition counts change with every submission, so intermediaries must
// never serve a stale copy. Non-API paths are left alone.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		}
		next.ServeHTTP(w, r)
	})
}
