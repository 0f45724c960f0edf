package middleware

import (
	"net/http"

	"github.com/chm413/mochi-link/pkg"
	"github.com/google/uuid"
)

// RequestID stamps every request with a correlation id — from the
// X-Request-Id header if the caller supplied one, otherwise freshly
// generated — and echoes it back on the response. pkg.JSON/pkg.Error read
// it out of the context to populate APIResponse.RequestID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := pkg.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
