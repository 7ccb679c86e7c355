// Package requesttime captures one "now" per HTTP request so that profile
// timestamps, audit events and tokens written for the request agree.
package requesttime

import (
	"net/http"
	"time"

	"tradegate/pkg/requestcontext"
)

// Middleware stores the request start time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
