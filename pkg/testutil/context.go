package testutil

import (
	"net/http"
	"time"

	authmw "tradegate/pkg/platform/middleware/auth"
	"tradegate/pkg/requestcontext"
)

// WithWalletAddress adds a token address to the request context.
// This simulates what the session middleware does for authenticated requests.
func WithWalletAddress(req *http.Request, address string) *http.Request {
	return req.WithContext(authmw.WithAddress(req.Context(), address))
}

// WithRequestTime pins the request clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
