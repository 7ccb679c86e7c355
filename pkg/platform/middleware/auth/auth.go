package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	request "tradegate/pkg/platform/middleware/request"
)

// JWTValidator defines the interface for validating session tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Address     string
	AccountType string
	JTI         string
}

type contextKeyAddress struct{}

// ContextKeyAddress is exported for use in handler tests
var ContextKeyAddress = contextKeyAddress{}

// GetAddress retrieves the wallet address the request's token was issued for
func GetAddress(ctx context.Context) string {
	addr, ok := ctx.Value(ContextKeyAddress).(string)
	if !ok {
		return ""
	}
	return addr
}

// WithAddress injects an authenticated address into ctx.
func WithAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, ContextKeyAddress, address)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireSession rejects requests without a valid bearer session token and
// stores the token's address in the request context.
func RequireSession(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAddress(ctx, claims.Address)))
		})
	}
}
