package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"tradegate/pkg/requestcontext"
)

// ClientMetadata extracts client IP address and User-Agent from the request,
// parses a readable client label, and adds them to the context for handlers
// and the audit trail. Apply it early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFromRequest(r)
		userAgent := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ip, userAgent, ClientLabel(userAgent))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientLabel renders a User-Agent as "Browser version on OS", for example
// "Chrome 120.0.0.0 on Linux x86_64". Bots are prefixed with "bot:".
func ClientLabel(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "unknown"
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	label := strings.TrimSpace(name + " " + version)
	if os := ua.OS(); os != "" {
		label += " on " + os
	}
	if label == "" {
		label = "unknown"
	}
	if ua.Bot() {
		return "bot:" + label
	}
	return label
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For is "client, proxy1, proxy2"; the first entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" or "[::1]:port".
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}

	return "unknown"
}
