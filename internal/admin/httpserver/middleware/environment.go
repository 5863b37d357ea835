package middleware

import (
	"context"
	"net/http"
	"strings"
)

const defaultEnvironment = "Development"

type environmentContextKey struct{}

// Environment labels every request with the deployment environment so pages
// can show which stack the operator is signing in to.
func Environment(value string) func(http.Handler) http.Handler {
	label := strings.TrimSpace(value)
	if label == "" {
		label = defaultEnvironment
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), environmentContextKey{}, label)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EnvironmentFromContext returns the registered label or "Development".
func EnvironmentFromContext(ctx context.Context) string {
	if ctx == nil {
		return defaultEnvironment
	}
	if value, ok := ctx.Value(environmentContextKey{}).(string); ok && value != "" {
		return value
	}
	return defaultEnvironment
}

// IsProductionEnvironment reports whether label names a production stack.
func IsProductionEnvironment(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "production", "prod":
		return true
	default:
		return false
	}
}
