package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"finitefield.org/hanko-admin/internal/admin/observability"
	"finitefield.org/hanko-admin/internal/admin/session"
)

type sessionContextKey struct{}

type sessionExpiredContextKey struct{}

// SessionStore decodes the login session carried by a request.
type SessionStore interface {
	Load(r *http.Request) (*session.Data, error)
}

// Session lifts the token stored in the session cookie into the request so
// Auth can verify it. Missing or unreadable sessions are ignored.
func Session(store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := store.Load(r)
			switch {
			case err == nil:
				r = r.WithContext(context.WithValue(r.Context(), sessionContextKey{}, data))
			case errors.Is(err, session.ErrNoSession):
			case errors.Is(err, session.ErrExpired):
				r = r.WithContext(context.WithValue(r.Context(), sessionExpiredContextKey{}, true))
			default:
				observability.FromContext(r.Context()).Debug("session ignored", zap.Error(err))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext returns the decoded session, if any.
func SessionFromContext(ctx context.Context) (*session.Data, bool) {
	data, ok := ctx.Value(sessionContextKey{}).(*session.Data)
	return data, ok && data != nil
}

// SessionExpired reports whether the request carried a session cookie that
// was past its expiry.
func SessionExpired(ctx context.Context) bool {
	expired, _ := ctx.Value(sessionExpiredContextKey{}).(bool)
	return expired
}
