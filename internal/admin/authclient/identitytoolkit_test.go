package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newIdentityToolkitForTest(t *testing.T, handler http.HandlerFunc) *IdentityToolkitProvider {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	p, err := NewIdentityToolkitProvider(context.Background(), "test-key",
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)
	return p
}

func writeIdentityToolkitError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"errors": []map[string]any{
				{"message": message, "domain": "global", "reason": "invalid"},
			},
		},
	})
}

func TestIdentityToolkitProviderSignIn(t *testing.T) {
	t.Parallel()

	p := newIdentityToolkitForTest(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "verifyPassword"), "path=%s", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "admin@example.com", body["email"])
		require.Equal(t, "correct", body["password"])
		require.Equal(t, true, body["returnSecureToken"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kind":         "identitytoolkit#VerifyPasswordResponse",
			"localId":      "uid-123",
			"email":        "admin@example.com",
			"idToken":      "id-token",
			"refreshToken": "refresh-token",
			"expiresIn":    "3600",
			"registered":   true,
		})
	})
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	sess, err := p.SignIn(context.Background(), "admin@example.com", "correct")
	require.NoError(t, err)
	require.Equal(t, "uid-123", sess.UID)
	require.Equal(t, "admin@example.com", sess.Email)
	require.Equal(t, "id-token", sess.IDToken)
	require.Equal(t, now.Add(time.Hour), sess.ExpiresAt)
}

func TestIdentityToolkitProviderWithoutExpiry(t *testing.T) {
	t.Parallel()

	p := newIdentityToolkitForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"localId": "uid-123",
			"idToken": "id-token",
		})
	})

	sess, err := p.SignIn(context.Background(), "admin@example.com", "correct")
	require.NoError(t, err)
	require.True(t, sess.ExpiresAt.IsZero())
}

func TestIdentityToolkitProviderClassifiesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    int
		message string
		want    error
	}{
		{"wrong password", http.StatusBadRequest, "INVALID_PASSWORD", ErrInvalidCredentials},
		{"unknown email", http.StatusBadRequest, "EMAIL_NOT_FOUND", ErrInvalidCredentials},
		{"combined credentials", http.StatusBadRequest, "INVALID_LOGIN_CREDENTIALS", ErrInvalidCredentials},
		{"disabled", http.StatusBadRequest, "USER_DISABLED", ErrUserDisabled},
		{"throttled", http.StatusBadRequest, "TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled", ErrUnavailable},
		{"server error", http.StatusInternalServerError, "INTERNAL", ErrUnavailable},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := newIdentityToolkitForTest(t, func(w http.ResponseWriter, r *http.Request) {
				writeIdentityToolkitError(w, tc.code, tc.message)
			})
			_, err := p.SignIn(context.Background(), "admin@example.com", "secret")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewIdentityToolkitProviderRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewIdentityToolkitProvider(context.Background(), "  ")
	require.Error(t, err)
}
