package testutil

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"finitefield.org/hanko-admin/internal/admin/authclient"
	"finitefield.org/hanko-admin/internal/admin/httpserver"
	"finitefield.org/hanko-admin/internal/admin/httpserver/middleware"
)

const (
	// AdminEmail and AdminPassword sign in to the default static account.
	AdminEmail    = "admin@example.com"
	AdminPassword = "correct-horse"
	// SupportEmail and SupportPassword sign in to a support-only account.
	SupportEmail    = "support@example.com"
	SupportPassword = "support-pass"

	signingKey = "test-signing-key-0123456789abcdef"
)

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithProvider overrides the credential provider used by the login form.
func WithProvider(provider authclient.Provider) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Provider = provider
	}
}

// WithAuthenticator overrides the authenticator used by the admin server.
func WithAuthenticator(auth middleware.Authenticator) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Authenticator = auth
	}
}

// WithBasePath sets a custom base path for the admin routes.
func WithBasePath(path string) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.BasePath = path
	}
}

// WithFlights shares the in-flight login registry with the test.
func WithFlights(flights *authclient.Flights) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Flights = flights
	}
}

// WithConfig applies an arbitrary mutation.
func WithConfig(fn func(*httpserver.Config)) ServerOption {
	return fn
}

// StaticProvider returns the provider behind the default test accounts.
func StaticProvider(t testing.TB) *authclient.StaticProvider {
	t.Helper()

	provider, err := authclient.NewStaticProvider([]authclient.Account{
		{Email: AdminEmail, Password: AdminPassword, Roles: []string{"admin"}},
		{Email: SupportEmail, Password: SupportPassword, Roles: []string{"support"}},
	}, []byte(signingKey), authclient.WithTokenTTL(time.Hour))
	if err != nil {
		t.Fatalf("static provider: %v", err)
	}
	return provider
}

// NewServer constructs an httptest server running the admin HTTP stack with sensible defaults.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()

	static := StaticProvider(t)
	cfg := httpserver.Config{
		Address:        ":0",
		BasePath:       "/admin",
		HomePath:       "/",
		UserLoginPath:  "/login",
		Environment:    "Test",
		Provider:       static,
		Authenticator:  static,
		CSRFCookieName: "csrf_token",
		CSRFHeaderName: "X-CSRF-Token",
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	srv := httpserver.New(cfg)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

// NewClient returns a cookie-keeping client that does not follow redirects.
func NewClient(t testing.TB) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
