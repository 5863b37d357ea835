// Package authclient provides the AuthClient used by the admin login form
// and the providers that verify staff credentials.
package authclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finitefield.org/hanko-admin/internal/admin/loginform"
)

var (
	// ErrInvalidCredentials indicates the provider rejected the identifier/secret pair.
	ErrInvalidCredentials = errors.New("authclient: invalid credentials")
	// ErrUserDisabled indicates the account exists but may not sign in.
	ErrUserDisabled = errors.New("authclient: user disabled")
	// ErrUnavailable indicates the provider could not be reached or answered unexpectedly.
	ErrUnavailable = errors.New("authclient: provider unavailable")
	// ErrInFlight is returned when another login already holds the key. It
	// wraps loginform.ErrSubmitInFlight so the form treats it as a double submit.
	ErrInFlight = fmt.Errorf("authclient: login in flight: %w", loginform.ErrSubmitInFlight)
)

// Session is the result of a successful sign-in.
type Session struct {
	UID       string
	Email     string
	Roles     []string
	IDToken   string
	ExpiresAt time.Time
}

// Provider verifies credentials against a backing identity service.
type Provider interface {
	SignIn(ctx context.Context, identifier, secret string) (*Session, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, identifier, secret string) (*Session, error)

// SignIn calls f.
func (f ProviderFunc) SignIn(ctx context.Context, identifier, secret string) (*Session, error) {
	return f(ctx, identifier, secret)
}

// Flights counts logins in progress per key. A key usually identifies one
// browser so the loading state survives across requests.
type Flights struct {
	mu       sync.Mutex
	inflight map[string]int
}

// NewFlights constructs an empty registry.
func NewFlights() *Flights {
	return &Flights{inflight: make(map[string]int)}
}

// Loading reports whether a login is running for key.
func (f *Flights) Loading(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight[key] > 0
}

// Len returns the number of keys with logins in progress.
func (f *Flights) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inflight)
}

// tryBegin claims key unless a login already holds it.
func (f *Flights) tryBegin(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight[key] > 0 {
		return false
	}
	f.inflight[key] = 1
	return true
}

func (f *Flights) end(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.inflight[key]; n <= 1 {
		delete(f.inflight, key)
		return
	}
	f.inflight[key]--
}

// SessionHandler receives the session issued by a successful login.
type SessionHandler func(ctx context.Context, sess *Session) error

// Client adapts a Provider to the login form's AuthClient contract.
type Client struct {
	provider  Provider
	flights   *Flights
	key       string
	onSession SessionHandler
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithFlights shares the loading state under key with every other client
// built from the same registry.
func WithFlights(flights *Flights, key string) ClientOption {
	return func(c *Client) {
		if flights != nil {
			c.flights = flights
			c.key = key
		}
	}
}

// WithSessionHandler registers the callback that persists an issued session.
func WithSessionHandler(fn SessionHandler) ClientOption {
	return func(c *Client) {
		c.onSession = fn
	}
}

// NewClient constructs a Client for provider.
func NewClient(provider Provider, opts ...ClientOption) *Client {
	if provider == nil {
		panic("authclient: provider is required")
	}
	c := &Client{provider: provider, flights: NewFlights()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login signs in through the provider and hands the session to the
// registered handler. At most one login runs per key; a concurrent call
// returns ErrInFlight without reaching the provider.
func (c *Client) Login(ctx context.Context, identifier, secret string) error {
	if !c.flights.tryBegin(c.key) {
		return ErrInFlight
	}
	defer c.flights.end(c.key)

	sess, err := c.provider.SignIn(ctx, identifier, secret)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrUnavailable
	}
	if c.onSession != nil {
		return c.onSession(ctx, sess)
	}
	return nil
}

// Loading reports whether a login is in flight for this client's key.
func (c *Client) Loading() bool {
	return c.flights.Loading(c.key)
}

// Outcome classifies a sign-in result for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUserDisabled):
		return "user_disabled"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
