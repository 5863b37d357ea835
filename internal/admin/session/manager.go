// Package session keeps the token issued at login in a signed, optionally
// encrypted cookie.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/oklog/ulid/v2"
)

const (
	defaultCookieName = "admin_session"
	defaultCookiePath = "/"
	defaultLifetime   = 12 * time.Hour
)

var (
	// ErrNoSession indicates the request carries no session cookie.
	ErrNoSession = errors.New("session: not found")
	// ErrExpired indicates the stored session is past its absolute expiry.
	ErrExpired = errors.New("session: expired")
	// ErrInvalid indicates the cookie failed signature or decoding checks.
	ErrInvalid = errors.New("session: invalid cookie")
	// ErrInvalidConfig indicates the manager was initialised with missing or invalid options.
	ErrInvalidConfig = errors.New("session: invalid config")
)

// Data is the persisted session payload.
type Data struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Email     string    `json:"email,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	IDToken   string    `json:"idToken"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Config controls cookie encoding and lifetime.
type Config struct {
	CookieName   string
	HashKey      []byte
	BlockKey     []byte
	CookiePath   string
	CookieSecure bool
	Lifetime     time.Duration
	Now          func() time.Time
}

// Manager encodes and decodes session cookies.
type Manager struct {
	cfg   Config
	codec *securecookie.SecureCookie
	now   func() time.Time
}

// NewManager constructs a Manager using the provided configuration.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.HashKey) == 0 {
		return nil, fmt.Errorf("%w: hash key is required", ErrInvalidConfig)
	}
	switch len(cfg.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidConfig)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = defaultCookiePath
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.Lifetime.Seconds()))

	return &Manager{cfg: cfg, codec: codec, now: nowFn}, nil
}

// CookieName returns the cookie the manager reads and writes.
func (m *Manager) CookieName() string {
	return m.cfg.CookieName
}

// Issue stores data in a fresh session cookie. The expiry is capped at the
// configured lifetime.
func (m *Manager) Issue(w http.ResponseWriter, data Data) (Data, error) {
	if data.IDToken == "" {
		return Data{}, errors.New("session: id token is required")
	}
	now := m.now().UTC()
	data.ID = ulid.Make().String()
	data.CreatedAt = now
	limit := now.Add(m.cfg.Lifetime)
	if data.ExpiresAt.IsZero() || data.ExpiresAt.After(limit) {
		data.ExpiresAt = limit
	}
	data.ExpiresAt = data.ExpiresAt.UTC()
	data.Roles = append([]string(nil), data.Roles...)

	encoded, err := m.codec.Encode(m.cfg.CookieName, data)
	if err != nil {
		return Data{}, fmt.Errorf("encode session: %w", err)
	}

	remaining := data.ExpiresAt.Sub(now)
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     m.cfg.CookiePath,
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  data.ExpiresAt,
		MaxAge:   int(remaining.Round(time.Second).Seconds()),
	})
	return data, nil
}

// Load decodes the session carried by r.
func (m *Manager) Load(r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	var stored Data
	if err := m.codec.Decode(m.cfg.CookieName, cookie.Value, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if stored.IDToken == "" {
		return nil, ErrInvalid
	}
	if !stored.ExpiresAt.IsZero() && !m.now().UTC().Before(stored.ExpiresAt) {
		return nil, ErrExpired
	}
	return &stored, nil
}

// Destroy clears the session cookie.
func (m *Manager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     m.cfg.CookiePath,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
