package authclient

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/cases"

	custommw "finitefield.org/hanko-admin/internal/admin/httpserver/middleware"
)

const (
	defaultStaticTokenTTL = time.Hour
	defaultStaticIssuer   = "hanko-admin"
	minSigningKeyLength   = 32
)

// ErrTokenExpired is returned when a static token is past its expiry.
var ErrTokenExpired = errors.New("authclient: token expired")

// Account is a locally configured staff account.
type Account struct {
	UID      string
	Email    string
	Password string
	Roles    []string
}

// StaticProvider authenticates against accounts held in configuration and
// issues HS256 tokens it can verify itself. Intended for local and staging
// environments without Firebase.
type StaticProvider struct {
	accounts   map[string]Account
	signingKey []byte
	ttl        time.Duration
	issuer     string
	now        func() time.Time
}

// StaticOption customises a StaticProvider.
type StaticOption func(*StaticProvider)

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) StaticOption {
	return func(p *StaticProvider) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) StaticOption {
	return func(p *StaticProvider) {
		if now != nil {
			p.now = now
		}
	}
}

type staticClaims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// NewStaticProvider validates the accounts and signing key.
func NewStaticProvider(accounts []Account, signingKey []byte, opts ...StaticOption) (*StaticProvider, error) {
	if len(signingKey) < minSigningKeyLength {
		return nil, fmt.Errorf("authclient: signing key must be at least %d bytes", minSigningKeyLength)
	}
	if len(accounts) == 0 {
		return nil, errors.New("authclient: at least one static account is required")
	}

	p := &StaticProvider{
		accounts:   make(map[string]Account, len(accounts)),
		signingKey: append([]byte(nil), signingKey...),
		ttl:        defaultStaticTokenTTL,
		issuer:     defaultStaticIssuer,
		now:        time.Now,
	}
	for _, acc := range accounts {
		key := foldIdentifier(acc.Email)
		if key == "" || acc.Password == "" {
			return nil, fmt.Errorf("authclient: static account %q requires email and password", acc.Email)
		}
		if _, dup := p.accounts[key]; dup {
			return nil, fmt.Errorf("authclient: duplicate static account %q", acc.Email)
		}
		if acc.UID == "" {
			acc.UID = "static:" + key
		}
		acc.Roles = append([]string(nil), acc.Roles...)
		p.accounts[key] = acc
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// SignIn checks the secret in constant time and issues a signed token.
func (p *StaticProvider) SignIn(ctx context.Context, identifier, secret string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc, found := p.accounts[foldIdentifier(identifier)]
	expected := acc.Password
	if !found {
		// Misses still run the comparison.
		expected = secret
	}
	match := subtle.ConstantTimeCompare([]byte(expected), []byte(secret)) == 1
	if !found || !match {
		return nil, ErrInvalidCredentials
	}

	now := p.now().UTC()
	expires := now.Add(p.ttl)
	claims := staticClaims{
		Email: acc.Email,
		Roles: acc.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   acc.UID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.signingKey)
	if err != nil {
		return nil, fmt.Errorf("%w: sign token: %v", ErrUnavailable, err)
	}

	return &Session{
		UID:       acc.UID,
		Email:     acc.Email,
		Roles:     append([]string(nil), acc.Roles...),
		IDToken:   token,
		ExpiresAt: expires,
	}, nil
}

// Authenticate verifies a token issued by SignIn. It satisfies the admin
// middleware Authenticator contract.
func (p *StaticProvider) Authenticate(_ *http.Request, token string) (*custommw.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, custommw.NewAuthError(custommw.ReasonMissingToken, custommw.ErrUnauthorized)
	}

	claims := &staticClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, custommw.NewAuthError(custommw.ReasonTokenInvalid, err)
	}

	now := p.now().UTC()
	if !claims.VerifyIssuer(p.issuer, true) || claims.Subject == "" {
		return nil, custommw.NewAuthError(custommw.ReasonTokenInvalid, custommw.ErrUnauthorized)
	}
	if !claims.VerifyExpiresAt(now, true) {
		return nil, custommw.NewAuthError(custommw.ReasonTokenExpired, ErrTokenExpired)
	}

	return &custommw.User{
		UID:   claims.Subject,
		Email: claims.Email,
		Roles: append([]string(nil), claims.Roles...),
		Token: token,
	}, nil
}

func foldIdentifier(identifier string) string {
	return cases.Fold().String(strings.TrimSpace(identifier))
}
