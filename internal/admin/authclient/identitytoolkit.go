package authclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// IdentityToolkitProvider signs staff in with Firebase email/password
// accounts through the Identity Toolkit relying party API.
type IdentityToolkitProvider struct {
	svc *identitytoolkit.Service
	now func() time.Time
}

// NewIdentityToolkitProvider builds a provider authenticated with the Firebase web API key.
func NewIdentityToolkitProvider(ctx context.Context, apiKey string, opts ...option.ClientOption) (*IdentityToolkitProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("authclient: firebase api key is required")
	}
	clientOpts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := identitytoolkit.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("authclient: init identity toolkit: %w", err)
	}
	return &IdentityToolkitProvider{svc: svc, now: time.Now}, nil
}

// SignIn verifies the email/password pair and returns the issued ID token.
func (p *IdentityToolkitProvider) SignIn(ctx context.Context, identifier, secret string) (*Session, error) {
	req := &identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             identifier,
		Password:          secret,
		ReturnSecureToken: true,
	}
	resp, err := p.svc.Relyingparty.VerifyPassword(req).Context(ctx).Do()
	if err != nil {
		return nil, classifyIdentityToolkitError(err)
	}
	if strings.TrimSpace(resp.IdToken) == "" {
		return nil, fmt.Errorf("%w: empty id token", ErrUnavailable)
	}
	sess := &Session{
		UID:     resp.LocalId,
		Email:   resp.Email,
		IDToken: resp.IdToken,
	}
	// The session must not outlive the ID token.
	if resp.ExpiresIn > 0 {
		sess.ExpiresAt = p.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return sess, nil
}

func classifyIdentityToolkitError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Firebase reports the reason as the leading token of the message,
	// e.g. "TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account ...".
	reason := strings.TrimSpace(strings.SplitN(apiErr.Message, ":", 2)[0])
	switch reason {
	case "INVALID_PASSWORD", "EMAIL_NOT_FOUND", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL", "MISSING_PASSWORD":
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, reason)
	case "USER_DISABLED":
		return fmt.Errorf("%w: %s", ErrUserDisabled, reason)
	default:
		return fmt.Errorf("%w: %d %s", ErrUnavailable, apiErr.Code, reason)
	}
}
