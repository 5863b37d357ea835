package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const secretScheme = "sm://"

var (
	// ErrSecretNotFound is returned when the referenced secret or version does not exist.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrSecretAccessDenied is returned when the runtime identity cannot read the secret.
	ErrSecretAccessDenied = errors.New("secret access denied")
)

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (secretManagerClient, error) {
	return secretmanager.NewClient(ctx, opts...)
}

// SecretManagerResolver resolves sm:// references against Google Secret
// Manager. The client is created on first use so environments without
// secret references never need Google credentials.
//
// Accepted forms:
//
//	sm://name                       latest version in the default project
//	sm://name?version=3&project=p   explicit version and project
//	sm://projects/p/secrets/name/versions/3
type SecretManagerResolver struct {
	projectID  string
	clientOpts []option.ClientOption

	once      sync.Once
	client    secretManagerClient
	clientErr error

	mu    sync.Mutex
	cache map[string]string
}

// SecretManagerOption customises a SecretManagerResolver.
type SecretManagerOption func(*SecretManagerResolver)

// WithSecretManagerClientOptions forwards options to the Secret Manager client.
func WithSecretManagerClientOptions(opts ...option.ClientOption) SecretManagerOption {
	return func(r *SecretManagerResolver) {
		r.clientOpts = append(r.clientOpts, opts...)
	}
}

func withSecretManagerClient(client secretManagerClient) SecretManagerOption {
	return func(r *SecretManagerResolver) {
		r.client = client
		r.once.Do(func() {})
	}
}

// NewSecretManagerResolver builds a resolver defaulting to projectID.
func NewSecretManagerResolver(projectID string, opts ...SecretManagerOption) *SecretManagerResolver {
	r := &SecretManagerResolver{
		projectID: strings.TrimSpace(projectID),
		cache:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveSecret implements SecretResolver.
func (r *SecretManagerResolver) ResolveSecret(ctx context.Context, ref string) (string, error) {
	name, err := r.resourceName(ref)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	if value, ok := r.cache[name]; ok {
		r.mu.Unlock()
		return value, nil
	}
	r.mu.Unlock()

	r.once.Do(func() {
		r.client, r.clientErr = secretManagerClientFactory(ctx, r.clientOpts...)
	})
	if r.clientErr != nil {
		return "", fmt.Errorf("secret manager client: %w", r.clientErr)
	}

	resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		case codes.PermissionDenied, codes.Unauthenticated:
			return "", fmt.Errorf("%w: %s: %v", ErrSecretAccessDenied, name, err)
		default:
			return "", fmt.Errorf("access %s: %w", name, err)
		}
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secret manager returned empty payload for %s", name)
	}
	value := string(resp.GetPayload().GetData())

	r.mu.Lock()
	r.cache[name] = value
	r.mu.Unlock()
	return value, nil
}

// Close releases the underlying client, if one was created.
func (r *SecretManagerResolver) Close() error {
	r.once.Do(func() {})
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *SecretManagerResolver) resourceName(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, secretScheme) {
		return "", fmt.Errorf("unsupported secret reference %q", ref)
	}
	body := strings.TrimPrefix(ref, secretScheme)
	if strings.HasPrefix(body, "projects/") {
		parts := strings.Split(body, "/")
		if len(parts) == 6 && parts[2] == "secrets" && parts[4] == "versions" && parts[1] != "" && parts[3] != "" && parts[5] != "" {
			return body, nil
		}
		if len(parts) == 4 && parts[2] == "secrets" && parts[1] != "" && parts[3] != "" {
			return body + "/versions/latest", nil
		}
		return "", fmt.Errorf("malformed secret resource %q", ref)
	}

	u, err := url.Parse("sm://" + body)
	if err != nil {
		return "", fmt.Errorf("invalid secret reference %q: %w", ref, err)
	}
	secret := strings.Trim(u.Host+u.Path, "/")
	if secret == "" || strings.Contains(secret, "/") {
		return "", fmt.Errorf("missing secret name in %q", ref)
	}
	q := u.Query()
	project := firstNonEmpty(q.Get("project"), r.projectID)
	if project == "" {
		return "", fmt.Errorf("no project configured for %q", ref)
	}
	version := firstNonEmpty(q.Get("version"), "latest")
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, secret, version), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
