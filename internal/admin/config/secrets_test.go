package config

import (
	"context"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSecretClient struct {
	values   map[string]string
	requests []string
	closed   bool
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.requests = append(f.requests, req.GetName())
	switch req.GetName() {
	case "projects/denied/secrets/key/versions/latest":
		return nil, status.Error(codes.PermissionDenied, "no access")
	}
	value, ok := f.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeSecretClient) Close() error {
	f.closed = true
	return nil
}

func TestSecretManagerResolver(t *testing.T) {
	t.Parallel()

	client := &fakeSecretClient{values: map[string]string{
		"projects/hanko/secrets/api-key/versions/latest": "k1",
		"projects/other/secrets/api-key/versions/3":      "k3",
		"projects/x/secrets/full/versions/2":             "full",
	}}
	resolver := NewSecretManagerResolver("hanko", withSecretManagerClient(client))

	ctx := context.Background()

	value, err := resolver.ResolveSecret(ctx, "sm://api-key")
	require.NoError(t, err)
	require.Equal(t, "k1", value)

	value, err = resolver.ResolveSecret(ctx, "sm://api-key?project=other&version=3")
	require.NoError(t, err)
	require.Equal(t, "k3", value)

	value, err = resolver.ResolveSecret(ctx, "sm://projects/x/secrets/full/versions/2")
	require.NoError(t, err)
	require.Equal(t, "full", value)

	// cached
	_, err = resolver.ResolveSecret(ctx, "sm://api-key")
	require.NoError(t, err)
	require.Len(t, client.requests, 3)

	_, err = resolver.ResolveSecret(ctx, "sm://unknown")
	require.ErrorIs(t, err, ErrSecretNotFound)

	_, err = resolver.ResolveSecret(ctx, "sm://key?project=denied")
	require.ErrorIs(t, err, ErrSecretAccessDenied)

	_, err = resolver.ResolveSecret(ctx, "secret://api-key")
	require.Error(t, err)

	require.NoError(t, resolver.Close())
	require.True(t, client.closed)
}

func TestSecretManagerResolverRequiresProject(t *testing.T) {
	t.Parallel()

	resolver := NewSecretManagerResolver("", withSecretManagerClient(&fakeSecretClient{}))
	_, err := resolver.ResolveSecret(context.Background(), "sm://api-key")
	require.ErrorContains(t, err, "no project configured")
}

func TestSecretManagerResolverCloseWithoutClient(t *testing.T) {
	t.Parallel()

	resolver := NewSecretManagerResolver("hanko")
	require.NoError(t, resolver.Close())
}
