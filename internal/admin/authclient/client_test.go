package authclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finitefield.org/hanko-admin/internal/admin/loginform"
)

func TestClientSharesLoadingStateAcrossKey(t *testing.T) {
	t.Parallel()

	flights := NewFlights()
	release := make(chan struct{})
	entered := make(chan struct{})
	provider := ProviderFunc(func(ctx context.Context, identifier, secret string) (*Session, error) {
		close(entered)
		<-release
		return &Session{UID: "uid-1"}, nil
	})

	first := NewClient(provider, WithFlights(flights, "browser-a"))
	sibling := NewClient(provider, WithFlights(flights, "browser-a"))
	other := NewClient(provider, WithFlights(flights, "browser-b"))

	done := make(chan error, 1)
	go func() { done <- first.Login(context.Background(), "admin@example.com", "secret") }()
	<-entered

	require.True(t, first.Loading())
	require.True(t, sibling.Loading())
	require.False(t, other.Loading())

	close(release)
	require.NoError(t, <-done)
	require.False(t, sibling.Loading())
	require.Zero(t, flights.Len())
}

func TestClientHandsSessionToHandler(t *testing.T) {
	t.Parallel()

	var got *Session
	client := NewClient(
		ProviderFunc(func(ctx context.Context, identifier, secret string) (*Session, error) {
			return &Session{UID: "uid-1", Email: identifier, IDToken: "token"}, nil
		}),
		WithSessionHandler(func(ctx context.Context, sess *Session) error {
			got = sess
			return nil
		}),
	)

	require.NoError(t, client.Login(context.Background(), "admin@example.com", "secret"))
	require.NotNil(t, got)
	require.Equal(t, "token", got.IDToken)
	require.False(t, client.Loading())
}

func TestClientPropagatesFailures(t *testing.T) {
	t.Parallel()

	handlerCalled := false
	client := NewClient(
		ProviderFunc(func(ctx context.Context, identifier, secret string) (*Session, error) {
			return nil, ErrInvalidCredentials
		}),
		WithSessionHandler(func(ctx context.Context, sess *Session) error {
			handlerCalled = true
			return nil
		}),
	)

	err := client.Login(context.Background(), "admin@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.False(t, handlerCalled)

	nilSession := NewClient(ProviderFunc(func(ctx context.Context, identifier, secret string) (*Session, error) {
		return nil, nil
	}))
	require.ErrorIs(t, nilSession.Login(context.Background(), "a", "b"), ErrUnavailable)
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{fmt.Errorf("%w: INVALID_PASSWORD", ErrInvalidCredentials), "invalid_credentials"},
		{ErrUserDisabled, "user_disabled"},
		{context.Canceled, "canceled"},
		{fmt.Errorf("%w: 503", ErrUnavailable), "unavailable"},
		{errors.New("boom"), "error"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, Outcome(tc.err), "err=%v", tc.err)
	}
}

func TestClientRejectsLoginWhileKeyIsHeld(t *testing.T) {
	t.Parallel()

	flights := NewFlights()
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32
	provider := ProviderFunc(func(ctx context.Context, identifier, secret string) (*Session, error) {
		calls.Add(1)
		close(entered)
		<-release
		return &Session{UID: "uid-1"}, nil
	})

	first := NewClient(provider, WithFlights(flights, "browser"))
	second := NewClient(provider, WithFlights(flights, "browser"))

	done := make(chan error, 1)
	go func() { done <- first.Login(context.Background(), "admin@example.com", "secret") }()
	<-entered

	err := second.Login(context.Background(), "admin@example.com", "secret")
	require.ErrorIs(t, err, ErrInFlight)
	require.ErrorIs(t, err, loginform.ErrSubmitInFlight)

	close(release)
	require.NoError(t, <-done)
	require.EqualValues(t, 1, calls.Load())
	require.Zero(t, flights.Len())
}

// Two forms for the same browser submitted at the same moment must reach the
// provider once.
func TestConcurrentFormsShareOneLogin(t *testing.T) {
	t.Parallel()

	for round := 0; round < 200; round++ {
		flights := NewFlights()
		release := make(chan struct{})
		var calls atomic.Int32
		provider := ProviderFunc(func(ctx context.Context, identifier, secret string) (*Session, error) {
			calls.Add(1)
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &Session{UID: "uid-1", IDToken: "token"}, nil
		})

		forms := make([]*loginform.Form, 2)
		for i := range forms {
			client := NewClient(provider, WithFlights(flights, "browser"))
			forms[i] = loginform.New(client, loginform.NavigatorFunc(func(string) {}))
			forms[i].SetIdentifier("admin@example.com")
			forms[i].SetSecret("secret")
		}

		start := make(chan struct{})
		results := make(chan error, len(forms))
		var ready sync.WaitGroup
		for _, form := range forms {
			form := form
			ready.Add(1)
			go func() {
				ready.Done()
				<-start
				results <- form.Submit(context.Background())
			}()
		}
		ready.Wait()
		close(start)

		// The losing submit returns while the winner is still blocked.
		select {
		case err := <-results:
			require.ErrorIs(t, err, loginform.ErrSubmitInFlight)
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: no submit returned while the other was pending", round)
		}
		close(release)
		require.NoError(t, <-results)
		require.EqualValues(t, 1, calls.Load(), "round %d", round)
		require.Zero(t, flights.Len())
	}
}
