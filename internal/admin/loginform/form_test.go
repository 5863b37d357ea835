package loginform

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubClient struct {
	mu      sync.Mutex
	calls   []string
	err     error
	loading atomic.Bool
	// block, when set, holds Login until it is closed or ctx ends.
	block   chan struct{}
	entered chan struct{}
	// ignoreCtx makes Login wait for block even when ctx is cancelled.
	ignoreCtx bool
}

func (s *stubClient) Login(ctx context.Context, identifier, secret string) error {
	s.mu.Lock()
	s.calls = append(s.calls, identifier+":"+secret)
	s.mu.Unlock()

	if s.block != nil {
		s.loading.Store(true)
		defer s.loading.Store(false)
		if s.entered != nil {
			close(s.entered)
		}
		if s.ignoreCtx {
			<-s.block
		} else {
			select {
			case <-s.block:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return s.err
}

func (s *stubClient) Loading() bool {
	return s.loading.Load()
}

func (s *stubClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		identifier string
		secret     string
	}{
		{name: "both empty"},
		{name: "secret empty", identifier: "admin@example.com"},
		{name: "identifier empty", secret: "correct"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := &stubClient{}
			nav := &recordingNavigator{}
			form := New(client, nav)
			form.SetIdentifier(tc.identifier)
			form.SetSecret(tc.secret)

			err := form.Submit(context.Background())
			require.ErrorIs(t, err, ErrValidation)
			require.Equal(t, MessageMissingFields, form.ErrorMessage())
			require.Zero(t, client.callCount())
			require.Empty(t, nav.visited())
		})
	}
}

func TestSubmitSuccessNavigatesToDashboardOnce(t *testing.T) {
	t.Parallel()

	client := &stubClient{}
	nav := &recordingNavigator{}
	form := New(client, nav)
	form.SetIdentifier("admin@example.com")
	form.SetSecret("correct")

	require.NoError(t, form.Submit(context.Background()))
	require.Equal(t, []string{"/admin/dashboard"}, nav.visited())
	require.Empty(t, form.ErrorMessage())
	require.Equal(t, []string{"admin@example.com:correct"}, client.calls)
}

func TestSubmitFailureShowsGenericMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("network unreachable")
	client := &stubClient{err: cause}
	nav := &recordingNavigator{}
	form := New(client, nav)
	form.SetIdentifier("admin@example.com")
	form.SetSecret("wrong")

	err := form.Submit(context.Background())
	require.ErrorIs(t, err, ErrAuthentication)
	require.ErrorIs(t, err, cause)
	require.Equal(t, MessageLoginFailed, form.ErrorMessage())
	require.Empty(t, nav.visited())
}

func TestSubmitClearsPreviousErrorWhileInFlight(t *testing.T) {
	t.Parallel()

	client := &stubClient{}
	nav := &recordingNavigator{}
	form := New(client, nav)

	require.ErrorIs(t, form.Submit(context.Background()), ErrValidation)
	require.Equal(t, MessageMissingFields, form.ErrorMessage())

	client.block = make(chan struct{})
	client.entered = make(chan struct{})
	form.SetIdentifier("admin@example.com")
	form.SetSecret("correct")

	done := make(chan error, 1)
	go func() { done <- form.Submit(context.Background()) }()

	<-client.entered
	require.Empty(t, form.ErrorMessage())
	close(client.block)
	require.NoError(t, <-done)
}

func TestViewReflectsLoadingState(t *testing.T) {
	t.Parallel()

	client := &stubClient{}
	form := New(client, &recordingNavigator{}, WithIdentifier("admin@example.com"))

	idle := form.View()
	require.False(t, idle.Loading)
	require.False(t, idle.InputsDisabled)
	require.False(t, idle.SubmitDisabled)
	require.Equal(t, LabelSubmit, idle.SubmitLabel)
	require.Equal(t, "admin@example.com", idle.Identifier)

	client.loading.Store(true)
	busy := form.View()
	require.True(t, busy.Loading)
	require.True(t, busy.InputsDisabled)
	require.True(t, busy.SubmitDisabled)
	require.Equal(t, LabelSubmitting, busy.SubmitLabel)
}

func TestAuxiliaryNavigationIgnoresFormState(t *testing.T) {
	t.Parallel()

	client := &stubClient{}
	client.loading.Store(true)
	nav := &recordingNavigator{}
	form := New(client, nav)
	form.SetIdentifier("not-an-email")

	form.NavigateHome()
	form.NavigateToUserLogin()

	require.Equal(t, []string{"/", "/login"}, nav.visited())
	require.Zero(t, client.callCount())
}

func TestCustomRoutesKeepDefaultsForEmptyFields(t *testing.T) {
	t.Parallel()

	nav := &recordingNavigator{}
	form := New(&stubClient{}, nav, WithRoutes(Routes{Dashboard: "/ops/dashboard"}))
	form.SetIdentifier("admin@example.com")
	form.SetSecret("correct")

	require.NoError(t, form.Submit(context.Background()))
	form.NavigateHome()
	form.NavigateToUserLogin()

	require.Equal(t, []string{"/ops/dashboard", "/", "/login"}, nav.visited())
}

func TestSubmitWhilePendingIssuesSingleLogin(t *testing.T) {
	t.Parallel()

	client := &stubClient{
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	nav := &recordingNavigator{}
	form := New(client, nav)
	form.SetIdentifier("admin@example.com")
	form.SetSecret("correct")

	done := make(chan error, 1)
	go func() { done <- form.Submit(context.Background()) }()
	<-client.entered

	require.ErrorIs(t, form.Submit(context.Background()), ErrSubmitInFlight)
	require.True(t, form.View().SubmitDisabled)

	close(client.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, client.callCount())
	require.Equal(t, []string{"/admin/dashboard"}, nav.visited())
}

func TestSubmitRejectedWhileClientReportsLoading(t *testing.T) {
	t.Parallel()

	client := &stubClient{}
	client.loading.Store(true)
	form := New(client, &recordingNavigator{})
	form.SetIdentifier("admin@example.com")
	form.SetSecret("correct")

	require.ErrorIs(t, form.Submit(context.Background()), ErrSubmitInFlight)
	require.Zero(t, client.callCount())
}

func TestCloseCancelsPendingLogin(t *testing.T) {
	t.Parallel()

	client := &stubClient{
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	nav := &recordingNavigator{}
	form := New(client, nav)
	form.SetIdentifier("admin@example.com")
	form.SetSecret("correct")

	done := make(chan error, 1)
	go func() { done <- form.Submit(context.Background()) }()
	<-client.entered

	form.Close()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not return after close")
	}
	require.Empty(t, nav.visited())
	require.Empty(t, form.ErrorMessage())
}

func TestResultAfterCloseIsIgnored(t *testing.T) {
	t.Parallel()

	client := &stubClient{
		block:     make(chan struct{}),
		entered:   make(chan struct{}),
		ignoreCtx: true,
		err:       errors.New("late failure"),
	}
	nav := &recordingNavigator{}
	form := New(client, nav)
	form.SetIdentifier("admin@example.com")
	form.SetSecret("wrong")

	done := make(chan error, 1)
	go func() { done <- form.Submit(context.Background()) }()
	<-client.entered

	form.Close()
	close(client.block)

	require.ErrorIs(t, <-done, ErrClosed)
	require.Empty(t, form.ErrorMessage())
	require.Empty(t, nav.visited())
	require.ErrorIs(t, form.Submit(context.Background()), ErrClosed)
}
