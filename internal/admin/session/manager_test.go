package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}

func newTestManager(t *testing.T) (*Manager, *fixedClock) {
	t.Helper()

	clock := &fixedClock{current: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	mgr, err := NewManager(Config{
		CookieName: "test_session",
		HashKey:    []byte("12345678901234567890123456789012"),
		BlockKey:   []byte("abcdefghijklmnopqrstuv0123456789"),
		CookiePath: "/admin",
		Lifetime:   2 * time.Hour,
		Now:        clock.Now,
	})
	require.NoError(t, err)
	return mgr, clock
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func requestWith(cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	return req
}

func TestManagerIssueAndLoad(t *testing.T) {
	mgr, clock := newTestManager(t)

	rec := httptest.NewRecorder()
	issued, err := mgr.Issue(rec, Data{
		UID:       "user-1",
		Email:     "admin@example.com",
		Roles:     []string{"admin"},
		IDToken:   "id-token",
		ExpiresAt: clock.current.Add(30 * time.Minute),
	})
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)
	require.Equal(t, clock.current, issued.CreatedAt)

	cookie := findCookie(rec.Result().Cookies(), "test_session")
	require.NotNil(t, cookie, "expected session cookie")
	require.True(t, cookie.HttpOnly)
	require.Equal(t, "/admin", cookie.Path)
	require.Equal(t, 1800, cookie.MaxAge)
	require.NotContains(t, cookie.Value, "id-token", "payload must be encrypted")

	loaded, err := mgr.Load(requestWith(cookie))
	require.NoError(t, err)
	require.Equal(t, "user-1", loaded.UID)
	require.Equal(t, "id-token", loaded.IDToken)
	require.Equal(t, []string{"admin"}, loaded.Roles)
	require.Equal(t, issued.ID, loaded.ID)
}

func TestManagerCapsExpiryAtLifetime(t *testing.T) {
	mgr, clock := newTestManager(t)

	rec := httptest.NewRecorder()
	issued, err := mgr.Issue(rec, Data{UID: "u", IDToken: "t"})
	require.NoError(t, err)
	require.Equal(t, clock.current.Add(2*time.Hour), issued.ExpiresAt)

	issued, err = mgr.Issue(httptest.NewRecorder(), Data{UID: "u", IDToken: "t", ExpiresAt: clock.current.Add(48 * time.Hour)})
	require.NoError(t, err)
	require.Equal(t, clock.current.Add(2*time.Hour), issued.ExpiresAt)
}

func TestManagerLoadExpired(t *testing.T) {
	mgr, clock := newTestManager(t)

	rec := httptest.NewRecorder()
	_, err := mgr.Issue(rec, Data{UID: "u", IDToken: "t", ExpiresAt: clock.current.Add(10 * time.Minute)})
	require.NoError(t, err)
	cookie := findCookie(rec.Result().Cookies(), "test_session")

	clock.current = clock.current.Add(11 * time.Minute)
	_, err = mgr.Load(requestWith(cookie))
	require.True(t, errors.Is(err, ErrExpired), "expected ErrExpired, got %v", err)
	require.EqualError(t, err, "session: expired")
}

func TestManagerLoadRejectsTampering(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.Load(requestWith(nil))
	require.ErrorIs(t, err, ErrNoSession)

	_, err = mgr.Load(requestWith(&http.Cookie{Name: "test_session", Value: "forged"}))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestManagerDestroy(t *testing.T) {
	mgr, _ := newTestManager(t)

	rec := httptest.NewRecorder()
	mgr.Destroy(rec)
	cookie := findCookie(rec.Result().Cookies(), "test_session")
	require.NotNil(t, cookie)
	require.Equal(t, -1, cookie.MaxAge)
	require.Empty(t, cookie.Value)
}

func TestNewManagerValidatesKeys(t *testing.T) {
	_, err := NewManager(Config{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewManager(Config{HashKey: []byte("k"), BlockKey: []byte("short")})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewManager(Config{HashKey: []byte("k")})
	require.NoError(t, err)
}
