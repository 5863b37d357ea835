package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finitefield.org/hanko-admin/internal/admin/httpserver/middleware"
	"finitefield.org/hanko-admin/internal/admin/rbac"
)

func TestEnvironmentBadge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		code  string
		tone  string
	}{
		{"Production", "PRD", "danger"},
		{"staging", "STG", "warning"},
		{"", "DEV", "success"},
		{"Development", "DEV", "success"},
		{"qa-east", "QA-", "neutral"},
	}
	for _, tc := range tests {
		code, tone := EnvironmentBadge(tc.label)
		require.Equal(t, tc.code, code, tc.label)
		require.Equal(t, tc.tone, tone, tc.label)
	}
}

func TestUntil(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "expired", Until(now, now.Add(-time.Second)))
	require.Equal(t, "in less than a minute", Until(now, now.Add(30*time.Second)))
	require.Equal(t, "in 45m", Until(now, now.Add(45*time.Minute)))
	require.Equal(t, "in 3h", Until(now, now.Add(3*time.Hour+10*time.Minute)))
	require.Equal(t, "2025-01-03", Until(now, now.Add(48*time.Hour)))
}

func TestJoinPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/admin/login", JoinPath("/admin", "login"))
	require.Equal(t, "/admin/login", JoinPath("/admin/", "/login"))
	require.Equal(t, "/login", JoinPath("/", "login"))
	require.Equal(t, "/admin", JoinPath("admin", ""))
}

func TestHasCapability(t *testing.T) {
	t.Parallel()

	require.False(t, HasCapability(context.Background(), rbac.CapDashboardView))

	ctx := middleware.WithUser(context.Background(), &middleware.User{UID: "s", Roles: []string{"support"}})
	require.True(t, HasCapability(ctx, rbac.CapDashboardView))
	require.False(t, HasCapability(ctx, rbac.CapMetricsView))
}
