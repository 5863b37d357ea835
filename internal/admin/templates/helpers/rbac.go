package helpers

import (
	"context"

	"finitefield.org/hanko-admin/internal/admin/httpserver/middleware"
	"finitefield.org/hanko-admin/internal/admin/rbac"
)

// HasCapability reports whether the authenticated user possesses the capability.
func HasCapability(ctx context.Context, capability rbac.Capability) bool {
	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		return false
	}
	return rbac.HasCapability(user.Roles, capability)
}
