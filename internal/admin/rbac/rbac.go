// Package rbac decides which staff roles may reach which admin screens.
package rbac

import (
	"strings"
)

// Role represents a staff access tier.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleOps     Role = "ops"
	RoleSupport Role = "support"
)

// Capability names a screen or action guarded by role checks.
type Capability string

const (
	CapDashboardView Capability = "dashboard.view"
	CapProfileSelf   Capability = "profile.self"
	CapMetricsView   Capability = "system.metrics"
)

var capabilityRoles = map[Capability]Roles{
	CapDashboardView: {RoleAdmin, RoleOps, RoleSupport},
	CapProfileSelf:   {RoleAdmin, RoleOps, RoleSupport},
	CapMetricsView:   {RoleAdmin, RoleOps},
}

// Roles is a set of roles.
type Roles []Role

// Has returns true if the provided role exists in the set.
func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Intersects returns true if any role in the candidate slice is also present in the set.
func (rs Roles) Intersects(candidate Roles) bool {
	for _, role := range candidate {
		if rs.Has(role) {
			return true
		}
	}
	return false
}

// NormaliseRoles lower-cases, trims and de-duplicates raw role claims.
func NormaliseRoles(raw []string) Roles {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[Role]struct{}, len(raw))
	roles := make(Roles, 0, len(raw))
	for _, val := range raw {
		role := Role(strings.ToLower(strings.TrimSpace(val)))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles
}

// HasAnyRole reports whether userRoles include one of required. Admins always pass.
func HasAnyRole(userRoles []string, required Roles) bool {
	roles := NormaliseRoles(userRoles)
	if roles.Has(RoleAdmin) {
		return true
	}
	return required.Intersects(roles)
}

// HasCapability reports whether userRoles grant capability. Unknown
// capabilities are denied even to admins.
func HasCapability(userRoles []string, capability Capability) bool {
	if capability == "" {
		return true
	}
	allowed, ok := capabilityRoles[capability]
	if !ok {
		return false
	}
	roles := NormaliseRoles(userRoles)
	if roles.Has(RoleAdmin) {
		return true
	}
	return allowed.Intersects(roles)
}
