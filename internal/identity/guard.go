package identity

import (
	"context"
	"log/slog"

	"github.com/koinonia-app/koinonia/internal/authz"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

// Guard enforces authorization at handler boundaries. Every Require* method
// distinguishes the two failure classes: no authenticated user yields
// httpx.ErrUnauthorized (401), an authenticated user lacking the permission
// yields httpx.ErrForbidden (403).
type Guard struct {
	gateway *Gateway
	logger  *slog.Logger
}

// NewGuard constructs a Guard.
func NewGuard(gateway *Gateway, logger *slog.Logger) *Guard {
	return &Guard{gateway: gateway, logger: logger}
}

// RequireUser resolves the current principal, failing when nobody is logged in.
func (g *Guard) RequireUser(ctx context.Context) (*authz.Principal, error) {
	principal, err := g.gateway.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, httpx.ErrUnauthorized
	}
	return principal, nil
}

// RequireFellowshipPermission resolves the principal and checks a single
// fellowship-level permission.
func (g *Guard) RequireFellowshipPermission(ctx context.Context, perm authz.FellowshipPermission) (*authz.Principal, error) {
	principal, err := g.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !authz.HasFellowshipPermission(principal, perm) {
		g.logger.Warn("permission denied", "user_id", principal.ID, "permission", string(perm))
		return nil, httpx.ErrForbidden
	}
	return principal, nil
}

// RequireAnyFellowshipPermission passes when the principal holds at least one
// of the listed permissions.
func (g *Guard) RequireAnyFellowshipPermission(ctx context.Context, perms ...authz.FellowshipPermission) (*authz.Principal, error) {
	principal, err := g.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !authz.HasAnyFellowshipPermission(principal, perms) {
		g.logger.Warn("permission denied", "user_id", principal.ID)
		return nil, httpx.ErrForbidden
	}
	return principal, nil
}

// RequireAdmin passes only for principals holding the admin role.
func (g *Guard) RequireAdmin(ctx context.Context) (*authz.Principal, error) {
	principal, err := g.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !authz.IsAdmin(principal) {
		g.logger.Warn("admin required", "user_id", principal.ID)
		return nil, httpx.ErrForbidden
	}
	return principal, nil
}

// RequireGroupManagement passes for users with the manage_all_groups
// fellowship permission or the leader role within the group. The resolved
// group role is returned so handlers can avoid a second lookup.
func (g *Guard) RequireGroupManagement(ctx context.Context, groupID int64) (*authz.Principal, authz.GroupRole, error) {
	principal, err := g.RequireUser(ctx)
	if err != nil {
		return nil, "", err
	}
	groupRole, err := g.gateway.GroupRole(ctx, principal.ID, groupID)
	if err != nil {
		return nil, "", err
	}
	if !authz.CanManageGroup(principal, groupRole) {
		g.logger.Warn("group management denied", "user_id", principal.ID, "group_id", groupID)
		return nil, "", httpx.ErrForbidden
	}
	return principal, groupRole, nil
}

// RequireGroupPermission passes when the principal holds the permission
// through their group role, or manages all groups fellowship-wide.
func (g *Guard) RequireGroupPermission(ctx context.Context, groupID int64, perm authz.GroupPermission) (*authz.Principal, authz.GroupRole, error) {
	principal, err := g.RequireUser(ctx)
	if err != nil {
		return nil, "", err
	}
	groupRole, err := g.gateway.GroupRole(ctx, principal.ID, groupID)
	if err != nil {
		return nil, "", err
	}
	if authz.HasFellowshipPermission(principal, authz.PermManageAllGroups) {
		return principal, groupRole, nil
	}
	if !authz.HasGroupPermission(groupRole, perm) {
		g.logger.Warn("group permission denied",
			"user_id", principal.ID, "group_id", groupID, "permission", string(perm))
		return nil, "", httpx.ErrForbidden
	}
	return principal, groupRole, nil
}

// RequireOwnerOrAdmin passes when the principal is the resource owner or an
// admin.
func (g *Guard) RequireOwnerOrAdmin(ctx context.Context, ownerID string) (*authz.Principal, error) {
	principal, err := g.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if principal.ID != ownerID && !authz.IsAdmin(principal) {
		g.logger.Warn("ownership required", "user_id", principal.ID, "owner_id", ownerID)
		return nil, httpx.ErrForbidden
	}
	return principal, nil
}

// RequireAction resolves the principal and evaluates the resource policy.
func (g *Guard) RequireAction(ctx context.Context, action authz.Action, resource string, actx authz.ActionContext) (*authz.Principal, error) {
	principal, err := g.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !authz.CanPerformAction(principal, action, resource, actx) {
		g.logger.Warn("action denied",
			"user_id", principal.ID, "action", string(action), "resource", resource)
		return nil, httpx.ErrForbidden
	}
	return principal, nil
}

// IsOwnerOrAdmin reports whether the current user owns the resource or is an
// admin. Lookup failures count as false; use the Require variants when the
// caller needs the error.
func (g *Guard) IsOwnerOrAdmin(ctx context.Context, ownerID string) bool {
	principal, err := g.gateway.Resolve(ctx)
	if err != nil || principal == nil {
		return false
	}
	return principal.ID == ownerID || authz.IsAdmin(principal)
}

// IsOwnerOrAdminOrPastor additionally accepts the pastor role.
func (g *Guard) IsOwnerOrAdminOrPastor(ctx context.Context, ownerID string) bool {
	principal, err := g.gateway.Resolve(ctx)
	if err != nil || principal == nil {
		return false
	}
	return principal.ID == ownerID || authz.IsAdmin(principal) || authz.IsPastor(principal)
}
