package identity

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/koinonia-app/koinonia/internal/authz"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
	"github.com/koinonia-app/koinonia/internal/shared"
)

type fakeRoleSource struct {
	roles      map[string][]authz.RoleRef
	groupRoles map[string]authz.GroupRole
}

func (f *fakeRoleSource) RolesForUser(_ context.Context, userID string) ([]authz.RoleRef, error) {
	return f.roles[userID], nil
}

func (f *fakeRoleSource) GroupRole(_ context.Context, userID string, _ int64) (authz.GroupRole, error) {
	return f.groupRoles[userID], nil
}

func newTestGuard(src *fakeRoleSource) *Guard {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGuard(NewGateway(src), logger)
}

func ctxWithUser(userID string) context.Context {
	sess := &shared.Session{}
	sess.SetUser(userID)
	return shared.ContextWithSession(context.Background(), sess)
}

func TestRequireUserWithoutSessionIsUnauthorized(t *testing.T) {
	guard := newTestGuard(&fakeRoleSource{})

	_, err := guard.RequireUser(context.Background())
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestRequireUserWithAnonymousSessionIsUnauthorized(t *testing.T) {
	guard := newTestGuard(&fakeRoleSource{})
	ctx := shared.ContextWithSession(context.Background(), &shared.Session{})

	_, err := guard.RequireUser(ctx)
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestRequireFellowshipPermission(t *testing.T) {
	src := &fakeRoleSource{roles: map[string][]authz.RoleRef{
		"user_pastor": {{ID: 2, Name: "pastor"}},
	}}
	guard := newTestGuard(src)

	principal, err := guard.RequireFellowshipPermission(ctxWithUser("user_pastor"), authz.PermCreateEvents)
	require.NoError(t, err)
	require.Equal(t, "user_pastor", principal.ID)

	// Authenticated but missing the permission: forbidden, not unauthorized.
	_, err = guard.RequireFellowshipPermission(ctxWithUser("user_pastor"), authz.PermManageSettings)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = guard.RequireFellowshipPermission(context.Background(), authz.PermCreateEvents)
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestRequireAnyFellowshipPermission(t *testing.T) {
	src := &fakeRoleSource{roles: map[string][]authz.RoleRef{
		"user_editor": {{ID: 3, Name: "editor"}},
	}}
	guard := newTestGuard(src)

	// Editors hold create_events but not edit_all_events; one match is enough.
	principal, err := guard.RequireAnyFellowshipPermission(ctxWithUser("user_editor"),
		authz.PermCreateEvents, authz.PermEditAllEvents)
	require.NoError(t, err)
	require.Equal(t, "user_editor", principal.ID)

	_, err = guard.RequireAnyFellowshipPermission(ctxWithUser("user_editor"),
		authz.PermManageSettings, authz.PermManageUsers)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = guard.RequireAnyFellowshipPermission(context.Background(), authz.PermCreateEvents)
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestRequireAdmin(t *testing.T) {
	src := &fakeRoleSource{roles: map[string][]authz.RoleRef{
		"user_admin":  {{ID: 1, Name: "admin"}},
		"user_member": {{ID: 5, Name: "member"}},
	}}
	guard := newTestGuard(src)

	_, err := guard.RequireAdmin(ctxWithUser("user_admin"))
	require.NoError(t, err)

	_, err = guard.RequireAdmin(ctxWithUser("user_member"))
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestRequireGroupManagement(t *testing.T) {
	src := &fakeRoleSource{
		roles: map[string][]authz.RoleRef{
			"user_pastor": {{ID: 2, Name: "pastor"}},
			"user_leader": {{ID: 5, Name: "member"}},
			"user_plain":  {{ID: 5, Name: "member"}},
		},
		groupRoles: map[string]authz.GroupRole{
			"user_leader": authz.GroupRoleLeader,
			"user_plain":  authz.GroupRoleMember,
		},
	}
	guard := newTestGuard(src)

	// Pastors manage all groups without being a member of this one.
	_, role, err := guard.RequireGroupManagement(ctxWithUser("user_pastor"), 7)
	require.NoError(t, err)
	require.Empty(t, role)

	_, role, err = guard.RequireGroupManagement(ctxWithUser("user_leader"), 7)
	require.NoError(t, err)
	require.Equal(t, authz.GroupRoleLeader, role)

	_, _, err = guard.RequireGroupManagement(ctxWithUser("user_plain"), 7)
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestRequireGroupPermission(t *testing.T) {
	src := &fakeRoleSource{
		roles: map[string][]authz.RoleRef{
			"user_leader": {{ID: 5, Name: "member"}},
			"user_plain":  {{ID: 5, Name: "member"}},
			"user_pastor": {{ID: 2, Name: "pastor"}},
		},
		groupRoles: map[string]authz.GroupRole{
			"user_leader": authz.GroupRoleLeader,
			"user_plain":  authz.GroupRoleMember,
		},
	}
	guard := newTestGuard(src)

	_, _, err := guard.RequireGroupPermission(ctxWithUser("user_leader"), 3, authz.GroupPermMarkAttendance)
	require.NoError(t, err)

	// Plain members may view attendance but not mark it.
	_, _, err = guard.RequireGroupPermission(ctxWithUser("user_plain"), 3, authz.GroupPermViewAttendance)
	require.NoError(t, err)
	_, _, err = guard.RequireGroupPermission(ctxWithUser("user_plain"), 3, authz.GroupPermMarkAttendance)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	// manage_all_groups bypasses the membership requirement entirely.
	_, _, err = guard.RequireGroupPermission(ctxWithUser("user_pastor"), 3, authz.GroupPermMarkAttendance)
	require.NoError(t, err)
}

func TestRequireOwnerOrAdmin(t *testing.T) {
	src := &fakeRoleSource{roles: map[string][]authz.RoleRef{
		"user_admin": {{ID: 1, Name: "admin"}},
		"user_owner": {{ID: 5, Name: "member"}},
		"user_other": {{ID: 5, Name: "member"}},
	}}
	guard := newTestGuard(src)

	_, err := guard.RequireOwnerOrAdmin(ctxWithUser("user_owner"), "user_owner")
	require.NoError(t, err)

	_, err = guard.RequireOwnerOrAdmin(ctxWithUser("user_admin"), "user_owner")
	require.NoError(t, err)

	_, err = guard.RequireOwnerOrAdmin(ctxWithUser("user_other"), "user_owner")
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestRequireAction(t *testing.T) {
	src := &fakeRoleSource{roles: map[string][]authz.RoleRef{
		"user_editor": {{ID: 3, Name: "editor"}},
	}}
	guard := newTestGuard(src)

	_, err := guard.RequireAction(ctxWithUser("user_editor"), authz.ActionUpdate, authz.ResourcePost, authz.ActionContext{})
	require.NoError(t, err)

	_, err = guard.RequireAction(ctxWithUser("user_editor"), authz.ActionDelete, authz.ResourceEvent, authz.ActionContext{})
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestOwnershipHelpers(t *testing.T) {
	src := &fakeRoleSource{roles: map[string][]authz.RoleRef{
		"user_pastor": {{ID: 2, Name: "pastor"}},
		"user_plain":  {{ID: 5, Name: "member"}},
	}}
	guard := newTestGuard(src)

	require.True(t, guard.IsOwnerOrAdmin(ctxWithUser("user_plain"), "user_plain"))
	require.False(t, guard.IsOwnerOrAdmin(ctxWithUser("user_plain"), "user_other"))
	require.False(t, guard.IsOwnerOrAdmin(ctxWithUser("user_pastor"), "user_other"))
	require.True(t, guard.IsOwnerOrAdminOrPastor(ctxWithUser("user_pastor"), "user_other"))
	require.False(t, guard.IsOwnerOrAdmin(context.Background(), "user_plain"))
}

func TestResolveDeduplicatesRoles(t *testing.T) {
	src := &fakeRoleSource{roles: map[string][]authz.RoleRef{
		"user_dup": {{ID: 3, Name: "editor"}, {ID: 3, Name: "editor"}, {ID: 5, Name: "member"}},
	}}
	gateway := NewGateway(src)

	principal, err := gateway.Resolve(ctxWithUser("user_dup"))
	require.NoError(t, err)
	require.Len(t, principal.Roles, 2)
}
