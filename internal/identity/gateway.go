// Package identity resolves the authenticated principal for a request and
// enforces authorization rules at the route boundary. The pure permission
// logic lives in internal/authz; this package owns the persistence reads
// (role assignments, group memberships) and the error taxonomy.
package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koinonia-app/koinonia/internal/authz"
	"github.com/koinonia-app/koinonia/internal/shared"
)

// RoleSource provides the persisted facts the gateway needs: fellowship role
// assignments and per-group membership roles.
type RoleSource interface {
	RolesForUser(ctx context.Context, userID string) ([]authz.RoleRef, error)
	GroupRole(ctx context.Context, userID string, groupID int64) (authz.GroupRole, error)
}

// Gateway reconstructs a Principal from session state plus role rows.
// Principals are ephemeral: rebuilt on every request, never cached.
type Gateway struct {
	roles RoleSource
}

// NewGateway constructs a Gateway.
func NewGateway(roles RoleSource) *Gateway {
	return &Gateway{roles: roles}
}

// Resolve returns the principal for the session bound to ctx, with attached
// roles deduplicated by role id. Returns (nil, nil) when no user is logged
// in; callers decide whether anonymity is an error.
func (g *Gateway) Resolve(ctx context.Context) (*authz.Principal, error) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil || sess.User() == "" {
		return nil, nil
	}
	userID := sess.User()

	roles, err := g.roles.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(roles))
	deduped := roles[:0]
	for _, role := range roles {
		if _, ok := seen[role.ID]; ok {
			continue
		}
		seen[role.ID] = struct{}{}
		deduped = append(deduped, role)
	}

	return &authz.Principal{ID: userID, Roles: deduped}, nil
}

// GroupRole looks up the principal's role within one group. An empty role
// means the user is not a member.
func (g *Gateway) GroupRole(ctx context.Context, userID string, groupID int64) (authz.GroupRole, error) {
	return g.roles.GroupRole(ctx, userID, groupID)
}

// PGRoleSource implements RoleSource against PostgreSQL.
type PGRoleSource struct {
	pool *pgxpool.Pool
}

// NewPGRoleSource constructs a PostgreSQL backed role source.
func NewPGRoleSource(pool *pgxpool.Pool) *PGRoleSource {
	return &PGRoleSource{pool: pool}
}

// RolesForUser returns the fellowship roles assigned to a user.
func (s *PGRoleSource) RolesForUser(ctx context.Context, userID string) ([]authz.RoleRef, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []authz.RoleRef
	for rows.Next() {
		var ref authz.RoleRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		roles = append(roles, ref)
	}
	return roles, rows.Err()
}

// GroupRole returns the user's role in a group, or "" when not a member.
func (s *PGRoleSource) GroupRole(ctx context.Context, userID string, groupID int64) (authz.GroupRole, error) {
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT role FROM group_members WHERE user_id = $1 AND group_id = $2`,
		userID, groupID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return authz.GroupRole(role), nil
}

var _ RoleSource = (*PGRoleSource)(nil)
