package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/koinonia-app/koinonia/internal/authz"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

// Service handles role catalog business logic.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RoleWithPermissions pairs a catalog row with its fixed permission bundle.
type RoleWithPermissions struct {
	Role
	Permissions []authz.FellowshipPermission
}

// List returns the catalog with each role's resolved permission bundle.
// Roles without a known bundle carry an empty permission list.
func (s *Service) List(ctx context.Context) ([]RoleWithPermissions, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RoleWithPermissions, 0, len(roles))
	for _, role := range roles {
		out = append(out, RoleWithPermissions{
			Role:        role,
			Permissions: authz.RolePermissions(role.Name),
		})
	}
	return out, nil
}

// Create adds a role to the catalog.
func (s *Service) Create(ctx context.Context, name, description string) (*Role, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", httpx.ErrValidation)
	}
	role := &Role{Name: name, Description: strings.TrimSpace(description)}
	if err := s.repo.Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Update renames a role or changes its description. The five built-in role
// names keep their permission bundles by name, so renaming one detaches the
// bundle; the handler warns but does not block.
func (s *Service) Update(ctx context.Context, id int64, name, description string) (*Role, error) {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		role.Name = strings.TrimSpace(strings.ToLower(name))
	}
	role.Description = strings.TrimSpace(description)
	if err := s.repo.Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Delete removes a role and all its assignments.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Assign grants a role to a user.
func (s *Service) Assign(ctx context.Context, userID string, roleID int64) error {
	if _, err := s.repo.Get(ctx, roleID); err != nil {
		return err
	}
	return s.repo.Assign(ctx, userID, roleID)
}

// Unassign revokes a role from a user.
func (s *Service) Unassign(ctx context.Context, userID string, roleID int64) error {
	return s.repo.Unassign(ctx, userID, roleID)
}

// RolesForUser lists a user's roles with permission bundles.
func (s *Service) RolesForUser(ctx context.Context, userID string) ([]RoleWithPermissions, error) {
	roles, err := s.repo.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]RoleWithPermissions, 0, len(roles))
	for _, role := range roles {
		out = append(out, RoleWithPermissions{
			Role:        role,
			Permissions: authz.RolePermissions(role.Name),
		})
	}
	return out, nil
}
