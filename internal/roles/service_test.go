package roles_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koinonia-app/koinonia/internal/authz"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
	"github.com/koinonia-app/koinonia/internal/roles"
	_ "github.com/koinonia-app/koinonia/testing"
)

type memoryRepo struct {
	nextID      int64
	roles       map[int64]*roles.Role
	assignments map[string][]int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextID:      1,
		roles:       make(map[int64]*roles.Role),
		assignments: make(map[string][]int64),
	}
}

func (m *memoryRepo) List(_ context.Context) ([]roles.Role, error) {
	var out []roles.Role
	for id := int64(1); id < m.nextID; id++ {
		if role, ok := m.roles[id]; ok {
			out = append(out, *role)
		}
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*roles.Role, error) {
	if role, ok := m.roles[id]; ok {
		copied := *role
		return &copied, nil
	}
	return nil, httpx.ErrNotFound
}

func (m *memoryRepo) Create(_ context.Context, role *roles.Role) error {
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return httpx.ErrDuplicate
		}
	}
	role.ID = m.nextID
	role.CreatedAt = time.Now()
	role.UpdatedAt = role.CreatedAt
	m.nextID++
	copied := *role
	m.roles[role.ID] = &copied
	return nil
}

func (m *memoryRepo) Update(_ context.Context, role *roles.Role) error {
	if _, ok := m.roles[role.ID]; !ok {
		return httpx.ErrNotFound
	}
	copied := *role
	m.roles[role.ID] = &copied
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.roles, id)
	for userID, assigned := range m.assignments {
		var kept []int64
		for _, roleID := range assigned {
			if roleID != id {
				kept = append(kept, roleID)
			}
		}
		m.assignments[userID] = kept
	}
	return nil
}

func (m *memoryRepo) Assign(_ context.Context, userID string, roleID int64) error {
	for _, existing := range m.assignments[userID] {
		if existing == roleID {
			return nil
		}
	}
	m.assignments[userID] = append(m.assignments[userID], roleID)
	return nil
}

func (m *memoryRepo) Unassign(_ context.Context, userID string, roleID int64) error {
	assigned := m.assignments[userID]
	for i, existing := range assigned {
		if existing == roleID {
			m.assignments[userID] = append(assigned[:i], assigned[i+1:]...)
			return nil
		}
	}
	return httpx.ErrNotFound
}

func (m *memoryRepo) RolesForUser(_ context.Context, userID string) ([]roles.Role, error) {
	var out []roles.Role
	for _, roleID := range m.assignments[userID] {
		if role, ok := m.roles[roleID]; ok {
			out = append(out, *role)
		}
	}
	return out, nil
}

func TestCreateNormalizesName(t *testing.T) {
	svc := roles.NewService(newMemoryRepo())

	role, err := svc.Create(context.Background(), "  Pastor ", "Shepherds the flock")
	require.NoError(t, err)
	require.Equal(t, "pastor", role.Name)

	_, err = svc.Create(context.Background(), "pastor", "")
	require.ErrorIs(t, err, httpx.ErrDuplicate)

	_, err = svc.Create(context.Background(), "   ", "")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestListAttachesPermissionBundles(t *testing.T) {
	repo := newMemoryRepo()
	svc := roles.NewService(repo)
	_, err := svc.Create(context.Background(), "editor", "")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "greeter", "Custom role with no bundle")
	require.NoError(t, err)

	listed, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Contains(t, listed[0].Permissions, authz.PermManagePosts)
	require.Empty(t, listed[1].Permissions)
}

func TestAssignAndUnassign(t *testing.T) {
	repo := newMemoryRepo()
	svc := roles.NewService(repo)
	role, err := svc.Create(context.Background(), "deacon", "")
	require.NoError(t, err)

	require.NoError(t, svc.Assign(context.Background(), "user_1", role.ID))
	// Assigning twice is a no-op.
	require.NoError(t, svc.Assign(context.Background(), "user_1", role.ID))
	require.Len(t, repo.assignments["user_1"], 1)

	held, err := svc.RolesForUser(context.Background(), "user_1")
	require.NoError(t, err)
	require.Len(t, held, 1)
	require.Contains(t, held[0].Permissions, authz.PermReviewGroupApplications)

	require.NoError(t, svc.Unassign(context.Background(), "user_1", role.ID))
	require.ErrorIs(t, svc.Unassign(context.Background(), "user_1", role.ID), httpx.ErrNotFound)
}

func TestAssignUnknownRole(t *testing.T) {
	svc := roles.NewService(newMemoryRepo())
	require.ErrorIs(t, svc.Assign(context.Background(), "user_1", 99), httpx.ErrNotFound)
}

func TestDeleteRemovesAssignments(t *testing.T) {
	repo := newMemoryRepo()
	svc := roles.NewService(repo)
	role, err := svc.Create(context.Background(), "member", "")
	require.NoError(t, err)
	require.NoError(t, svc.Assign(context.Background(), "user_1", role.ID))

	require.NoError(t, svc.Delete(context.Background(), role.ID))
	held, err := svc.RolesForUser(context.Background(), "user_1")
	require.NoError(t, err)
	require.Empty(t, held)
}
