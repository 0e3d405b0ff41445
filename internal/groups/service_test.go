package groups

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koinonia-app/koinonia/internal/authz"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

type memberKey struct {
	groupID int64
	userID  string
}

type memoryRepo struct {
	groups      map[int64]*Group
	members     map[memberKey]*Membership
	apps        map[int64]*Application
	invitations map[int64]*Invitation

	nextGroupID int64
	nextAppID   int64
	nextInvID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		groups:      make(map[int64]*Group),
		members:     make(map[memberKey]*Membership),
		apps:        make(map[int64]*Application),
		invitations: make(map[int64]*Invitation),
	}
}

func (m *memoryRepo) List(_ context.Context) ([]Group, error) {
	var list []Group
	for _, g := range m.groups {
		list = append(list, *g)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (m *memoryRepo) ListForUser(_ context.Context, userID string) ([]Group, error) {
	var list []Group
	for key := range m.members {
		if key.userID == userID {
			if g, ok := m.groups[key.groupID]; ok {
				list = append(list, *g)
			}
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *g
	return &copied, nil
}

func (m *memoryRepo) Create(_ context.Context, group *Group) error {
	for _, g := range m.groups {
		if g.Name == group.Name {
			return httpx.ErrDuplicate
		}
	}
	m.nextGroupID++
	group.ID = m.nextGroupID
	group.CreatedAt = time.Now()
	group.UpdatedAt = group.CreatedAt
	copied := *group
	m.groups[group.ID] = &copied
	return nil
}

func (m *memoryRepo) Update(_ context.Context, group *Group) error {
	if _, ok := m.groups[group.ID]; !ok {
		return httpx.ErrNotFound
	}
	copied := *group
	m.groups[group.ID] = &copied
	return nil
}

func (m *memoryRepo) DeleteCascade(_ context.Context, id int64) error {
	if _, ok := m.groups[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.groups, id)
	for key := range m.members {
		if key.groupID == id {
			delete(m.members, key)
		}
	}
	for appID, app := range m.apps {
		if app.GroupID == id {
			delete(m.apps, appID)
		}
	}
	for invID, inv := range m.invitations {
		if inv.GroupID == id {
			delete(m.invitations, invID)
		}
	}
	return nil
}

func (m *memoryRepo) ListMembers(_ context.Context, groupID int64) ([]Membership, error) {
	var list []Membership
	for key, member := range m.members {
		if key.groupID == groupID {
			list = append(list, *member)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list, nil
}

func (m *memoryRepo) AddMember(_ context.Context, groupID int64, userID string, role authz.GroupRole) error {
	key := memberKey{groupID: groupID, userID: userID}
	if _, ok := m.members[key]; ok {
		return httpx.ErrDuplicate
	}
	m.members[key] = &Membership{GroupID: groupID, UserID: userID, Role: role, CreatedAt: time.Now()}
	return nil
}

func (m *memoryRepo) RemoveMember(_ context.Context, groupID int64, userID string) error {
	key := memberKey{groupID: groupID, userID: userID}
	if _, ok := m.members[key]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.members, key)
	return nil
}

func (m *memoryRepo) SetMemberRole(_ context.Context, groupID int64, userID string, role authz.GroupRole) error {
	key := memberKey{groupID: groupID, userID: userID}
	member, ok := m.members[key]
	if !ok {
		return httpx.ErrNotFound
	}
	member.Role = role
	return nil
}

func (m *memoryRepo) CreateApplications(_ context.Context, userID string, groupIDs []int64) (int, error) {
	created := 0
	for _, groupID := range groupIDs {
		exists := false
		for _, app := range m.apps {
			if app.GroupID == groupID && app.UserID == userID {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		m.nextAppID++
		m.apps[m.nextAppID] = &Application{
			ID:        m.nextAppID,
			GroupID:   groupID,
			UserID:    userID,
			Status:    ApplicationPending,
			CreatedAt: time.Now(),
		}
		created++
	}
	return created, nil
}

func (m *memoryRepo) ListApplications(_ context.Context, groupID int64) ([]Application, error) {
	var list []Application
	for _, app := range m.apps {
		if app.GroupID == groupID {
			list = append(list, *app)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *memoryRepo) ListApplicationsForUser(_ context.Context, userID string) ([]Application, error) {
	var list []Application
	for _, app := range m.apps {
		if app.UserID == userID {
			list = append(list, *app)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *memoryRepo) GetApplication(_ context.Context, id int64) (*Application, error) {
	app, ok := m.apps[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *app
	return &copied, nil
}

func (m *memoryRepo) ReviewApplication(_ context.Context, id int64, reviewerID, status string) error {
	app, ok := m.apps[id]
	if !ok {
		return httpx.ErrNotFound
	}
	now := time.Now()
	app.Status = status
	app.ReviewedBy = reviewerID
	app.ReviewedAt = &now
	return nil
}

func (m *memoryRepo) CreateInvitation(_ context.Context, inv *Invitation) error {
	for _, existing := range m.invitations {
		if existing.GroupID == inv.GroupID && existing.InvitedUserID == inv.InvitedUserID &&
			existing.Status == InvitationPending {
			return httpx.ErrDuplicate
		}
	}
	m.nextInvID++
	inv.ID = m.nextInvID
	inv.Status = InvitationPending
	inv.CreatedAt = time.Now()
	copied := *inv
	m.invitations[inv.ID] = &copied
	return nil
}

func (m *memoryRepo) ListInvitationsForUser(_ context.Context, userID string) ([]Invitation, error) {
	var list []Invitation
	for _, inv := range m.invitations {
		if inv.InvitedUserID == userID {
			list = append(list, *inv)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *memoryRepo) GetInvitation(_ context.Context, id int64) (*Invitation, error) {
	inv, ok := m.invitations[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (m *memoryRepo) SetInvitationStatus(_ context.Context, id int64, status string) error {
	inv, ok := m.invitations[id]
	if !ok {
		return httpx.ErrNotFound
	}
	inv.Status = status
	return nil
}

var _ Repository = (*memoryRepo)(nil)

func seedGroup(t *testing.T, repo *memoryRepo, name string) *Group {
	t.Helper()
	group := &Group{Name: name}
	require.NoError(t, repo.Create(context.Background(), group))
	return group
}

func TestCreateEnrollsCreatorAsLeader(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	group, err := svc.Create(context.Background(), "  Worship Team  ", "Sunday musicians", "user_1")
	require.NoError(t, err)
	require.Equal(t, "Worship Team", group.Name)

	members, err := svc.ListMembers(context.Background(), group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "user_1", members[0].UserID)
	require.Equal(t, authz.GroupRoleLeader, members[0].Role)
}

func TestCreateRejectsEmptyName(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), "   ", "", "user_1")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestApplyPartitionsGroups(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	choir := seedGroup(t, repo, "Choir")
	ushers := seedGroup(t, repo, "Ushers")
	youth := seedGroup(t, repo, "Youth")

	require.NoError(t, repo.AddMember(ctx, choir.ID, "user_1", authz.GroupRoleMember))
	_, err := repo.CreateApplications(ctx, "user_1", []int64{ushers.ID})
	require.NoError(t, err)

	result, err := svc.Apply(ctx, "user_1", []int64{choir.ID, ushers.ID, youth.ID})
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Equal(t, []int64{ushers.ID}, result.AlreadyApplied)
	require.Equal(t, []int64{choir.ID}, result.AlreadyMember)

	apps, err := svc.ListApplicationsForUser(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, apps, 2)
}

func TestApplyRejectsUnknownGroup(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	choir := seedGroup(t, repo, "Choir")

	_, err := svc.Apply(context.Background(), "user_1", []int64{choir.ID, 999})
	require.ErrorIs(t, err, httpx.ErrValidation)

	apps, err := svc.ListApplicationsForUser(context.Background(), "user_1")
	require.NoError(t, err)
	require.Empty(t, apps)
}

func TestReviewApprovalAddsMember(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	choir := seedGroup(t, repo, "Choir")

	result, err := svc.Apply(ctx, "user_1", []int64{choir.ID})
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)

	apps, err := svc.ListApplications(ctx, choir.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)

	reviewed, err := svc.Review(ctx, apps[0].ID, "user_pastor", true)
	require.NoError(t, err)
	require.Equal(t, ApplicationApproved, reviewed.Status)
	require.Equal(t, "user_pastor", reviewed.ReviewedBy)
	require.NotNil(t, reviewed.ReviewedAt)

	members, err := svc.ListMembers(ctx, choir.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, authz.GroupRoleMember, members[0].Role)

	// A decided application cannot be reviewed a second time.
	_, err = svc.Review(ctx, apps[0].ID, "user_pastor", false)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestReviewRejectionLeavesMembershipAlone(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	choir := seedGroup(t, repo, "Choir")

	_, err := svc.Apply(ctx, "user_1", []int64{choir.ID})
	require.NoError(t, err)
	apps, err := svc.ListApplications(ctx, choir.ID)
	require.NoError(t, err)

	reviewed, err := svc.Review(ctx, apps[0].ID, "user_pastor", false)
	require.NoError(t, err)
	require.Equal(t, ApplicationRejected, reviewed.Status)

	members, err := svc.ListMembers(ctx, choir.ID)
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestInviteAndAccept(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	choir := seedGroup(t, repo, "Choir")

	inv, err := svc.Invite(ctx, choir.ID, "user_2", "user_leader")
	require.NoError(t, err)
	require.Equal(t, InvitationPending, inv.Status)

	mine, err := svc.ListInvitationsForUser(ctx, "user_2")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	answered, err := svc.Respond(ctx, inv.ID, "user_2", true)
	require.NoError(t, err)
	require.Equal(t, InvitationAccepted, answered.Status)

	members, err := svc.ListMembers(ctx, choir.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "user_2", members[0].UserID)

	// Answered invitations stay answered.
	_, err = svc.Respond(ctx, inv.ID, "user_2", false)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestRespondIsInviteeOnly(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	choir := seedGroup(t, repo, "Choir")

	inv, err := svc.Invite(ctx, choir.ID, "user_2", "user_leader")
	require.NoError(t, err)

	_, err = svc.Respond(ctx, inv.ID, "user_3", true)
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestInviteExistingMember(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	choir := seedGroup(t, repo, "Choir")
	require.NoError(t, repo.AddMember(ctx, choir.ID, "user_2", authz.GroupRoleMember))

	_, err := svc.Invite(ctx, choir.ID, "user_2", "user_leader")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteCascades(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	choir := seedGroup(t, repo, "Choir")

	require.NoError(t, repo.AddMember(ctx, choir.ID, "user_1", authz.GroupRoleLeader))
	_, err := svc.Apply(ctx, "user_2", []int64{choir.ID})
	require.NoError(t, err)
	_, err = svc.Invite(ctx, choir.ID, "user_3", "user_1")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, choir.ID))

	_, err = svc.Get(ctx, choir.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.Empty(t, repo.members)
	require.Empty(t, repo.apps)
	require.Empty(t, repo.invitations)
}

func TestListWithMembersScopesToCaller(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	choir := seedGroup(t, repo, "Choir")
	seedGroup(t, repo, "Ushers")
	require.NoError(t, repo.AddMember(ctx, choir.ID, "user_1", authz.GroupRoleMember))

	scoped, err := svc.ListWithMembers(ctx, "user_1", false)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	require.Equal(t, "Choir", scoped[0].Group.Name)
	require.Len(t, scoped[0].Members, 1)

	all, err := svc.ListWithMembers(ctx, "user_1", true)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
