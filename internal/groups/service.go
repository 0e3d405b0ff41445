package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/koinonia-app/koinonia/internal/authz"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

// Service implements group, membership, application and invitation workflows.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns every group.
func (s *Service) List(ctx context.Context) ([]Group, error) {
	return s.repo.List(ctx)
}

// ListForUser returns the groups a user belongs to.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Group, error) {
	return s.repo.ListForUser(ctx, userID)
}

// Get fetches one group.
func (s *Service) Get(ctx context.Context, id int64) (*Group, error) {
	return s.repo.Get(ctx, id)
}

// Create makes a new group and enrolls the creator as its leader.
func (s *Service) Create(ctx context.Context, name, description, creatorID string) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", httpx.ErrValidation)
	}
	group := &Group{Name: name, Description: strings.TrimSpace(description)}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, err
	}
	if err := s.repo.AddMember(ctx, group.ID, creatorID, authz.GroupRoleLeader); err != nil {
		return nil, err
	}
	return group, nil
}

// UpdateInput carries optional group field changes.
type UpdateInput struct {
	Name        *string
	Description *string
}

// Update applies field changes to a group.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*Group, error) {
	group, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: group name is required", httpx.ErrValidation)
		}
		group.Name = name
	}
	if input.Description != nil {
		group.Description = strings.TrimSpace(*input.Description)
	}
	if err := s.repo.Update(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// Delete removes a group together with its memberships, applications and
// invitations.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteCascade(ctx, id)
}

// GroupWithMembers pairs a group with its membership roster.
type GroupWithMembers struct {
	Group   Group        `json:"group"`
	Members []Membership `json:"members"`
}

// ListWithMembers returns groups with their rosters. When canViewAll is
// false the listing is scoped to groups the caller belongs to.
func (s *Service) ListWithMembers(ctx context.Context, callerID string, canViewAll bool) ([]GroupWithMembers, error) {
	var (
		list []Group
		err  error
	)
	if canViewAll {
		list, err = s.repo.List(ctx)
	} else {
		list, err = s.repo.ListForUser(ctx, callerID)
	}
	if err != nil {
		return nil, err
	}

	result := make([]GroupWithMembers, 0, len(list))
	for _, group := range list {
		members, err := s.repo.ListMembers(ctx, group.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, GroupWithMembers{Group: group, Members: members})
	}
	return result, nil
}

// ListMembers returns a group's roster.
func (s *Service) ListMembers(ctx context.Context, groupID int64) ([]Membership, error) {
	if _, err := s.repo.Get(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, groupID)
}

// AddMember enrolls a user into a group.
func (s *Service) AddMember(ctx context.Context, groupID int64, userID string, role authz.GroupRole) error {
	if !validGroupRole(role) {
		return fmt.Errorf("%w: invalid group role %q", httpx.ErrValidation, role)
	}
	if _, err := s.repo.Get(ctx, groupID); err != nil {
		return err
	}
	return s.repo.AddMember(ctx, groupID, userID, role)
}

// RemoveMember takes a user out of a group.
func (s *Service) RemoveMember(ctx context.Context, groupID int64, userID string) error {
	return s.repo.RemoveMember(ctx, groupID, userID)
}

// SetMemberRole changes a member's role within a group.
func (s *Service) SetMemberRole(ctx context.Context, groupID int64, userID string, role authz.GroupRole) error {
	if !validGroupRole(role) {
		return fmt.Errorf("%w: invalid group role %q", httpx.ErrValidation, role)
	}
	return s.repo.SetMemberRole(ctx, groupID, userID, role)
}

// ApplyResult reports the outcome of a bulk application request.
type ApplyResult struct {
	Created        int     `json:"created"`
	AlreadyApplied []int64 `json:"alreadyApplied"`
	AlreadyMember  []int64 `json:"alreadyMember"`
}

// Apply files pending applications for each requested group, skipping
// groups the user already belongs to or already applied to. All requested
// group ids must exist.
func (s *Service) Apply(ctx context.Context, userID string, groupIDs []int64) (*ApplyResult, error) {
	if len(groupIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one group id is required", httpx.ErrValidation)
	}
	for _, id := range groupIDs {
		if _, err := s.repo.Get(ctx, id); err != nil {
			if errors.Is(err, httpx.ErrNotFound) {
				return nil, fmt.Errorf("%w: group %d does not exist", httpx.ErrValidation, id)
			}
			return nil, err
		}
	}

	memberOf := make(map[int64]bool)
	mine, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range mine {
		memberOf[g.ID] = true
	}

	pending := make(map[int64]bool)
	apps, err := s.repo.ListApplicationsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, app := range apps {
		if app.Status == ApplicationPending {
			pending[app.GroupID] = true
		}
	}

	result := &ApplyResult{AlreadyApplied: []int64{}, AlreadyMember: []int64{}}
	var toCreate []int64
	for _, id := range groupIDs {
		switch {
		case memberOf[id]:
			result.AlreadyMember = append(result.AlreadyMember, id)
		case pending[id]:
			result.AlreadyApplied = append(result.AlreadyApplied, id)
		default:
			toCreate = append(toCreate, id)
		}
	}
	if len(toCreate) > 0 {
		created, err := s.repo.CreateApplications(ctx, userID, toCreate)
		if err != nil {
			return nil, err
		}
		result.Created = created
	}
	return result, nil
}

// ListApplications returns a group's applications.
func (s *Service) ListApplications(ctx context.Context, groupID int64) ([]Application, error) {
	if _, err := s.repo.Get(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.ListApplications(ctx, groupID)
}

// ListApplicationsForUser returns a user's applications across groups.
func (s *Service) ListApplicationsForUser(ctx context.Context, userID string) ([]Application, error) {
	return s.repo.ListApplicationsForUser(ctx, userID)
}

// GetApplication fetches one application.
func (s *Service) GetApplication(ctx context.Context, id int64) (*Application, error) {
	return s.repo.GetApplication(ctx, id)
}

// Review decides a pending application. Approval enrolls the applicant as
// a regular member; a membership that already exists is not an error.
func (s *Service) Review(ctx context.Context, applicationID int64, reviewerID string, approve bool) (*Application, error) {
	app, err := s.repo.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != ApplicationPending {
		return nil, fmt.Errorf("%w: application has already been reviewed", httpx.ErrValidation)
	}

	status := ApplicationRejected
	if approve {
		status = ApplicationApproved
	}
	if err := s.repo.ReviewApplication(ctx, applicationID, reviewerID, status); err != nil {
		return nil, err
	}
	if approve {
		err := s.repo.AddMember(ctx, app.GroupID, app.UserID, authz.GroupRoleMember)
		if err != nil && !errors.Is(err, httpx.ErrDuplicate) {
			return nil, err
		}
	}
	return s.repo.GetApplication(ctx, applicationID)
}

// Invite creates a pending invitation for a user to join a group.
func (s *Service) Invite(ctx context.Context, groupID int64, invitedUserID, inviterUserID string) (*Invitation, error) {
	if _, err := s.repo.Get(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.UserID == invitedUserID {
			return nil, fmt.Errorf("%w: user is already a member of this group", httpx.ErrValidation)
		}
	}
	inv := &Invitation{
		GroupID:       groupID,
		InvitedUserID: invitedUserID,
		InviterUserID: inviterUserID,
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvitationsForUser returns invitations addressed to a user.
func (s *Service) ListInvitationsForUser(ctx context.Context, userID string) ([]Invitation, error) {
	return s.repo.ListInvitationsForUser(ctx, userID)
}

// Respond lets the invited user accept or decline a pending invitation.
// Acceptance enrolls them as a regular member.
func (s *Service) Respond(ctx context.Context, invitationID int64, userID string, accept bool) (*Invitation, error) {
	inv, err := s.repo.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.InvitedUserID != userID {
		return nil, httpx.ErrForbidden
	}
	if inv.Status != InvitationPending {
		return nil, fmt.Errorf("%w: invitation has already been answered", httpx.ErrValidation)
	}

	status := InvitationDeclined
	if accept {
		status = InvitationAccepted
	}
	if err := s.repo.SetInvitationStatus(ctx, invitationID, status); err != nil {
		return nil, err
	}
	if accept {
		err := s.repo.AddMember(ctx, inv.GroupID, userID, authz.GroupRoleMember)
		if err != nil && !errors.Is(err, httpx.ErrDuplicate) {
			return nil, err
		}
	}
	inv.Status = status
	return inv, nil
}

func validGroupRole(role authz.GroupRole) bool {
	return role == authz.GroupRoleLeader || role == authz.GroupRoleMember
}
