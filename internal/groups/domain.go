// Package groups manages small groups: membership with per-group roles,
// applications from members who want to join, and invitations from leaders.
package groups

import (
	"time"

	"github.com/koinonia-app/koinonia/internal/authz"
)

// Application statuses.
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// Invitation statuses.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"
)

// Group is a small group within the fellowship.
type Group struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Membership links a user to a group with a role.
type Membership struct {
	GroupID   int64
	UserID    string
	Role      authz.GroupRole
	CreatedAt time.Time
}

// Application is a member's request to join a group.
type Application struct {
	ID         int64
	GroupID    int64
	UserID     string
	Status     string
	ReviewedBy string
	ReviewedAt *time.Time
	CreatedAt  time.Time
}

// Invitation is a leader's offer of membership.
type Invitation struct {
	ID            int64
	GroupID       int64
	InvitedUserID string
	InviterUserID string
	Status        string
	CreatedAt     time.Time
}
