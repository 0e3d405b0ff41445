// Package authz implements the fellowship authorization model: permission
// enumerations, role bundles and the pure evaluation helpers used by the
// request-facing guard layer. Nothing in this package performs I/O.
package authz

// FellowshipPermission is an organization-wide capability, independent of
// any group. The string values are stored in no table; only role names are
// persisted, so these identifiers must stay stable across releases.
type FellowshipPermission string

const (
	// User management
	PermManageUsers FellowshipPermission = "manage_users"
	PermViewUsers   FellowshipPermission = "view_users"
	PermDeleteUsers FellowshipPermission = "delete_users"

	// Role management
	PermManageRoles FellowshipPermission = "manage_roles"
	PermAssignRoles FellowshipPermission = "assign_roles"

	// Group management
	PermCreateGroups    FellowshipPermission = "create_groups"
	PermDeleteGroups    FellowshipPermission = "delete_groups"
	PermManageAllGroups FellowshipPermission = "manage_all_groups"

	// Event management
	PermCreateEvents  FellowshipPermission = "create_events"
	PermEditAllEvents FellowshipPermission = "edit_all_events"
	PermDeleteEvents  FellowshipPermission = "delete_events"

	// Content management
	PermManagePosts  FellowshipPermission = "manage_posts"
	PermPublishPosts FellowshipPermission = "publish_posts"
	PermDeletePosts  FellowshipPermission = "delete_posts"

	// Application management
	PermReviewGroupApplications FellowshipPermission = "review_group_applications"
	PermManageInvitations       FellowshipPermission = "manage_invitations"

	// System
	PermViewAnalytics  FellowshipPermission = "view_analytics"
	PermManageSettings FellowshipPermission = "manage_settings"
)

// AllFellowshipPermissions lists every fellowship permission. The admin role
// bundle is defined as exactly this set.
func AllFellowshipPermissions() []FellowshipPermission {
	return []FellowshipPermission{
		PermManageUsers,
		PermViewUsers,
		PermDeleteUsers,
		PermManageRoles,
		PermAssignRoles,
		PermCreateGroups,
		PermDeleteGroups,
		PermManageAllGroups,
		PermCreateEvents,
		PermEditAllEvents,
		PermDeleteEvents,
		PermManagePosts,
		PermPublishPosts,
		PermDeletePosts,
		PermReviewGroupApplications,
		PermManageInvitations,
		PermViewAnalytics,
		PermManageSettings,
	}
}

// GroupPermission is a capability scoped to a single group, derived from the
// member's role within that group.
type GroupPermission string

const (
	// Member management
	GroupPermInviteMembers GroupPermission = "invite_members"
	GroupPermRemoveMembers GroupPermission = "remove_members"
	GroupPermManageMembers GroupPermission = "manage_members"

	// Group settings
	GroupPermEditGroup   GroupPermission = "edit_group"
	GroupPermDeleteGroup GroupPermission = "delete_group"

	// Applications
	GroupPermReviewApplications  GroupPermission = "review_applications"
	GroupPermApproveApplications GroupPermission = "approve_applications"

	// Events
	GroupPermCreateGroupEvents GroupPermission = "create_group_events"
	GroupPermManageGroupEvents GroupPermission = "manage_group_events"

	// Attendance
	GroupPermMarkAttendance GroupPermission = "mark_attendance"
	GroupPermViewAttendance GroupPermission = "view_attendance"
)

// AllGroupPermissions lists every group-scoped permission. The leader role
// bundle is defined as exactly this set.
func AllGroupPermissions() []GroupPermission {
	return []GroupPermission{
		GroupPermInviteMembers,
		GroupPermRemoveMembers,
		GroupPermManageMembers,
		GroupPermEditGroup,
		GroupPermDeleteGroup,
		GroupPermReviewApplications,
		GroupPermApproveApplications,
		GroupPermCreateGroupEvents,
		GroupPermManageGroupEvents,
		GroupPermMarkAttendance,
		GroupPermViewAttendance,
	}
}
