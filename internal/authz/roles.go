package authz

import "strings"

// Fellowship role names. Matching against a principal's attached role names
// is case-insensitive; the lowercase form is canonical.
const (
	RoleAdmin  = "admin"
	RolePastor = "pastor"
	RoleEditor = "editor"
	RoleDeacon = "deacon"
	RoleMember = "member"
)

// GroupRole is a member's role within one specific group.
type GroupRole string

const (
	GroupRoleLeader GroupRole = "leader"
	GroupRoleMember GroupRole = "member"
)

// fellowshipRoles maps canonical role names to their permission bundles.
// These are process-wide constants: role assignments are data, the bundles
// are not. There is deliberately no mutation API.
var fellowshipRoles = map[string][]FellowshipPermission{
	RoleAdmin: AllFellowshipPermissions(),
	RolePastor: {
		PermViewUsers,
		PermAssignRoles,
		PermCreateGroups,
		PermManageAllGroups,
		PermCreateEvents,
		PermEditAllEvents,
		PermDeleteEvents,
		PermManagePosts,
		PermPublishPosts,
		PermReviewGroupApplications,
		PermManageInvitations,
		PermViewAnalytics,
	},
	RoleEditor: {
		PermViewUsers,
		PermManagePosts,
		PermPublishPosts,
		PermCreateEvents,
	},
	RoleDeacon: {
		PermViewUsers,
		PermCreateGroups,
		PermCreateEvents,
		PermReviewGroupApplications,
	},
	RoleMember: {
		PermViewUsers,
	},
}

// groupRoles maps group roles to their permission bundles. Leaders hold the
// full set; plain members may only view attendance.
var groupRoles = map[GroupRole][]GroupPermission{
	GroupRoleLeader: AllGroupPermissions(),
	GroupRoleMember: {GroupPermViewAttendance},
}

// FellowshipRoleNames returns the canonical role names with defined bundles.
func FellowshipRoleNames() []string {
	return []string{RoleAdmin, RolePastor, RoleEditor, RoleDeacon, RoleMember}
}

// RolePermissions returns the permission bundle for a role name, matched
// case-insensitively. Unknown roles yield nil: roles that exist only as data
// rows grant nothing rather than erroring.
func RolePermissions(roleName string) []FellowshipPermission {
	return fellowshipRoles[strings.ToLower(roleName)]
}

// GroupRolePermissions returns the bundle for a group role, or nil when the
// role is empty or unknown.
func GroupRolePermissions(role GroupRole) []GroupPermission {
	return groupRoles[role]
}
