package authz

import "strings"

// RoleRef is a role attached to a principal at session-resolution time.
type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Principal is the authenticated actor making a request. A nil principal or
// one with no attached roles holds zero fellowship permissions.
type Principal struct {
	ID    string    `json:"id"`
	Roles []RoleRef `json:"roles,omitempty"`
}

// HasFellowshipPermission reports whether any of the principal's roles maps
// to a bundle containing the permission. Fails closed on nil/empty input.
func HasFellowshipPermission(p *Principal, permission FellowshipPermission) bool {
	if p == nil || len(p.Roles) == 0 {
		return false
	}
	for _, role := range p.Roles {
		for _, granted := range RolePermissions(role.Name) {
			if granted == permission {
				return true
			}
		}
	}
	return false
}

// HasAnyFellowshipPermission reports whether at least one of the permissions
// is held. Evaluation is left-to-right and short-circuits on first success.
func HasAnyFellowshipPermission(p *Principal, permissions []FellowshipPermission) bool {
	for _, permission := range permissions {
		if HasFellowshipPermission(p, permission) {
			return true
		}
	}
	return false
}

// HasAllFellowshipPermissions reports whether every permission is held.
// Evaluation is left-to-right and short-circuits on first failure.
func HasAllFellowshipPermissions(p *Principal, permissions []FellowshipPermission) bool {
	for _, permission := range permissions {
		if !HasFellowshipPermission(p, permission) {
			return false
		}
	}
	return true
}

// HasRole reports whether the principal holds the named role. Matching is
// case-insensitive on both sides.
func HasRole(p *Principal, roleName string) bool {
	if p == nil || len(p.Roles) == 0 {
		return false
	}
	for _, role := range p.Roles {
		if strings.EqualFold(role.Name, roleName) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal holds the admin role.
func IsAdmin(p *Principal) bool {
	return HasRole(p, RoleAdmin)
}

// IsPastor reports whether the principal holds the pastor role.
func IsPastor(p *Principal) bool {
	return HasRole(p, RolePastor)
}

// HasGroupPermission reports whether the group role's bundle contains the
// permission. An empty or unknown group role grants nothing.
func HasGroupPermission(groupRole GroupRole, permission GroupPermission) bool {
	for _, granted := range GroupRolePermissions(groupRole) {
		if granted == permission {
			return true
		}
	}
	return false
}

// IsGroupLeader reports whether the group role is leader.
func IsGroupLeader(groupRole GroupRole) bool {
	return groupRole == GroupRoleLeader
}

// CanManageGroup combines two independent authority sources: the
// fellowship-wide manage_all_groups override is checked first (role data
// only, no membership needed), then local group leadership.
func CanManageGroup(p *Principal, groupRole GroupRole) bool {
	if HasFellowshipPermission(p, PermManageAllGroups) {
		return true
	}
	return IsGroupLeader(groupRole)
}

// PermissionSet is the union of everything a principal may do, split by
// scope. Used for UI capability listings.
type PermissionSet struct {
	Fellowship []FellowshipPermission `json:"fellowship"`
	Group      []GroupPermission      `json:"group"`
}

// AllPermissions returns the deduplicated union of permissions granted by
// every attached role, plus the group permissions for the supplied group
// role, if any.
func AllPermissions(p *Principal, groupRole GroupRole) PermissionSet {
	set := PermissionSet{
		Fellowship: []FellowshipPermission{},
		Group:      []GroupPermission{},
	}
	if p != nil {
		seen := make(map[FellowshipPermission]struct{})
		for _, role := range p.Roles {
			for _, granted := range RolePermissions(role.Name) {
				if _, ok := seen[granted]; ok {
					continue
				}
				seen[granted] = struct{}{}
				set.Fellowship = append(set.Fellowship, granted)
			}
		}
	}
	// Group bundles contain no duplicates, so the copy needs no dedup.
	set.Group = append(set.Group, GroupRolePermissions(groupRole)...)
	return set
}
