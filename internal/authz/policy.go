package authz

// Action is one of the four CRUD action tokens accepted by CanPerformAction.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Resource type names accepted by CanPerformAction. The parameter is an open
// string: unrecognized types resolve to denial, never an error, so callers
// can safely default-deny on mistyped configuration.
const (
	ResourceUser    = "user"
	ResourceGroup   = "group"
	ResourceEvent   = "event"
	ResourcePost    = "post"
	ResourceGallery = "gallery"
)

// ActionContext carries the per-resource facts the policy needs beyond the
// principal's roles.
type ActionContext struct {
	IsOwner   bool
	GroupRole GroupRole
}

// CanPerformAction decides whether the principal may perform a CRUD action
// on a resource type. The evaluation order is a contract:
//
//  1. admin passes unconditionally
//  2. owners may always update/delete their own resource
//  3. resource-specific rules
//  4. deny
//
// Ownership short-circuits before the per-resource rules, so an owner with
// no elevated role can still modify their own record.
func CanPerformAction(p *Principal, action Action, resource string, opts ActionContext) bool {
	if IsAdmin(p) {
		return true
	}

	if opts.IsOwner && (action == ActionUpdate || action == ActionDelete) {
		return true
	}

	switch resource {
	case ResourceUser:
		switch action {
		case ActionCreate, ActionRead:
			return true
		case ActionUpdate, ActionDelete:
			return opts.IsOwner || HasFellowshipPermission(p, PermManageUsers)
		}

	case ResourceGroup:
		switch action {
		case ActionRead:
			return true
		case ActionCreate:
			return HasFellowshipPermission(p, PermCreateGroups)
		case ActionUpdate, ActionDelete:
			return CanManageGroup(p, opts.GroupRole)
		}

	case ResourceEvent:
		switch action {
		case ActionRead:
			return true
		case ActionCreate:
			return HasFellowshipPermission(p, PermCreateEvents)
		case ActionUpdate, ActionDelete:
			return HasFellowshipPermission(p, PermEditAllEvents)
		}

	case ResourcePost:
		if action == ActionRead {
			return true
		}
		return HasFellowshipPermission(p, PermManagePosts)

	case ResourceGallery:
		// Gallery mutations hinge on manage_posts alone; ownership of an
		// upload is already honored by the short-circuit above.
		if action == ActionRead {
			return true
		}
		return HasFellowshipPermission(p, PermManagePosts)
	}

	return false
}
