// Package roles manages the role catalog and user role assignments. The
// permission bundle attached to each role name is fixed in internal/authz;
// this package only stores which roles exist and who holds them.
package roles

import "time"

// Role is a catalog entry.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Assignment links a user to a role.
type Assignment struct {
	UserID    string
	RoleID    int64
	CreatedAt time.Time
}
