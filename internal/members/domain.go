// Package members is the fellowship directory: profile data for every
// registered person, backed by the same users table the auth module
// authenticates against.
package members

import "time"

// Member statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusVisitor  = "visitor"
)

// Member is a directory entry.
type Member struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	Address     string
	Bio         string
	Nationality string
	DateOfBirth *time.Time
	AvatarPath  string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FullName joins first and last name.
func (m *Member) FullName() string {
	if m.FirstName == "" {
		return m.LastName
	}
	if m.LastName == "" {
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}

// ValidStatus reports whether s is a recognized member status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusInactive, StatusVisitor:
		return true
	}
	return false
}
