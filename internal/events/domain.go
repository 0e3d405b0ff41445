// Package events covers the fellowship calendar: events, RSVPs and
// attendance check-ins. RSVPs record intent before the event; attendance
// records presence at it. The two are independent: attending without an RSVP
// and RSVPing without showing up are both normal.
package events

import "time"

// RSVP statuses.
const (
	RSVPAttending    = "attending"
	RSVPNotAttending = "not_attending"
	RSVPMaybe        = "maybe"
)

// MaxGuestCount caps the guests one RSVP may bring.
const MaxGuestCount = 50

// Event is a calendar entry.
type Event struct {
	ID          int64
	Title       string
	Description string
	StartTime   time.Time
	EndTime     *time.Time
	Location    string
	CreatorID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RSVP is one user's standing reply for one event. The (UserID, EventID) pair
// is unique; saving again updates the row in place.
type RSVP struct {
	ID         int64
	EventID    int64
	UserID     string
	Status     string
	GuestCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Attendance is a check-in record, created by staff at the door.
type Attendance struct {
	ID        int64
	EventID   int64
	UserID    string
	CheckedAt time.Time
}

// RSVPSummary aggregates replies for an event.
type RSVPSummary struct {
	Attending       int `json:"attending"`
	AttendingGuests int `json:"attendingGuests"`
	NotAttending    int `json:"notAttending"`
	Maybe           int `json:"maybe"`
	MaybeGuests     int `json:"maybeGuests"`
	Total           int `json:"total"`
}

// ValidRSVPStatus reports whether s is a recognized reply.
func ValidRSVPStatus(s string) bool {
	switch s {
	case RSVPAttending, RSVPNotAttending, RSVPMaybe:
		return true
	}
	return false
}

// Summarize computes the per-status totals for a set of RSVPs.
func Summarize(rsvps []RSVP) RSVPSummary {
	summary := RSVPSummary{Total: len(rsvps)}
	for _, r := range rsvps {
		switch r.Status {
		case RSVPAttending:
			summary.Attending++
			summary.AttendingGuests += r.GuestCount
		case RSVPNotAttending:
			summary.NotAttending++
		case RSVPMaybe:
			summary.Maybe++
			summary.MaybeGuests += r.GuestCount
		}
	}
	return summary
}
