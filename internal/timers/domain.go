package timers

import "time"

// Timer is a countdown plan for one speaking slot. The string id doubles as
// the shareable link token, so reads by id need no session.
type Timer struct {
	ID            string
	Label         string
	TotalDuration int // seconds
	EventID       int64
	SpeakerID     string
	OrganizerID   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Segment is one ordered slice of a timer's total duration.
type Segment struct {
	ID        int64
	TimerID   string
	Label     string
	Duration  int // seconds
	Position  int
	CreatedAt time.Time
}
