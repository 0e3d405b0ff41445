package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

// Service handles calendar business logic.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns events, optionally restricted to upcoming ones.
func (s *Service) List(ctx context.Context, upcomingOnly bool) ([]Event, error) {
	return s.repo.List(ctx, upcomingOnly)
}

// Get fetches one event.
func (s *Service) Get(ctx context.Context, id int64) (*Event, error) {
	return s.repo.Get(ctx, id)
}

// CreateInput carries new-event fields.
type CreateInput struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     *time.Time
	Location    string
	CreatorID   string
}

// Create adds an event to the calendar.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Event, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", httpx.ErrValidation)
	}
	if input.EndTime != nil && !input.EndTime.After(input.StartTime) {
		return nil, fmt.Errorf("%w: end time must be after start time", httpx.ErrValidation)
	}
	event := &Event{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		Location:    strings.TrimSpace(input.Location),
		CreatorID:   input.CreatorID,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// UpdateInput carries optional event field changes. Nil pointers leave the
// field untouched; ClearEndTime removes an existing end time.
type UpdateInput struct {
	Title        *string
	Description  *string
	StartTime    *time.Time
	EndTime      *time.Time
	ClearEndTime bool
	Location     *string
}

// Update applies field changes to an event.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*Event, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", httpx.ErrValidation)
		}
		event.Title = title
	}
	if input.Description != nil {
		event.Description = strings.TrimSpace(*input.Description)
	}
	if input.StartTime != nil {
		event.StartTime = *input.StartTime
	}
	if input.ClearEndTime {
		event.EndTime = nil
	} else if input.EndTime != nil {
		event.EndTime = input.EndTime
	}
	if input.Location != nil {
		event.Location = strings.TrimSpace(*input.Location)
	}
	if event.EndTime != nil && !event.EndTime.After(event.StartTime) {
		return nil, fmt.Errorf("%w: end time must be after start time", httpx.ErrValidation)
	}

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// Delete removes an event with its RSVPs, attendance and timers.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteCascade(ctx, id)
}

// SaveRSVP records or updates the caller's reply for an event.
func (s *Service) SaveRSVP(ctx context.Context, eventID int64, userID, status string, guestCount int) (*RSVP, error) {
	if !ValidRSVPStatus(status) {
		return nil, fmt.Errorf("%w: unknown RSVP status %q", httpx.ErrValidation, status)
	}
	if guestCount < 0 || guestCount > MaxGuestCount {
		return nil, fmt.Errorf("%w: guest count must be between 0 and %d", httpx.ErrValidation, MaxGuestCount)
	}
	if _, err := s.repo.Get(ctx, eventID); err != nil {
		return nil, err
	}
	rsvp := &RSVP{EventID: eventID, UserID: userID, Status: status, GuestCount: guestCount}
	if err := s.repo.UpsertRSVP(ctx, rsvp); err != nil {
		return nil, err
	}
	return rsvp, nil
}

// DeleteRSVP withdraws the caller's reply.
func (s *Service) DeleteRSVP(ctx context.Context, eventID int64, userID string) error {
	return s.repo.DeleteRSVP(ctx, eventID, userID)
}

// RSVPReport bundles an event's replies with their summary.
type RSVPReport struct {
	RSVPs   []RSVP
	Summary RSVPSummary
}

// ListRSVPs returns all replies for an event with totals.
func (s *Service) ListRSVPs(ctx context.Context, eventID int64) (*RSVPReport, error) {
	if _, err := s.repo.Get(ctx, eventID); err != nil {
		return nil, err
	}
	rsvps, err := s.repo.ListRSVPs(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &RSVPReport{RSVPs: rsvps, Summary: Summarize(rsvps)}, nil
}

// GetRSVP returns one user's reply.
func (s *Service) GetRSVP(ctx context.Context, eventID int64, userID string) (*RSVP, error) {
	return s.repo.GetRSVP(ctx, eventID, userID)
}

// CheckIn records attendance for a user at an event. Checking in the same
// user twice fails with httpx.ErrDuplicate.
func (s *Service) CheckIn(ctx context.Context, eventID int64, userID string) (*Attendance, error) {
	if _, err := s.repo.Get(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.CreateAttendance(ctx, eventID, userID)
}

// UndoCheckIn removes an attendance record.
func (s *Service) UndoCheckIn(ctx context.Context, eventID int64, userID string) error {
	return s.repo.DeleteAttendance(ctx, eventID, userID)
}

// ListAttendance returns the check-ins for an event.
func (s *Service) ListAttendance(ctx context.Context, eventID int64) ([]Attendance, error) {
	if _, err := s.repo.Get(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListAttendance(ctx, eventID)
}

// Roster is the organizer dashboard for one event.
type Roster struct {
	Event      *Event
	RSVPs      []RSVP
	Summary    RSVPSummary
	Attendance []Attendance
}

// GetRoster fetches an event's RSVPs and attendance concurrently.
func (s *Service) GetRoster(ctx context.Context, eventID int64) (*Roster, error) {
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	roster := &Roster{Event: event}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rsvps, err := s.repo.ListRSVPs(gctx, eventID)
		if err != nil {
			return err
		}
		roster.RSVPs = rsvps
		return nil
	})
	g.Go(func() error {
		attendance, err := s.repo.ListAttendance(gctx, eventID)
		if err != nil {
			return err
		}
		roster.Attendance = attendance
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	roster.Summary = Summarize(roster.RSVPs)
	return roster, nil
}
