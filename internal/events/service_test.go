package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koinonia-app/koinonia/internal/events"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
	_ "github.com/koinonia-app/koinonia/testing"
)

type rsvpKey struct {
	eventID int64
	userID  string
}

type memoryRepo struct {
	nextID     int64
	events     map[int64]*events.Event
	rsvps      map[rsvpKey]*events.RSVP
	attendance map[rsvpKey]*events.Attendance
	timers     map[int64][]string // event id -> timer ids, for cascade checks
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextID:     1,
		events:     make(map[int64]*events.Event),
		rsvps:      make(map[rsvpKey]*events.RSVP),
		attendance: make(map[rsvpKey]*events.Attendance),
		timers:     make(map[int64][]string),
	}
}

func (m *memoryRepo) List(_ context.Context, upcomingOnly bool) ([]events.Event, error) {
	var out []events.Event
	for id := int64(1); id < m.nextID; id++ {
		event, ok := m.events[id]
		if !ok {
			continue
		}
		if upcomingOnly && event.StartTime.Before(time.Now()) {
			continue
		}
		out = append(out, *event)
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*events.Event, error) {
	if event, ok := m.events[id]; ok {
		copied := *event
		return &copied, nil
	}
	return nil, httpx.ErrNotFound
}

func (m *memoryRepo) Create(_ context.Context, event *events.Event) error {
	event.ID = m.nextID
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	m.nextID++
	copied := *event
	m.events[event.ID] = &copied
	return nil
}

func (m *memoryRepo) Update(_ context.Context, event *events.Event) error {
	if _, ok := m.events[event.ID]; !ok {
		return httpx.ErrNotFound
	}
	copied := *event
	m.events[event.ID] = &copied
	return nil
}

func (m *memoryRepo) DeleteCascade(_ context.Context, id int64) error {
	if _, ok := m.events[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.events, id)
	for key := range m.rsvps {
		if key.eventID == id {
			delete(m.rsvps, key)
		}
	}
	for key := range m.attendance {
		if key.eventID == id {
			delete(m.attendance, key)
		}
	}
	delete(m.timers, id)
	return nil
}

func (m *memoryRepo) UpsertRSVP(_ context.Context, rsvp *events.RSVP) error {
	key := rsvpKey{rsvp.EventID, rsvp.UserID}
	if existing, ok := m.rsvps[key]; ok {
		existing.Status = rsvp.Status
		existing.GuestCount = rsvp.GuestCount
		existing.UpdatedAt = time.Now()
		*rsvp = *existing
		return nil
	}
	rsvp.ID = int64(len(m.rsvps) + 1)
	rsvp.CreatedAt = time.Now()
	rsvp.UpdatedAt = rsvp.CreatedAt
	copied := *rsvp
	m.rsvps[key] = &copied
	return nil
}

func (m *memoryRepo) DeleteRSVP(_ context.Context, eventID int64, userID string) error {
	key := rsvpKey{eventID, userID}
	if _, ok := m.rsvps[key]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.rsvps, key)
	return nil
}

func (m *memoryRepo) ListRSVPs(_ context.Context, eventID int64) ([]events.RSVP, error) {
	var out []events.RSVP
	for key, rsvp := range m.rsvps {
		if key.eventID == eventID {
			out = append(out, *rsvp)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetRSVP(_ context.Context, eventID int64, userID string) (*events.RSVP, error) {
	if rsvp, ok := m.rsvps[rsvpKey{eventID, userID}]; ok {
		copied := *rsvp
		return &copied, nil
	}
	return nil, httpx.ErrNotFound
}

func (m *memoryRepo) CreateAttendance(_ context.Context, eventID int64, userID string) (*events.Attendance, error) {
	key := rsvpKey{eventID, userID}
	if _, ok := m.attendance[key]; ok {
		return nil, httpx.ErrDuplicate
	}
	att := &events.Attendance{
		ID:        int64(len(m.attendance) + 1),
		EventID:   eventID,
		UserID:    userID,
		CheckedAt: time.Now(),
	}
	m.attendance[key] = att
	copied := *att
	return &copied, nil
}

func (m *memoryRepo) DeleteAttendance(_ context.Context, eventID int64, userID string) error {
	key := rsvpKey{eventID, userID}
	if _, ok := m.attendance[key]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.attendance, key)
	return nil
}

func (m *memoryRepo) ListAttendance(_ context.Context, eventID int64) ([]events.Attendance, error) {
	var out []events.Attendance
	for key, att := range m.attendance {
		if key.eventID == eventID {
			out = append(out, *att)
		}
	}
	return out, nil
}

func seedEvent(t *testing.T, svc *events.Service, title string, start time.Time) *events.Event {
	t.Helper()
	event, err := svc.Create(context.Background(), events.CreateInput{
		Title:     title,
		StartTime: start,
		CreatorID: "user_creator",
	})
	require.NoError(t, err)
	return event
}

func TestCreateValidatesTimes(t *testing.T) {
	svc := events.NewService(newMemoryRepo())
	start := time.Now().Add(24 * time.Hour)

	_, err := svc.Create(context.Background(), events.CreateInput{
		Title: "", StartTime: start, CreatorID: "user_1",
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	before := start.Add(-time.Hour)
	_, err = svc.Create(context.Background(), events.CreateInput{
		Title: "Sunday Service", StartTime: start, EndTime: &before, CreatorID: "user_1",
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	after := start.Add(2 * time.Hour)
	event, err := svc.Create(context.Background(), events.CreateInput{
		Title: "  Sunday Service  ", StartTime: start, EndTime: &after, CreatorID: "user_1",
	})
	require.NoError(t, err)
	require.Equal(t, "Sunday Service", event.Title)
	require.Equal(t, "user_1", event.CreatorID)
}

func TestUpdateClearsEndTime(t *testing.T) {
	repo := newMemoryRepo()
	svc := events.NewService(repo)
	start := time.Now().Add(24 * time.Hour)
	end := start.Add(time.Hour)
	event, err := svc.Create(context.Background(), events.CreateInput{
		Title: "Prayer Night", StartTime: start, EndTime: &end, CreatorID: "user_1",
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), event.ID, events.UpdateInput{ClearEndTime: true})
	require.NoError(t, err)
	require.Nil(t, updated.EndTime)

	badEnd := start.Add(-time.Minute)
	_, err = svc.Update(context.Background(), event.ID, events.UpdateInput{EndTime: &badEnd})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestSaveRSVPUpsert(t *testing.T) {
	repo := newMemoryRepo()
	svc := events.NewService(repo)
	event := seedEvent(t, svc, "Retreat", time.Now().Add(48*time.Hour))

	first, err := svc.SaveRSVP(context.Background(), event.ID, "user_1", events.RSVPMaybe, 2)
	require.NoError(t, err)
	require.Equal(t, events.RSVPMaybe, first.Status)

	// Saving again updates in place and keeps the original created time.
	second, err := svc.SaveRSVP(context.Background(), event.ID, "user_1", events.RSVPAttending, 3)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.Equal(t, events.RSVPAttending, second.Status)
	require.Equal(t, 3, second.GuestCount)
	require.Len(t, repo.rsvps, 1)
}

func TestSaveRSVPValidation(t *testing.T) {
	svc := events.NewService(newMemoryRepo())
	event := seedEvent(t, svc, "Retreat", time.Now().Add(48*time.Hour))

	_, err := svc.SaveRSVP(context.Background(), event.ID, "user_1", "perhaps", 0)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.SaveRSVP(context.Background(), event.ID, "user_1", events.RSVPAttending, 51)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.SaveRSVP(context.Background(), 999, "user_1", events.RSVPAttending, 0)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRSVPSummary(t *testing.T) {
	svc := events.NewService(newMemoryRepo())
	event := seedEvent(t, svc, "Picnic", time.Now().Add(72*time.Hour))

	_, err := svc.SaveRSVP(context.Background(), event.ID, "user_1", events.RSVPAttending, 2)
	require.NoError(t, err)
	_, err = svc.SaveRSVP(context.Background(), event.ID, "user_2", events.RSVPAttending, 0)
	require.NoError(t, err)
	_, err = svc.SaveRSVP(context.Background(), event.ID, "user_3", events.RSVPMaybe, 1)
	require.NoError(t, err)
	_, err = svc.SaveRSVP(context.Background(), event.ID, "user_4", events.RSVPNotAttending, 0)
	require.NoError(t, err)

	report, err := svc.ListRSVPs(context.Background(), event.ID)
	require.NoError(t, err)
	require.Equal(t, events.RSVPSummary{
		Attending:       2,
		AttendingGuests: 2,
		NotAttending:    1,
		Maybe:           1,
		MaybeGuests:     1,
		Total:           4,
	}, report.Summary)
}

func TestCheckInIsIndependentOfRSVP(t *testing.T) {
	svc := events.NewService(newMemoryRepo())
	event := seedEvent(t, svc, "Service", time.Now().Add(time.Hour))

	// No RSVP exists for this user; check-in still works.
	att, err := svc.CheckIn(context.Background(), event.ID, "user_walkin")
	require.NoError(t, err)
	require.Equal(t, "user_walkin", att.UserID)

	// Checking in twice is rejected.
	_, err = svc.CheckIn(context.Background(), event.ID, "user_walkin")
	require.ErrorIs(t, err, httpx.ErrDuplicate)

	// Undoing allows a fresh check-in.
	require.NoError(t, svc.UndoCheckIn(context.Background(), event.ID, "user_walkin"))
	_, err = svc.CheckIn(context.Background(), event.ID, "user_walkin")
	require.NoError(t, err)
}

func TestDeleteCascades(t *testing.T) {
	repo := newMemoryRepo()
	svc := events.NewService(repo)
	event := seedEvent(t, svc, "Conference", time.Now().Add(time.Hour))

	_, err := svc.SaveRSVP(context.Background(), event.ID, "user_1", events.RSVPAttending, 0)
	require.NoError(t, err)
	_, err = svc.CheckIn(context.Background(), event.ID, "user_1")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), event.ID))
	require.Empty(t, repo.rsvps)
	require.Empty(t, repo.attendance)
	_, err = svc.Get(context.Background(), event.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	require.ErrorIs(t, svc.Delete(context.Background(), event.ID), httpx.ErrNotFound)
}

func TestGetRoster(t *testing.T) {
	svc := events.NewService(newMemoryRepo())
	event := seedEvent(t, svc, "Service", time.Now().Add(time.Hour))

	_, err := svc.SaveRSVP(context.Background(), event.ID, "user_1", events.RSVPAttending, 1)
	require.NoError(t, err)
	_, err = svc.CheckIn(context.Background(), event.ID, "user_2")
	require.NoError(t, err)

	roster, err := svc.GetRoster(context.Background(), event.ID)
	require.NoError(t, err)
	require.Equal(t, event.ID, roster.Event.ID)
	require.Len(t, roster.RSVPs, 1)
	require.Len(t, roster.Attendance, 1)
	require.Equal(t, 1, roster.Summary.Attending)
}
