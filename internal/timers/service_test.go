package timers

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

type memoryRepo struct {
	timers   map[string]*Timer
	segments map[int64]*Segment

	nextSegmentID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{timers: make(map[string]*Timer), segments: make(map[int64]*Segment)}
}

func (m *memoryRepo) ListForEvent(_ context.Context, eventID int64) ([]Timer, error) {
	var list []Timer
	for _, t := range m.timers {
		if t.EventID == eventID {
			list = append(list, *t)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (*Timer, error) {
	t, ok := m.timers[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *memoryRepo) Create(_ context.Context, timer *Timer) error {
	timer.CreatedAt = time.Now()
	timer.UpdatedAt = timer.CreatedAt
	copied := *timer
	m.timers[timer.ID] = &copied
	return nil
}

func (m *memoryRepo) Update(_ context.Context, timer *Timer) error {
	if _, ok := m.timers[timer.ID]; !ok {
		return httpx.ErrNotFound
	}
	copied := *timer
	m.timers[timer.ID] = &copied
	return nil
}

func (m *memoryRepo) DeleteCascade(_ context.Context, id string) error {
	if _, ok := m.timers[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.timers, id)
	for segmentID, segment := range m.segments {
		if segment.TimerID == id {
			delete(m.segments, segmentID)
		}
	}
	return nil
}

func (m *memoryRepo) ListSegments(_ context.Context, timerID string) ([]Segment, error) {
	var list []Segment
	for _, segment := range m.segments {
		if segment.TimerID == timerID {
			list = append(list, *segment)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Position != list[j].Position {
			return list[i].Position < list[j].Position
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (m *memoryRepo) GetSegment(_ context.Context, id int64) (*Segment, error) {
	segment, ok := m.segments[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *segment
	return &copied, nil
}

func (m *memoryRepo) CreateSegment(_ context.Context, segment *Segment) error {
	if segment.Position <= 0 {
		max := 0
		for _, existing := range m.segments {
			if existing.TimerID == segment.TimerID && existing.Position > max {
				max = existing.Position
			}
		}
		segment.Position = max + 1
	}
	m.nextSegmentID++
	segment.ID = m.nextSegmentID
	segment.CreatedAt = time.Now()
	copied := *segment
	m.segments[segment.ID] = &copied
	return nil
}

func (m *memoryRepo) UpdateSegment(_ context.Context, segment *Segment) error {
	if _, ok := m.segments[segment.ID]; !ok {
		return httpx.ErrNotFound
	}
	copied := *segment
	m.segments[segment.ID] = &copied
	return nil
}

func (m *memoryRepo) DeleteSegment(_ context.Context, id int64) error {
	if _, ok := m.segments[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.segments, id)
	return nil
}

var _ Repository = (*memoryRepo)(nil)

func seedTimer(t *testing.T, svc *Service, total int) *Timer {
	t.Helper()
	timer, err := svc.Create(context.Background(), CreateInput{
		Label:         "Sunday sermon",
		TotalDuration: total,
		EventID:       1,
		SpeakerID:     "user_speaker",
		OrganizerID:   "user_organizer",
	})
	require.NoError(t, err)
	return timer
}

func TestCreateAssignsShareableID(t *testing.T) {
	svc := NewService(newMemoryRepo())

	timer := seedTimer(t, svc, 1800)
	require.True(t, strings.HasPrefix(timer.ID, "timer_"))

	fetched, err := svc.Get(context.Background(), timer.ID)
	require.NoError(t, err)
	require.Equal(t, timer.Label, fetched.Label)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Label: "  ", TotalDuration: 600, EventID: 1})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Label: "Sermon", TotalDuration: 0, EventID: 1})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Label: "Sermon", TotalDuration: 600})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestSegmentsKeepOrder(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()
	timer := seedTimer(t, svc, 1800)

	first, warning, err := svc.AddSegment(ctx, timer.ID, SegmentInput{Label: "Introduction", Duration: 300})
	require.NoError(t, err)
	require.Empty(t, warning)
	require.Equal(t, 1, first.Position)

	second, _, err := svc.AddSegment(ctx, timer.ID, SegmentInput{Label: "Main point", Duration: 900})
	require.NoError(t, err)
	require.Equal(t, 2, second.Position)

	plan, err := svc.GetPlan(ctx, timer.ID)
	require.NoError(t, err)
	require.Len(t, plan.Segments, 2)
	require.Equal(t, "Introduction", plan.Segments[0].Label)
	require.Equal(t, "Main point", plan.Segments[1].Label)
}

func TestOverrunWarnsButNeverRejects(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()
	timer := seedTimer(t, svc, 600)

	_, warning, err := svc.AddSegment(ctx, timer.ID, SegmentInput{Label: "Introduction", Duration: 400})
	require.NoError(t, err)
	require.Empty(t, warning)

	segment, warning, err := svc.AddSegment(ctx, timer.ID, SegmentInput{Label: "Main point", Duration: 500})
	require.NoError(t, err)
	require.NotNil(t, segment)
	require.Contains(t, warning, "exceeding")
	require.Contains(t, warning, "300s")

	// The overrun segment was still stored.
	plan, err := svc.GetPlan(ctx, timer.ID)
	require.NoError(t, err)
	require.Len(t, plan.Segments, 2)

	// Shrinking the segment clears the warning.
	shorter := 100
	_, warning, err = svc.UpdateSegment(ctx, segment.ID, UpdateSegmentInput{Duration: &shorter})
	require.NoError(t, err)
	require.Empty(t, warning)
}

func TestUpdateTimer(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()
	timer := seedTimer(t, svc, 1800)

	label := "Evening sermon"
	total := 2400
	updated, err := svc.Update(ctx, timer.ID, UpdateInput{Label: &label, TotalDuration: &total})
	require.NoError(t, err)
	require.Equal(t, "Evening sermon", updated.Label)
	require.Equal(t, 2400, updated.TotalDuration)
	require.Equal(t, "user_speaker", updated.SpeakerID)

	bad := 0
	_, err = svc.Update(ctx, timer.ID, UpdateInput{TotalDuration: &bad})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteCascadesSegments(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	timer := seedTimer(t, svc, 1800)

	_, _, err := svc.AddSegment(ctx, timer.ID, SegmentInput{Label: "Introduction", Duration: 300})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, timer.ID))

	_, err = svc.Get(ctx, timer.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.Empty(t, repo.segments)
}
