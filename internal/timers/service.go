package timers

import (
	"context"
	"fmt"
	"strings"

	"github.com/koinonia-app/koinonia/internal/platform/httpx"
	"github.com/koinonia-app/koinonia/internal/shared"
)

// Service implements speaker timer workflows.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput carries the fields for a new timer.
type CreateInput struct {
	Label         string
	TotalDuration int
	EventID       int64
	SpeakerID     string
	OrganizerID   string
}

// Create makes a timer with a fresh shareable id.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Timer, error) {
	input.Label = strings.TrimSpace(input.Label)
	if input.Label == "" {
		return nil, fmt.Errorf("%w: timer label is required", httpx.ErrValidation)
	}
	if input.TotalDuration <= 0 {
		return nil, fmt.Errorf("%w: total duration must be positive", httpx.ErrValidation)
	}
	if input.EventID <= 0 {
		return nil, fmt.Errorf("%w: event id is required", httpx.ErrValidation)
	}
	timer := &Timer{
		ID:            shared.NewID("timer"),
		Label:         input.Label,
		TotalDuration: input.TotalDuration,
		EventID:       input.EventID,
		SpeakerID:     strings.TrimSpace(input.SpeakerID),
		OrganizerID:   input.OrganizerID,
	}
	if err := s.repo.Create(ctx, timer); err != nil {
		return nil, err
	}
	return timer, nil
}

// Get fetches one timer by its shareable id.
func (s *Service) Get(ctx context.Context, id string) (*Timer, error) {
	return s.repo.Get(ctx, id)
}

// ListForEvent returns an event's timers.
func (s *Service) ListForEvent(ctx context.Context, eventID int64) ([]Timer, error) {
	return s.repo.ListForEvent(ctx, eventID)
}

// UpdateInput carries optional timer field changes.
type UpdateInput struct {
	Label         *string
	TotalDuration *int
	SpeakerID     *string
}

// Update applies field changes to a timer.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*Timer, error) {
	timer, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Label != nil {
		label := strings.TrimSpace(*input.Label)
		if label == "" {
			return nil, fmt.Errorf("%w: timer label is required", httpx.ErrValidation)
		}
		timer.Label = label
	}
	if input.TotalDuration != nil {
		if *input.TotalDuration <= 0 {
			return nil, fmt.Errorf("%w: total duration must be positive", httpx.ErrValidation)
		}
		timer.TotalDuration = *input.TotalDuration
	}
	if input.SpeakerID != nil {
		timer.SpeakerID = strings.TrimSpace(*input.SpeakerID)
	}
	if err := s.repo.Update(ctx, timer); err != nil {
		return nil, err
	}
	return timer, nil
}

// Delete removes a timer and its segments.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteCascade(ctx, id)
}

// Plan pairs a timer with its ordered segments, for the shareable view.
type Plan struct {
	Timer    *Timer
	Segments []Segment
}

// GetPlan fetches a timer together with its segments.
func (s *Service) GetPlan(ctx context.Context, id string) (*Plan, error) {
	timer, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	segments, err := s.repo.ListSegments(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Plan{Timer: timer, Segments: segments}, nil
}

// SegmentInput carries the fields for a new or changed segment.
type SegmentInput struct {
	Label    string
	Duration int
	Position int
}

// AddSegment appends a segment to a timer. The returned warning is non-empty
// when the segments now add up to more than the timer's total duration; the
// overrun is reported but never rejected.
func (s *Service) AddSegment(ctx context.Context, timerID string, input SegmentInput) (*Segment, string, error) {
	input.Label = strings.TrimSpace(input.Label)
	if input.Label == "" {
		return nil, "", fmt.Errorf("%w: segment label is required", httpx.ErrValidation)
	}
	if input.Duration <= 0 {
		return nil, "", fmt.Errorf("%w: segment duration must be positive", httpx.ErrValidation)
	}
	timer, err := s.repo.Get(ctx, timerID)
	if err != nil {
		return nil, "", err
	}
	segment := &Segment{
		TimerID:  timerID,
		Label:    input.Label,
		Duration: input.Duration,
		Position: input.Position,
	}
	if err := s.repo.CreateSegment(ctx, segment); err != nil {
		return nil, "", err
	}
	warning, err := s.overrunWarning(ctx, timer)
	if err != nil {
		return nil, "", err
	}
	return segment, warning, nil
}

// UpdateSegmentInput carries optional segment field changes.
type UpdateSegmentInput struct {
	Label    *string
	Duration *int
	Position *int
}

// UpdateSegment applies field changes to a segment, with the same overrun
// warning semantics as AddSegment.
func (s *Service) UpdateSegment(ctx context.Context, id int64, input UpdateSegmentInput) (*Segment, string, error) {
	segment, err := s.repo.GetSegment(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if input.Label != nil {
		label := strings.TrimSpace(*input.Label)
		if label == "" {
			return nil, "", fmt.Errorf("%w: segment label is required", httpx.ErrValidation)
		}
		segment.Label = label
	}
	if input.Duration != nil {
		if *input.Duration <= 0 {
			return nil, "", fmt.Errorf("%w: segment duration must be positive", httpx.ErrValidation)
		}
		segment.Duration = *input.Duration
	}
	if input.Position != nil {
		if *input.Position <= 0 {
			return nil, "", fmt.Errorf("%w: segment position must be positive", httpx.ErrValidation)
		}
		segment.Position = *input.Position
	}
	if err := s.repo.UpdateSegment(ctx, segment); err != nil {
		return nil, "", err
	}
	timer, err := s.repo.Get(ctx, segment.TimerID)
	if err != nil {
		return nil, "", err
	}
	warning, err := s.overrunWarning(ctx, timer)
	if err != nil {
		return nil, "", err
	}
	return segment, warning, nil
}

// GetSegment fetches one segment.
func (s *Service) GetSegment(ctx context.Context, id int64) (*Segment, error) {
	return s.repo.GetSegment(ctx, id)
}

// DeleteSegment removes one segment from its timer.
func (s *Service) DeleteSegment(ctx context.Context, id int64) error {
	return s.repo.DeleteSegment(ctx, id)
}

func (s *Service) overrunWarning(ctx context.Context, timer *Timer) (string, error) {
	segments, err := s.repo.ListSegments(ctx, timer.ID)
	if err != nil {
		return "", err
	}
	total := 0
	for _, segment := range segments {
		total += segment.Duration
	}
	if total > timer.TotalDuration {
		return fmt.Sprintf("segments add up to %ds, exceeding the timer's %ds total by %ds",
			total, timer.TotalDuration, total-timer.TotalDuration), nil
	}
	return "", nil
}
