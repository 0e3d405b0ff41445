package timers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koinonia-app/koinonia/internal/platform/db"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

// Repository defines persistence operations for timers and segments.
type Repository interface {
	ListForEvent(ctx context.Context, eventID int64) ([]Timer, error)
	Get(ctx context.Context, id string) (*Timer, error)
	Create(ctx context.Context, timer *Timer) error
	Update(ctx context.Context, timer *Timer) error
	DeleteCascade(ctx context.Context, id string) error

	ListSegments(ctx context.Context, timerID string) ([]Segment, error)
	GetSegment(ctx context.Context, id int64) (*Segment, error)
	CreateSegment(ctx context.Context, segment *Segment) error
	UpdateSegment(ctx context.Context, segment *Segment) error
	DeleteSegment(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const timerColumns = `id, label, total_duration, event_id, COALESCE(speaker_id, ''), COALESCE(organizer_id, ''), created_at, updated_at`

func scanTimer(row pgx.Row) (*Timer, error) {
	var t Timer
	err := row.Scan(&t.ID, &t.Label, &t.TotalDuration, &t.EventID,
		&t.SpeakerID, &t.OrganizerID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListForEvent returns an event's timers in creation order.
func (r *PGRepository) ListForEvent(ctx context.Context, eventID int64) ([]Timer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+timerColumns+` FROM timers WHERE event_id = $1 ORDER BY created_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Timer
	for rows.Next() {
		var t Timer
		if err := rows.Scan(&t.ID, &t.Label, &t.TotalDuration, &t.EventID,
			&t.SpeakerID, &t.OrganizerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// Get fetches one timer by its shareable id.
func (r *PGRepository) Get(ctx context.Context, id string) (*Timer, error) {
	return scanTimer(r.pool.QueryRow(ctx, `SELECT `+timerColumns+` FROM timers WHERE id = $1`, id))
}

// Create inserts a timer.
func (r *PGRepository) Create(ctx context.Context, timer *Timer) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO timers (id, label, total_duration, event_id, speaker_id, organizer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NOW(), NOW())
		RETURNING created_at, updated_at`,
		timer.ID, timer.Label, timer.TotalDuration, timer.EventID, timer.SpeakerID, timer.OrganizerID).
		Scan(&timer.CreatedAt, &timer.UpdatedAt)
}

// Update persists timer field changes.
func (r *PGRepository) Update(ctx context.Context, timer *Timer) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE timers SET label = $2, total_duration = $3, speaker_id = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $1`, timer.ID, timer.Label, timer.TotalDuration, timer.SpeakerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeleteCascade removes a timer and its segments in one transaction.
func (r *PGRepository) DeleteCascade(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM timer_segments WHERE timer_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM timers WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		return nil
	})
}

const segmentColumns = `id, timer_id, label, duration, position, created_at`

// ListSegments returns a timer's segments in position order.
func (r *PGRepository) ListSegments(ctx context.Context, timerID string) ([]Segment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+segmentColumns+` FROM timer_segments WHERE timer_id = $1 ORDER BY position, id`, timerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Segment
	for rows.Next() {
		var s Segment
		if err := rows.Scan(&s.ID, &s.TimerID, &s.Label, &s.Duration, &s.Position, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// GetSegment fetches one segment.
func (r *PGRepository) GetSegment(ctx context.Context, id int64) (*Segment, error) {
	var s Segment
	err := r.pool.QueryRow(ctx,
		`SELECT `+segmentColumns+` FROM timer_segments WHERE id = $1`, id).
		Scan(&s.ID, &s.TimerID, &s.Label, &s.Duration, &s.Position, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// CreateSegment inserts a segment. Position zero means append after the
// timer's current last segment.
func (r *PGRepository) CreateSegment(ctx context.Context, segment *Segment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO timer_segments (timer_id, label, duration, position, created_at)
		VALUES ($1, $2, $3,
			CASE WHEN $4 > 0 THEN $4
			     ELSE COALESCE((SELECT MAX(position) FROM timer_segments WHERE timer_id = $1), 0) + 1
			END,
			NOW())
		RETURNING id, position, created_at`,
		segment.TimerID, segment.Label, segment.Duration, segment.Position).
		Scan(&segment.ID, &segment.Position, &segment.CreatedAt)
}

// UpdateSegment persists segment field changes.
func (r *PGRepository) UpdateSegment(ctx context.Context, segment *Segment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE timer_segments SET label = $2, duration = $3, position = $4
		WHERE id = $1`, segment.ID, segment.Label, segment.Duration, segment.Position)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeleteSegment removes one segment.
func (r *PGRepository) DeleteSegment(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM timer_segments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
