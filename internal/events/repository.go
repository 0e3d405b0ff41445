package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koinonia-app/koinonia/internal/platform/db"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

// Repository defines persistence operations for events, RSVPs and attendance.
type Repository interface {
	List(ctx context.Context, upcomingOnly bool) ([]Event, error)
	Get(ctx context.Context, id int64) (*Event, error)
	Create(ctx context.Context, event *Event) error
	Update(ctx context.Context, event *Event) error
	DeleteCascade(ctx context.Context, id int64) error

	UpsertRSVP(ctx context.Context, rsvp *RSVP) error
	DeleteRSVP(ctx context.Context, eventID int64, userID string) error
	ListRSVPs(ctx context.Context, eventID int64) ([]RSVP, error)
	GetRSVP(ctx context.Context, eventID int64, userID string) (*RSVP, error)

	CreateAttendance(ctx context.Context, eventID int64, userID string) (*Attendance, error)
	DeleteAttendance(ctx context.Context, eventID int64, userID string) error
	ListAttendance(ctx context.Context, eventID int64) ([]Attendance, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const eventColumns = `id, title, COALESCE(description, ''), start_time, end_time,
	COALESCE(location, ''), creator_id, created_at, updated_at`

// List returns events ordered by start time, optionally only future ones.
func (r *PGRepository) List(ctx context.Context, upcomingOnly bool) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	if upcomingOnly {
		query += ` WHERE start_time >= NOW()`
	}
	query += ` ORDER BY start_time`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.StartTime, &e.EndTime,
			&e.Location, &e.CreatorID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Get fetches one event.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Event, error) {
	var e Event
	err := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id).
		Scan(&e.ID, &e.Title, &e.Description, &e.StartTime, &e.EndTime,
			&e.Location, &e.CreatorID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event.
func (r *PGRepository) Create(ctx context.Context, event *Event) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO events (title, description, start_time, end_time, location, creator_id, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		event.Title, event.Description, event.StartTime, event.EndTime,
		event.Location, event.CreatorID).
		Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
}

// Update persists event field changes.
func (r *PGRepository) Update(ctx context.Context, event *Event) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE events SET title = $2, description = NULLIF($3, ''), start_time = $4,
			end_time = $5, location = NULLIF($6, ''), updated_at = NOW()
		WHERE id = $1`,
		event.ID, event.Title, event.Description, event.StartTime, event.EndTime, event.Location)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeleteCascade removes an event and everything hanging off it in one
// transaction: RSVPs, attendance and any speaker timers with their segments.
func (r *PGRepository) DeleteCascade(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM event_rsvps WHERE event_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM attendance WHERE event_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM timer_segments
			WHERE timer_id IN (SELECT id FROM timers WHERE event_id = $1)`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM timers WHERE event_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		return nil
	})
}

// UpsertRSVP saves a user's reply, updating in place when one exists.
// created_at is preserved on update; updated_at always advances.
func (r *PGRepository) UpsertRSVP(ctx context.Context, rsvp *RSVP) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO event_rsvps (event_id, user_id, status, guest_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id, event_id) DO UPDATE
			SET status = EXCLUDED.status,
			    guest_count = EXCLUDED.guest_count,
			    updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		rsvp.EventID, rsvp.UserID, rsvp.Status, rsvp.GuestCount).
		Scan(&rsvp.ID, &rsvp.CreatedAt, &rsvp.UpdatedAt)
}

// DeleteRSVP removes a user's reply.
func (r *PGRepository) DeleteRSVP(ctx context.Context, eventID int64, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM event_rsvps WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// ListRSVPs returns all replies for an event, newest first.
func (r *PGRepository) ListRSVPs(ctx context.Context, eventID int64) ([]RSVP, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, user_id, status, guest_count, created_at, updated_at
		FROM event_rsvps
		WHERE event_id = $1
		ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rsvps []RSVP
	for rows.Next() {
		var rec RSVP
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.UserID, &rec.Status,
			&rec.GuestCount, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rsvps = append(rsvps, rec)
	}
	return rsvps, rows.Err()
}

// GetRSVP returns one user's reply for an event.
func (r *PGRepository) GetRSVP(ctx context.Context, eventID int64, userID string) (*RSVP, error) {
	var rec RSVP
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_id, user_id, status, guest_count, created_at, updated_at
		FROM event_rsvps
		WHERE event_id = $1 AND user_id = $2`, eventID, userID).
		Scan(&rec.ID, &rec.EventID, &rec.UserID, &rec.Status,
			&rec.GuestCount, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// CreateAttendance records a check-in. A repeat check-in surfaces
// httpx.ErrDuplicate from the unique (user_id, event_id) index.
func (r *PGRepository) CreateAttendance(ctx context.Context, eventID int64, userID string) (*Attendance, error) {
	att := Attendance{EventID: eventID, UserID: userID}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO attendance (event_id, user_id, checked_at)
		VALUES ($1, $2, NOW())
		RETURNING id, checked_at`, eventID, userID).
		Scan(&att.ID, &att.CheckedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, httpx.ErrDuplicate
		}
		return nil, err
	}
	return &att, nil
}

// DeleteAttendance undoes a check-in.
func (r *PGRepository) DeleteAttendance(ctx context.Context, eventID int64, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM attendance WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// ListAttendance returns check-ins for an event in check-in order.
func (r *PGRepository) ListAttendance(ctx context.Context, eventID int64) ([]Attendance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, user_id, checked_at
		FROM attendance
		WHERE event_id = $1
		ORDER BY checked_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Attendance
	for rows.Next() {
		var att Attendance
		if err := rows.Scan(&att.ID, &att.EventID, &att.UserID, &att.CheckedAt); err != nil {
			return nil, err
		}
		list = append(list, att)
	}
	return list, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
