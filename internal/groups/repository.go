package groups

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koinonia-app/koinonia/internal/authz"
	"github.com/koinonia-app/koinonia/internal/platform/db"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

// Repository defines persistence operations for groups.
type Repository interface {
	List(ctx context.Context) ([]Group, error)
	ListForUser(ctx context.Context, userID string) ([]Group, error)
	Get(ctx context.Context, id int64) (*Group, error)
	Create(ctx context.Context, group *Group) error
	Update(ctx context.Context, group *Group) error
	DeleteCascade(ctx context.Context, id int64) error

	ListMembers(ctx context.Context, groupID int64) ([]Membership, error)
	AddMember(ctx context.Context, groupID int64, userID string, role authz.GroupRole) error
	RemoveMember(ctx context.Context, groupID int64, userID string) error
	SetMemberRole(ctx context.Context, groupID int64, userID string, role authz.GroupRole) error

	CreateApplications(ctx context.Context, userID string, groupIDs []int64) (int, error)
	ListApplications(ctx context.Context, groupID int64) ([]Application, error)
	ListApplicationsForUser(ctx context.Context, userID string) ([]Application, error)
	GetApplication(ctx context.Context, id int64) (*Application, error)
	ReviewApplication(ctx context.Context, id int64, reviewerID, status string) error

	CreateInvitation(ctx context.Context, inv *Invitation) error
	ListInvitationsForUser(ctx context.Context, userID string) ([]Invitation, error)
	GetInvitation(ctx context.Context, id int64) (*Invitation, error)
	SetInvitationStatus(ctx context.Context, id int64, status string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const groupColumns = `id, name, COALESCE(description, ''), created_at, updated_at`

func scanGroups(rows pgx.Rows) ([]Group, error) {
	defer rows.Close()
	var list []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// List returns every group.
func (r *PGRepository) List(ctx context.Context) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+groupColumns+` FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return scanGroups(rows)
}

// ListForUser returns the groups a user belongs to.
func (r *PGRepository) ListForUser(ctx context.Context, userID string) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.name, COALESCE(g.description, ''), g.created_at, g.updated_at
		FROM group_members gm
		JOIN groups g ON g.id = gm.group_id
		WHERE gm.user_id = $1
		ORDER BY g.name`, userID)
	if err != nil {
		return nil, err
	}
	return scanGroups(rows)
}

// Get fetches one group.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// Create inserts a group. Duplicate names map to httpx.ErrDuplicate.
func (r *PGRepository) Create(ctx context.Context, group *Group) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO groups (name, description, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		group.Name, group.Description).Scan(&group.ID, &group.CreatedAt, &group.UpdatedAt)
	if isUniqueViolation(err) {
		return httpx.ErrDuplicate
	}
	return err
}

// Update persists group field changes.
func (r *PGRepository) Update(ctx context.Context, group *Group) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE groups SET name = $2, description = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1`, group.ID, group.Name, group.Description)
	if isUniqueViolation(err) {
		return httpx.ErrDuplicate
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeleteCascade removes a group with its memberships, applications and
// invitations in one transaction.
func (r *PGRepository) DeleteCascade(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM group_applications WHERE group_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM group_invitations WHERE group_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		return nil
	})
}

// ListMembers returns a group's memberships.
func (r *PGRepository) ListMembers(ctx context.Context, groupID int64) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT group_id, user_id, role, created_at
		FROM group_members
		WHERE group_id = $1
		ORDER BY created_at`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// AddMember inserts a membership. Existing membership maps to
// httpx.ErrDuplicate.
func (r *PGRepository) AddMember(ctx context.Context, groupID int64, userID string, role authz.GroupRole) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO group_members (group_id, user_id, role, created_at)
		VALUES ($1, $2, $3, NOW())`, groupID, userID, string(role))
	if isUniqueViolation(err) {
		return httpx.ErrDuplicate
	}
	return err
}

// RemoveMember deletes a membership.
func (r *PGRepository) RemoveMember(ctx context.Context, groupID int64, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// SetMemberRole changes a member's role within the group.
func (r *PGRepository) SetMemberRole(ctx context.Context, groupID int64, userID string, role authz.GroupRole) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE group_members SET role = $3 WHERE group_id = $1 AND user_id = $2`,
		groupID, userID, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// CreateApplications inserts pending applications, skipping groups where one
// already exists, and reports how many rows were actually created.
func (r *PGRepository) CreateApplications(ctx context.Context, userID string, groupIDs []int64) (int, error) {
	created := 0
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, groupID := range groupIDs {
			tag, err := tx.Exec(ctx, `
				INSERT INTO group_applications (group_id, user_id, status, created_at)
				VALUES ($1, $2, 'pending', NOW())
				ON CONFLICT (group_id, user_id) DO NOTHING`, groupID, userID)
			if err != nil {
				return err
			}
			created += int(tag.RowsAffected())
		}
		return nil
	})
	return created, err
}

const applicationColumns = `id, group_id, user_id, status, COALESCE(reviewed_by, ''), reviewed_at, created_at`

func scanApplications(rows pgx.Rows) ([]Application, error) {
	defer rows.Close()
	var list []Application
	for rows.Next() {
		var app Application
		if err := rows.Scan(&app.ID, &app.GroupID, &app.UserID, &app.Status,
			&app.ReviewedBy, &app.ReviewedAt, &app.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, app)
	}
	return list, rows.Err()
}

// ListApplications returns a group's applications.
func (r *PGRepository) ListApplications(ctx context.Context, groupID int64) ([]Application, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+applicationColumns+` FROM group_applications WHERE group_id = $1 ORDER BY created_at`, groupID)
	if err != nil {
		return nil, err
	}
	return scanApplications(rows)
}

// ListApplicationsForUser returns a user's applications across groups.
func (r *PGRepository) ListApplicationsForUser(ctx context.Context, userID string) ([]Application, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+applicationColumns+` FROM group_applications WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	return scanApplications(rows)
}

// GetApplication fetches one application.
func (r *PGRepository) GetApplication(ctx context.Context, id int64) (*Application, error) {
	var app Application
	err := r.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM group_applications WHERE id = $1`, id).
		Scan(&app.ID, &app.GroupID, &app.UserID, &app.Status,
			&app.ReviewedBy, &app.ReviewedAt, &app.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

// ReviewApplication records the reviewer's decision.
func (r *PGRepository) ReviewApplication(ctx context.Context, id int64, reviewerID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE group_applications
		SET status = $2, reviewed_by = $3, reviewed_at = NOW()
		WHERE id = $1`, id, status, reviewerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// CreateInvitation inserts a pending invitation. A pending invitation for
// the same user and group maps to httpx.ErrDuplicate.
func (r *PGRepository) CreateInvitation(ctx context.Context, inv *Invitation) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO group_invitations (group_id, invited_user_id, inviter_user_id, status, created_at)
		VALUES ($1, $2, $3, 'pending', NOW())
		RETURNING id, created_at`,
		inv.GroupID, inv.InvitedUserID, inv.InviterUserID).
		Scan(&inv.ID, &inv.CreatedAt)
	if isUniqueViolation(err) {
		return httpx.ErrDuplicate
	}
	if err == nil {
		inv.Status = InvitationPending
	}
	return err
}

// ListInvitationsForUser returns invitations addressed to a user.
func (r *PGRepository) ListInvitationsForUser(ctx context.Context, userID string) ([]Invitation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, group_id, invited_user_id, inviter_user_id, status, created_at
		FROM group_invitations
		WHERE invited_user_id = $1
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Invitation
	for rows.Next() {
		var inv Invitation
		if err := rows.Scan(&inv.ID, &inv.GroupID, &inv.InvitedUserID,
			&inv.InviterUserID, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// GetInvitation fetches one invitation.
func (r *PGRepository) GetInvitation(ctx context.Context, id int64) (*Invitation, error) {
	var inv Invitation
	err := r.pool.QueryRow(ctx, `
		SELECT id, group_id, invited_user_id, inviter_user_id, status, created_at
		FROM group_invitations WHERE id = $1`, id).
		Scan(&inv.ID, &inv.GroupID, &inv.InvitedUserID,
			&inv.InviterUserID, &inv.Status, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// SetInvitationStatus updates an invitation's status.
func (r *PGRepository) SetInvitationStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE group_invitations SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Repository = (*PGRepository)(nil)
