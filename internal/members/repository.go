package members

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

const memberColumns = `id, email, first_name, last_name, COALESCE(phone, ''), COALESCE(address, ''),
	COALESCE(bio, ''), COALESCE(nationality, ''), date_of_birth, COALESCE(avatar_path, ''),
	status, created_at, updated_at`

// Repository defines persistence operations for the member directory.
type Repository interface {
	List(ctx context.Context, search string, page, perPage int) ([]Member, int, error)
	Get(ctx context.Context, id string) (*Member, error)
	Update(ctx context.Context, member *Member) error
	Delete(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns a page of members plus the unpaginated total. search matches
// name and email; the service folds the term before it reaches here.
func (r *PGRepository) List(ctx context.Context, search string, page, perPage int) ([]Member, int, error) {
	where := ""
	args := []any{}
	if search != "" {
		where = `WHERE LOWER(first_name || ' ' || last_name) LIKE $1 OR LOWER(email) LIKE $1`
		args = append(args, "%"+search+"%")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM users " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	listQuery := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`,
		memberColumns, where, len(args)+1, len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		members = append(members, *member)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

// Get fetches one member by id.
func (r *PGRepository) Get(ctx context.Context, id string) (*Member, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM users WHERE id = $1`, id)
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return member, nil
}

// Update persists the mutable profile fields.
func (r *PGRepository) Update(ctx context.Context, member *Member) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET
			first_name = $2, last_name = $3, phone = NULLIF($4, ''),
			address = NULLIF($5, ''), bio = NULLIF($6, ''), nationality = NULLIF($7, ''),
			date_of_birth = $8, avatar_path = NULLIF($9, ''), status = $10,
			updated_at = NOW()
		WHERE id = $1`,
		member.ID, member.FirstName, member.LastName, member.Phone,
		member.Address, member.Bio, member.Nationality,
		member.DateOfBirth, member.AvatarPath, member.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// Delete removes a member row. Dependent rows (role assignments, RSVPs,
// memberships, notifications) are removed by the schema's cascades.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.Email, &m.FirstName, &m.LastName, &m.Phone, &m.Address,
		&m.Bio, &m.Nationality, &m.DateOfBirth, &m.AvatarPath,
		&m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.FirstName = strings.TrimSpace(m.FirstName)
	m.LastName = strings.TrimSpace(m.LastName)
	return &m, nil
}

var _ Repository = (*PGRepository)(nil)
