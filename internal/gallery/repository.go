package gallery

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koinonia-app/koinonia/internal/platform/db"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

// Repository defines persistence operations for albums and images.
type Repository interface {
	ListAlbums(ctx context.Context) ([]Album, error)
	GetAlbum(ctx context.Context, id int64) (*Album, error)
	CreateAlbum(ctx context.Context, album *Album) error
	UpdateAlbum(ctx context.Context, album *Album) error
	DeleteAlbumCascade(ctx context.Context, id int64) error

	ListImages(ctx context.Context, albumID int64) ([]Image, error)
	GetImage(ctx context.Context, id int64) (*Image, error)
	AddImage(ctx context.Context, image *Image) error
	DeleteImage(ctx context.Context, id int64) error
	DeleteImagesByPath(ctx context.Context, paths []string) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const albumColumns = `id, title, COALESCE(description, ''), COALESCE(creator_id, ''), created_at, updated_at`

// ListAlbums returns every album, newest first.
func (r *PGRepository) ListAlbums(ctx context.Context) ([]Album, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+albumColumns+` FROM albums ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Album
	for rows.Next() {
		var a Album
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.CreatorID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// GetAlbum fetches one album.
func (r *PGRepository) GetAlbum(ctx context.Context, id int64) (*Album, error) {
	var a Album
	err := r.pool.QueryRow(ctx, `SELECT `+albumColumns+` FROM albums WHERE id = $1`, id).
		Scan(&a.ID, &a.Title, &a.Description, &a.CreatorID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// CreateAlbum inserts an album.
func (r *PGRepository) CreateAlbum(ctx context.Context, album *Album) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO albums (title, description, creator_id, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		album.Title, album.Description, album.CreatorID).
		Scan(&album.ID, &album.CreatedAt, &album.UpdatedAt)
}

// UpdateAlbum persists album field changes.
func (r *PGRepository) UpdateAlbum(ctx context.Context, album *Album) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE albums SET title = $2, description = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1`, album.ID, album.Title, album.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeleteAlbumCascade removes an album and its images in one transaction.
func (r *PGRepository) DeleteAlbumCascade(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM images WHERE album_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM albums WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		return nil
	})
}

const imageColumns = `id, album_id, COALESCE(uploader_id, ''), path, COALESCE(caption, ''), created_at`

// ListImages returns an album's images in upload order.
func (r *PGRepository) ListImages(ctx context.Context, albumID int64) ([]Image, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+imageColumns+` FROM images WHERE album_id = $1 ORDER BY created_at`, albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.AlbumID, &img.UploaderID, &img.Path, &img.Caption, &img.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, img)
	}
	return list, rows.Err()
}

// GetImage fetches one image row.
func (r *PGRepository) GetImage(ctx context.Context, id int64) (*Image, error) {
	var img Image
	err := r.pool.QueryRow(ctx, `SELECT `+imageColumns+` FROM images WHERE id = $1`, id).
		Scan(&img.ID, &img.AlbumID, &img.UploaderID, &img.Path, &img.Caption, &img.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &img, nil
}

// AddImage inserts an image row.
func (r *PGRepository) AddImage(ctx context.Context, image *Image) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO images (album_id, uploader_id, path, caption, created_at)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NOW())
		RETURNING id, created_at`,
		image.AlbumID, image.UploaderID, image.Path, image.Caption).
		Scan(&image.ID, &image.CreatedAt)
}

// DeleteImage removes one image row.
func (r *PGRepository) DeleteImage(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeleteImagesByPath removes every image row whose path is listed and
// reports how many were deleted.
func (r *PGRepository) DeleteImagesByPath(ctx context.Context, paths []string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM images WHERE path = ANY($1)`, paths)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
