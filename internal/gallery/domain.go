package gallery

import "time"

// Album groups uploaded images under a title.
type Album struct {
	ID          int64
	Title       string
	Description string
	CreatorID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Image is the metadata row for one stored picture. Path is the storage
// pathname; the blob itself lives outside this module.
type Image struct {
	ID         int64
	AlbumID    int64
	UploaderID string
	Path       string
	Caption    string
	CreatedAt  time.Time
}
