package gallery

import (
	"context"
	"fmt"
	"strings"

	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

// Service implements album and image workflows.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListAlbums returns every album.
func (s *Service) ListAlbums(ctx context.Context) ([]Album, error) {
	return s.repo.ListAlbums(ctx)
}

// GetAlbum fetches one album.
func (s *Service) GetAlbum(ctx context.Context, id int64) (*Album, error) {
	return s.repo.GetAlbum(ctx, id)
}

// CreateAlbum makes a new album owned by the creator.
func (s *Service) CreateAlbum(ctx context.Context, title, description, creatorID string) (*Album, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: album title is required", httpx.ErrValidation)
	}
	album := &Album{Title: title, Description: strings.TrimSpace(description), CreatorID: creatorID}
	if err := s.repo.CreateAlbum(ctx, album); err != nil {
		return nil, err
	}
	return album, nil
}

// UpdateAlbumInput carries optional album field changes.
type UpdateAlbumInput struct {
	Title       *string
	Description *string
}

// UpdateAlbum applies field changes to an album.
func (s *Service) UpdateAlbum(ctx context.Context, id int64, input UpdateAlbumInput) (*Album, error) {
	album, err := s.repo.GetAlbum(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: album title is required", httpx.ErrValidation)
		}
		album.Title = title
	}
	if input.Description != nil {
		album.Description = strings.TrimSpace(*input.Description)
	}
	if err := s.repo.UpdateAlbum(ctx, album); err != nil {
		return nil, err
	}
	return album, nil
}

// DeleteAlbum removes an album together with its images.
func (s *Service) DeleteAlbum(ctx context.Context, id int64) error {
	return s.repo.DeleteAlbumCascade(ctx, id)
}

// ListImages returns an album's images.
func (s *Service) ListImages(ctx context.Context, albumID int64) ([]Image, error) {
	if _, err := s.repo.GetAlbum(ctx, albumID); err != nil {
		return nil, err
	}
	return s.repo.ListImages(ctx, albumID)
}

// GetImage fetches one image row.
func (s *Service) GetImage(ctx context.Context, id int64) (*Image, error) {
	return s.repo.GetImage(ctx, id)
}

// AddImage records an uploaded image under an album.
func (s *Service) AddImage(ctx context.Context, albumID int64, uploaderID, path, caption string) (*Image, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: image path is required", httpx.ErrValidation)
	}
	if _, err := s.repo.GetAlbum(ctx, albumID); err != nil {
		return nil, err
	}
	image := &Image{
		AlbumID:    albumID,
		UploaderID: uploaderID,
		Path:       path,
		Caption:    strings.TrimSpace(caption),
	}
	if err := s.repo.AddImage(ctx, image); err != nil {
		return nil, err
	}
	return image, nil
}

// DeleteImage removes one image row.
func (s *Service) DeleteImage(ctx context.Context, id int64) error {
	return s.repo.DeleteImage(ctx, id)
}

// DeleteImagesByPath removes image rows by storage pathname, used for bulk
// cleanup of uploads.
func (s *Service) DeleteImagesByPath(ctx context.Context, paths []string) (int64, error) {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return 0, fmt.Errorf("%w: at least one pathname is required", httpx.ErrValidation)
	}
	return s.repo.DeleteImagesByPath(ctx, cleaned)
}
