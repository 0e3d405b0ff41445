package posts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

// Service implements blog post workflows.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns posts, optionally restricted to published ones.
func (s *Service) List(ctx context.Context, publishedOnly bool) ([]Post, error) {
	return s.repo.List(ctx, publishedOnly)
}

// Get fetches one post.
func (s *Service) Get(ctx context.Context, id int64) (*Post, error) {
	return s.repo.Get(ctx, id)
}

// CreateInput carries the fields for a new post.
type CreateInput struct {
	Title    string
	Content  string
	AuthorID string
	Status   string
}

// Create makes a post. An empty status means draft; creating directly as
// published stamps publishedAt.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Post, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, fmt.Errorf("%w: post title is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, fmt.Errorf("%w: post content is required", httpx.ErrValidation)
	}
	if input.Status == "" {
		input.Status = StatusDraft
	}
	if !ValidStatus(input.Status) {
		return nil, fmt.Errorf("%w: unknown post status %q", httpx.ErrValidation, input.Status)
	}

	post := &Post{
		Title:    input.Title,
		Content:  input.Content,
		AuthorID: input.AuthorID,
		Status:   input.Status,
	}
	if post.Status == StatusPublished {
		now := s.now()
		post.PublishedAt = &now
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// UpdateInput carries optional post field changes.
type UpdateInput struct {
	Title   *string
	Content *string
	Status  *string
}

// Update applies field changes to a post. The first transition to published
// stamps publishedAt; the stamp survives later status changes.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: post title is required", httpx.ErrValidation)
		}
		post.Title = title
	}
	if input.Content != nil {
		if strings.TrimSpace(*input.Content) == "" {
			return nil, fmt.Errorf("%w: post content is required", httpx.ErrValidation)
		}
		post.Content = *input.Content
	}
	if input.Status != nil {
		if !ValidStatus(*input.Status) {
			return nil, fmt.Errorf("%w: unknown post status %q", httpx.ErrValidation, *input.Status)
		}
		post.Status = *input.Status
		if post.Status == StatusPublished && post.PublishedAt == nil {
			now := s.now()
			post.PublishedAt = &now
		}
	}
	if err := s.repo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Publish flips a post to published, stamping publishedAt on the first
// publication.
func (s *Service) Publish(ctx context.Context, id int64) (*Post, error) {
	status := StatusPublished
	return s.Update(ctx, id, UpdateInput{Status: &status})
}

// Delete removes one post.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
