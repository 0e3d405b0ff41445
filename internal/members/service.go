package members

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/koinonia-app/koinonia/internal/platform/httpx"
	"github.com/koinonia-app/koinonia/internal/shared"
)

// Service handles directory business logic.
type Service struct {
	repo   Repository
	folder cases.Caser
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, folder: cases.Fold()}
}

// ListResult bundles a directory page with pagination metadata.
type ListResult struct {
	Members    []Member
	Pagination shared.Pagination
}

// List returns a directory page. The search term is case-folded so queries
// match regardless of letter case in any script.
func (s *Service) List(ctx context.Context, search string, page, perPage int) (*ListResult, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	term := s.folder.String(strings.TrimSpace(search))
	members, total, err := s.repo.List(ctx, term, page, perPage)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Members:    members,
		Pagination: shared.NewPagination(page, perPage, total),
	}, nil
}

// Get fetches one member.
func (s *Service) Get(ctx context.Context, id string) (*Member, error) {
	return s.repo.Get(ctx, id)
}

// UpdateInput carries the mutable profile fields. Nil fields are left
// untouched so a partial update never wipes stored data.
type UpdateInput struct {
	FirstName   *string
	LastName    *string
	Phone       *string
	Address     *string
	Bio         *string
	Nationality *string
	DateOfBirth *time.Time
	AvatarPath  *string
	Status      *string
}

// Update applies profile changes and returns the updated member.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*Member, error) {
	member, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.FirstName != nil {
		name := strings.TrimSpace(*input.FirstName)
		if name == "" {
			return nil, fmt.Errorf("%w: first name cannot be empty", httpx.ErrValidation)
		}
		member.FirstName = name
	}
	if input.LastName != nil {
		name := strings.TrimSpace(*input.LastName)
		if name == "" {
			return nil, fmt.Errorf("%w: last name cannot be empty", httpx.ErrValidation)
		}
		member.LastName = name
	}
	if input.Phone != nil {
		member.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Address != nil {
		member.Address = strings.TrimSpace(*input.Address)
	}
	if input.Bio != nil {
		member.Bio = strings.TrimSpace(*input.Bio)
	}
	if input.Nationality != nil {
		member.Nationality = strings.TrimSpace(*input.Nationality)
	}
	if input.DateOfBirth != nil {
		member.DateOfBirth = input.DateOfBirth
	}
	if input.AvatarPath != nil {
		member.AvatarPath = strings.TrimSpace(*input.AvatarPath)
	}
	if input.Status != nil && *input.Status != "" {
		if !ValidStatus(*input.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, *input.Status)
		}
		member.Status = *input.Status
	}

	if err := s.repo.Update(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// Delete removes a member from the directory.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
