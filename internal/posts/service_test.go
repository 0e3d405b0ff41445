package posts

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

type memoryRepo struct {
	posts  map[int64]*Post
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{posts: make(map[int64]*Post)}
}

func (m *memoryRepo) List(_ context.Context, publishedOnly bool) ([]Post, error) {
	var list []Post
	for _, p := range m.posts {
		if publishedOnly && p.Status != StatusPublished {
			continue
		}
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *memoryRepo) Create(_ context.Context, post *Post) error {
	m.nextID++
	post.ID = m.nextID
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	copied := *post
	m.posts[post.ID] = &copied
	return nil
}

func (m *memoryRepo) Update(_ context.Context, post *Post) error {
	if _, ok := m.posts[post.ID]; !ok {
		return httpx.ErrNotFound
	}
	copied := *post
	m.posts[post.ID] = &copied
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.posts[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

var _ Repository = (*memoryRepo)(nil)

func TestCreateDefaultsToDraft(t *testing.T) {
	svc := NewService(newMemoryRepo())

	post, err := svc.Create(context.Background(), CreateInput{
		Title:    "  Advent reflections  ",
		Content:  "Week one...",
		AuthorID: "user_1",
	})
	require.NoError(t, err)
	require.Equal(t, "Advent reflections", post.Title)
	require.Equal(t, StatusDraft, post.Status)
	require.Nil(t, post.PublishedAt)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Title: "  ", Content: "body"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Title: "Title", Content: "   "})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Title: "Title", Content: "body", Status: "pending"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestPublishStampsOnce(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	post, err := svc.Create(ctx, CreateInput{Title: "Advent", Content: "body", AuthorID: "user_1"})
	require.NoError(t, err)

	published, err := svc.Publish(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)
	stamp := *published.PublishedAt

	// Archiving and republishing keeps the original stamp.
	archived := StatusArchived
	_, err = svc.Update(ctx, post.ID, UpdateInput{Status: &archived})
	require.NoError(t, err)

	republished, err := svc.Publish(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, stamp, *republished.PublishedAt)
}

func TestCreatePublishedStampsImmediately(t *testing.T) {
	svc := NewService(newMemoryRepo())

	post, err := svc.Create(context.Background(), CreateInput{
		Title:   "Advent",
		Content: "body",
		Status:  StatusPublished,
	})
	require.NoError(t, err)
	require.NotNil(t, post.PublishedAt)
}

func TestListPublishedOnly(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Title: "Draft", Content: "body"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Title: "Live", Content: "body", Status: StatusPublished})
	require.NoError(t, err)

	public, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, public, 1)
	require.Equal(t, "Live", public[0].Title)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestUpdateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	post, err := svc.Create(ctx, CreateInput{Title: "Advent", Content: "body"})
	require.NoError(t, err)

	empty := "  "
	_, err = svc.Update(ctx, post.ID, UpdateInput{Title: &empty})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Update(ctx, 999, UpdateInput{})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}
