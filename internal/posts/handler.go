package posts

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/koinonia-app/koinonia/internal/authz"
	"github.com/koinonia-app/koinonia/internal/identity"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

// Handler manages blog post endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     *identity.Guard
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *identity.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers blog routes. Published posts are readable without a
// session.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.remove)
	r.Post("/{id}/publish", h.publish)
}

func postID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type postView struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	AuthorID    string     `json:"authorId,omitempty"`
	Status      string     `json:"status"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func toPostView(p *Post) postView {
	return postView{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		AuthorID:    p.AuthorID,
		Status:      p.Status,
		PublishedAt: p.PublishedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	publishedOnly := true
	if r.URL.Query().Get("all") == "true" {
		if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermManagePosts); err != nil {
			httpx.RespondError(w, err)
			return
		}
		publishedOnly = false
	}
	list, err := h.service.List(r.Context(), publishedOnly)
	if err != nil {
		h.logger.Error("list posts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]postView, 0, len(list))
	for i := range list {
		views = append(views, toPostView(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"posts": views})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	post, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	// Unpublished posts exist only for their author and post managers;
	// everyone else sees a 404 rather than a 403.
	if !post.Published() {
		principal, err := h.guard.RequireUser(r.Context())
		if err != nil {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		isOwner := post.AuthorID != "" && post.AuthorID == principal.ID
		if !isOwner && !authz.CanPerformAction(principal, authz.ActionUpdate, authz.ResourcePost, authz.ActionContext{}) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"post": toPostView(post)})
}

type createPostRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"required"`
	Status  string `json:"status" validate:"omitempty,oneof=draft published archived"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermManagePosts)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createPostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if req.Status == StatusPublished {
		if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermPublishPosts); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}

	post, err := h.service.Create(r.Context(), CreateInput{
		Title:    req.Title,
		Content:  req.Content,
		AuthorID: principal.ID,
		Status:   req.Status,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"post": toPostView(post)})
}

type updatePostRequest struct {
	Title   *string `json:"title" validate:"omitempty,max=255"`
	Content *string `json:"content"`
	Status  *string `json:"status" validate:"omitempty,oneof=draft published archived"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	post, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actx := authz.ActionContext{IsOwner: post.AuthorID != "" && post.AuthorID == principal.ID}
	if _, err := h.guard.RequireAction(r.Context(), authz.ActionUpdate, authz.ResourcePost, actx); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updatePostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if req.Status != nil && *req.Status == StatusPublished && !post.Published() {
		if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermPublishPosts); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}

	updated, err := h.service.Update(r.Context(), id, UpdateInput{
		Title:   req.Title,
		Content: req.Content,
		Status:  req.Status,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"post": toPostView(updated)})
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermPublishPosts); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := postID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	post, err := h.service.Publish(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"post": toPostView(post)})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	post, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actx := authz.ActionContext{IsOwner: post.AuthorID != "" && post.AuthorID == principal.ID}
	if _, err := h.guard.RequireAction(r.Context(), authz.ActionDelete, authz.ResourcePost, actx); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}
