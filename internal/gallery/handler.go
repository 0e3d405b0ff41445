package gallery

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

// Handler manages gallery endpoints.
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

// MountRoutes registers gallery routes. Reads are public.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/albums", h.listAlbums)
	r.Post("/albums", h.createAlbum)
	r.Get("/albums/{id}", h.getAlbum)
	r.Patch("/albums/{id}", h.updateAlbum)
	r.Delete("/albums/{id}", h.deleteAlbum)

	r.Get("/albums/{id}/images", h.listImages)
	r.Post("/albums/{id}/images", h.addImage)
	r.Delete("/images/{id}", h.deleteImage)
	r.Post("/images/delete", h.deleteImagesByPath)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type albumView struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatorID   string    `json:"creatorId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toAlbumView(a *Album) albumView {
	return albumView{ID: a.ID, Title: a.Title, Description: a.Description, CreatorID: a.CreatorID, CreatedAt: a.CreatedAt}
}

type imageView struct {
	ID         int64     `json:"id"`
	AlbumID    int64     `json:"albumId"`
	UploaderID string    `json:"uploaderId,omitempty"`
	Path       string    `json:"path"`
	Caption    string    `json:"caption,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toImageView(img *Image) imageView {
	return imageView{
		ID:         img.ID,
		AlbumID:    img.AlbumID,
		UploaderID: img.UploaderID,
		Path:       img.Path,
		Caption:    img.Caption,
		CreatedAt:  img.CreatedAt,
	}
}

func (h *Handler) listAlbums(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListAlbums(r.Context())
	if err != nil {
		h.logger.Error("list albums", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]albumView, 0, len(list))
	for i := range list {
		views = append(views, toAlbumView(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"albums": views})
}

type createAlbumRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
}

func (h *Handler) createAlbum(w http.ResponseWriter, r *http.Request) {
	principal, err := h.guard.RequireAction(r.Context(), authz.ActionCreate, authz.ResourceGallery, authz.ActionContext{})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createAlbumRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	album, err := h.service.CreateAlbum(r.Context(), req.Title, req.Description, principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"album": toAlbumView(album)})
}

func (h *Handler) getAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	album, err := h.service.GetAlbum(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"album": toAlbumView(album)})
}

type updateAlbumRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

func (h *Handler) updateAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	album, err := h.service.GetAlbum(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actx := authz.ActionContext{IsOwner: album.CreatorID != "" && album.CreatorID == principal.ID}
	if _, err := h.guard.RequireAction(r.Context(), authz.ActionUpdate, authz.ResourceGallery, actx); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateAlbumRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	updated, err := h.service.UpdateAlbum(r.Context(), id, UpdateAlbumInput{Title: req.Title, Description: req.Description})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"album": toAlbumView(updated)})
}

func (h *Handler) deleteAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	album, err := h.service.GetAlbum(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actx := authz.ActionContext{IsOwner: album.CreatorID != "" && album.CreatorID == principal.ID}
	if _, err := h.guard.RequireAction(r.Context(), authz.ActionDelete, authz.ResourceGallery, actx); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteAlbum(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) listImages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	list, err := h.service.ListImages(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views := make([]imageView, 0, len(list))
	for i := range list {
		views = append(views, toImageView(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"images": views})
}

type addImageRequest struct {
	Path    string `json:"path" validate:"required,max=1024"`
	Caption string `json:"caption" validate:"omitempty,max=1000"`
}

func (h *Handler) addImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req addImageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	image, err := h.service.AddImage(r.Context(), id, principal.ID, req.Path, req.Caption)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"image": toImageView(image)})
}

func (h *Handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	image, err := h.service.GetImage(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actx := authz.ActionContext{IsOwner: image.UploaderID != "" && image.UploaderID == principal.ID}
	if _, err := h.guard.RequireAction(r.Context(), authz.ActionDelete, authz.ResourceGallery, actx); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteImage(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

type deleteByPathRequest struct {
	Pathnames []string `json:"pathnames" validate:"required,min=1,dive,required"`
}

func (h *Handler) deleteImagesByPath(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermManagePosts); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req deleteByPathRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	deleted, err := h.service.DeleteImagesByPath(r.Context(), req.Pathnames)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}
