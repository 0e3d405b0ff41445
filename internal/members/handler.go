package members

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

// Handler manages directory endpoints.
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

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.remove)
}

type memberView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Phone       string     `json:"phone,omitempty"`
	Address     string     `json:"address,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	Nationality string     `json:"nationality,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	AvatarPath  string     `json:"avatarPath,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toMemberView(m *Member) memberView {
	return memberView{
		ID:          m.ID,
		Email:       m.Email,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Phone:       m.Phone,
		Address:     m.Address,
		Bio:         m.Bio,
		Nationality: m.Nationality,
		DateOfBirth: m.DateOfBirth,
		AvatarPath:  m.AvatarPath,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermViewUsers); err != nil {
		httpx.RespondError(w, err)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	result, err := h.service.List(r.Context(), r.URL.Query().Get("search"), page, perPage)
	if err != nil {
		h.logger.Error("list members", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	views := make([]memberView, 0, len(result.Members))
	for i := range result.Members {
		views = append(views, toMemberView(&result.Members[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"members":    views,
		"pagination": result.Pagination,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	// Everyone may read their own profile; other profiles need view_users.
	if principal.ID != id && !authz.HasFellowshipPermission(principal, authz.PermViewUsers) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}

	member, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	// canEdit drives the profile edit button for the reader, not enforcement.
	httpx.JSON(w, http.StatusOK, map[string]any{
		"member":  toMemberView(member),
		"canEdit": h.guard.IsOwnerOrAdmin(r.Context(), id),
	})
}

// Fields are pointers so an omitted field is distinguishable from an
// explicit empty value; omitted fields leave the stored profile untouched.
type updateRequest struct {
	FirstName   *string `json:"firstName" validate:"omitempty,max=100"`
	LastName    *string `json:"lastName" validate:"omitempty,max=100"`
	Phone       *string `json:"phone" validate:"omitempty,max=50"`
	Address     *string `json:"address" validate:"omitempty,max=500"`
	Bio         *string `json:"bio" validate:"omitempty,max=2000"`
	Nationality *string `json:"nationality" validate:"omitempty,max=100"`
	DateOfBirth *string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	AvatarPath  *string `json:"avatarPath" validate:"omitempty,max=500"`
	Status      *string `json:"status" validate:"omitempty,oneof=active inactive visitor"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actx := authz.ActionContext{IsOwner: principal.ID == id}
	if !authz.CanPerformAction(principal, authz.ActionUpdate, authz.ResourceUser, actx) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}

	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	// Status changes are an administrative action, not a profile edit.
	if req.Status != nil && *req.Status != "" && !authz.HasFellowshipPermission(principal, authz.PermManageUsers) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}

	var dob *time.Time
	if req.DateOfBirth != nil && *req.DateOfBirth != "" {
		parsed, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		dob = &parsed
	}

	member, err := h.service.Update(r.Context(), id, UpdateInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		Address:     req.Address,
		Bio:         req.Bio,
		Nationality: req.Nationality,
		DateOfBirth: dob,
		AvatarPath:  req.AvatarPath,
		Status:      req.Status,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMemberView(member))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actx := authz.ActionContext{IsOwner: principal.ID == id}
	if !authz.CanPerformAction(principal, authz.ActionDelete, authz.ResourceUser, actx) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}
