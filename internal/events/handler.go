package events

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

// Handler manages calendar endpoints.
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

// MountRoutes registers calendar routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.remove)

	r.Post("/{id}/rsvp", h.saveRSVP)
	r.Get("/{id}/rsvp", h.myRSVP)
	r.Delete("/{id}/rsvp", h.deleteRSVP)
	r.Get("/{id}/rsvps", h.listRSVPs)

	r.Post("/{id}/check-in", h.checkIn)
	r.Delete("/{id}/check-in/{userID}", h.undoCheckIn)
	r.Get("/{id}/attendance", h.listAttendance)
	r.Get("/{id}/roster", h.roster)
}

func eventID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type eventView struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Location    string     `json:"location,omitempty"`
	CreatorID   string     `json:"creatorId"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toEventView(e *Event) eventView {
	return eventView{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Location:    e.Location,
		CreatorID:   e.CreatorID,
		CreatedAt:   e.CreatedAt,
	}
}

type rsvpView struct {
	EventID    int64     `json:"eventId"`
	UserID     string    `json:"userId"`
	Status     string    `json:"status"`
	GuestCount int       `json:"guestCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toRSVPView(r *RSVP) rsvpView {
	return rsvpView{
		EventID:    r.EventID,
		UserID:     r.UserID,
		Status:     r.Status,
		GuestCount: r.GuestCount,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type attendanceView struct {
	EventID   int64     `json:"eventId"`
	UserID    string    `json:"userId"`
	CheckedAt time.Time `json:"checkedAt"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireUser(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	upcoming := r.URL.Query().Get("upcoming") == "true"
	list, err := h.service.List(r.Context(), upcoming)
	if err != nil {
		h.logger.Error("list events", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]eventView, 0, len(list))
	for i := range list {
		views = append(views, toEventView(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": views})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireUser(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := eventID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	event, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	// canManage drives the edit and delete buttons on the detail page.
	httpx.JSON(w, http.StatusOK, map[string]any{
		"event":     toEventView(event),
		"canManage": h.guard.IsOwnerOrAdminOrPastor(r.Context(), event.CreatorID),
	})
}

type createEventRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	StartTime   string `json:"startTime" validate:"required"`
	EndTime     string `json:"endTime" validate:"omitempty"`
	Location    string `json:"location" validate:"omitempty,max=255"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermCreateEvents)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createEventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var end *time.Time
	if req.EndTime != "" {
		parsed, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		end = &parsed
	}

	event, err := h.service.Create(r.Context(), CreateInput{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   start,
		EndTime:     end,
		Location:    req.Location,
		CreatorID:   principal.ID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"event": toEventView(event)})
}

type updateEventRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	StartTime   *string `json:"startTime"`
	EndTime     *string `json:"endTime"`
	Location    *string `json:"location" validate:"omitempty,max=255"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermEditAllEvents); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := eventID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req updateEventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	input := UpdateInput{Title: req.Title, Description: req.Description, Location: req.Location}
	if req.StartTime != nil {
		parsed, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		input.StartTime = &parsed
	}
	if req.EndTime != nil {
		if *req.EndTime == "" {
			input.ClearEndTime = true
		} else {
			parsed, err := time.Parse(time.RFC3339, *req.EndTime)
			if err != nil {
				httpx.RespondError(w, httpx.ErrValidation)
				return
			}
			input.EndTime = &parsed
		}
	}

	event, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"event": toEventView(event)})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermDeleteEvents); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := eventID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

type rsvpRequest struct {
	Status     string `json:"status" validate:"required,oneof=attending not_attending maybe"`
	GuestCount int    `json:"guestCount" validate:"min=0,max=50"`
}

func (h *Handler) saveRSVP(w http.ResponseWriter, r *http.Request) {
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := eventID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req rsvpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	rsvp, err := h.service.SaveRSVP(r.Context(), id, principal.ID, req.Status, req.GuestCount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rsvp": toRSVPView(rsvp)})
}

func (h *Handler) myRSVP(w http.ResponseWriter, r *http.Request) {
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := eventID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	rsvp, err := h.service.GetRSVP(r.Context(), id, principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rsvp": toRSVPView(rsvp)})
}

func (h *Handler) deleteRSVP(w http.ResponseWriter, r *http.Request) {
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := eventID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.DeleteRSVP(r.Context(), id, principal.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) listRSVPs(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermViewUsers); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := eventID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	report, err := h.service.ListRSVPs(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views := make([]rsvpView, 0, len(report.RSVPs))
	for i := range report.RSVPs {
		views = append(views, toRSVPView(&report.RSVPs[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rsvps": views, "summary": report.Summary})
}

type checkInRequest struct {
	UserID string `json:"userId" validate:"required"`
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermViewUsers); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := eventID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req checkInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	att, err := h.service.CheckIn(r.Context(), id, req.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"attendance": attendanceView{
		EventID:   att.EventID,
		UserID:    att.UserID,
		CheckedAt: att.CheckedAt,
	}})
}

func (h *Handler) undoCheckIn(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermViewUsers); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := eventID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.UndoCheckIn(r.Context(), id, chi.URLParam(r, "userID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) listAttendance(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermViewUsers); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := eventID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	list, err := h.service.ListAttendance(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views := make([]attendanceView, 0, len(list))
	for _, att := range list {
		views = append(views, attendanceView{EventID: att.EventID, UserID: att.UserID, CheckedAt: att.CheckedAt})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"attendance": views})
}

func (h *Handler) roster(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermViewUsers); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := eventID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	roster, err := h.service.GetRoster(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	rsvpViews := make([]rsvpView, 0, len(roster.RSVPs))
	for i := range roster.RSVPs {
		rsvpViews = append(rsvpViews, toRSVPView(&roster.RSVPs[i]))
	}
	attViews := make([]attendanceView, 0, len(roster.Attendance))
	for _, att := range roster.Attendance {
		attViews = append(attViews, attendanceView{EventID: att.EventID, UserID: att.UserID, CheckedAt: att.CheckedAt})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"event":      toEventView(roster.Event),
		"rsvps":      rsvpViews,
		"summary":    roster.Summary,
		"attendance": attViews,
	})
}
