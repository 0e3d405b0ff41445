package timers

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

// Handler manages speaker timer endpoints.
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

// MountRoutes registers timer routes. Reading a timer by its shareable id
// needs no session, so a speaker can open the countdown link directly.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.remove)
	r.Get("/events/{eventID}", h.listForEvent)

	r.Post("/{id}/segments", h.addSegment)
	r.Patch("/segments/{segmentID}", h.updateSegment)
	r.Delete("/segments/{segmentID}", h.removeSegment)
}

type timerView struct {
	ID            string    `json:"id"`
	Label         string    `json:"label"`
	TotalDuration int       `json:"totalDuration"`
	EventID       int64     `json:"eventId"`
	SpeakerID     string    `json:"speakerId,omitempty"`
	OrganizerID   string    `json:"organizerId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toTimerView(t *Timer) timerView {
	return timerView{
		ID:            t.ID,
		Label:         t.Label,
		TotalDuration: t.TotalDuration,
		EventID:       t.EventID,
		SpeakerID:     t.SpeakerID,
		OrganizerID:   t.OrganizerID,
		CreatedAt:     t.CreatedAt,
	}
}

type segmentView struct {
	ID       int64  `json:"id"`
	TimerID  string `json:"timerId"`
	Label    string `json:"label"`
	Duration int    `json:"duration"`
	Position int    `json:"position"`
}

func toSegmentView(s *Segment) segmentView {
	return segmentView{ID: s.ID, TimerID: s.TimerID, Label: s.Label, Duration: s.Duration, Position: s.Position}
}

// canManage accepts the event-wide edit permission, the timer's organizer,
// or an admin.
func (h *Handler) canManage(r *http.Request, timer *Timer) error {
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		return err
	}
	if authz.IsAdmin(principal) ||
		authz.HasFellowshipPermission(principal, authz.PermEditAllEvents) ||
		(timer.OrganizerID != "" && timer.OrganizerID == principal.ID) {
		return nil
	}
	return httpx.ErrForbidden
}

type createTimerRequest struct {
	Label         string `json:"label" validate:"required,max=255"`
	TotalDuration int    `json:"totalDuration" validate:"required,gt=0"`
	EventID       int64  `json:"eventId" validate:"required,gt=0"`
	SpeakerID     string `json:"speakerId" validate:"omitempty,max=64"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, err := h.guard.RequireAnyFellowshipPermission(r.Context(),
		authz.PermCreateEvents, authz.PermEditAllEvents)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createTimerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	timer, err := h.service.Create(r.Context(), CreateInput{
		Label:         req.Label,
		TotalDuration: req.TotalDuration,
		EventID:       req.EventID,
		SpeakerID:     req.SpeakerID,
		OrganizerID:   principal.ID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"timer": toTimerView(timer)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.GetPlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	segments := make([]segmentView, 0, len(plan.Segments))
	for i := range plan.Segments {
		segments = append(segments, toSegmentView(&plan.Segments[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"timer":    toTimerView(plan.Timer),
		"segments": segments,
	})
}

func (h *Handler) listForEvent(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireUser(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	eventID, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	list, err := h.service.ListForEvent(r.Context(), eventID)
	if err != nil {
		h.logger.Error("list timers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]timerView, 0, len(list))
	for i := range list {
		views = append(views, toTimerView(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"timers": views})
}

type updateTimerRequest struct {
	Label         *string `json:"label" validate:"omitempty,max=255"`
	TotalDuration *int    `json:"totalDuration" validate:"omitempty,gt=0"`
	SpeakerID     *string `json:"speakerId" validate:"omitempty,max=64"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	timer, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.canManage(r, timer); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateTimerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	updated, err := h.service.Update(r.Context(), timer.ID, UpdateInput{
		Label:         req.Label,
		TotalDuration: req.TotalDuration,
		SpeakerID:     req.SpeakerID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"timer": toTimerView(updated)})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	timer, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.canManage(r, timer); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), timer.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

type segmentRequest struct {
	Label    string `json:"label" validate:"required,max=255"`
	Duration int    `json:"duration" validate:"required,gt=0"`
	Position int    `json:"position" validate:"omitempty,gt=0"`
}

func (h *Handler) addSegment(w http.ResponseWriter, r *http.Request) {
	timer, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.canManage(r, timer); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req segmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	segment, warning, err := h.service.AddSegment(r.Context(), timer.ID, SegmentInput{
		Label:    req.Label,
		Duration: req.Duration,
		Position: req.Position,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	body := map[string]any{"segment": toSegmentView(segment)}
	if warning != "" {
		body["warning"] = warning
	}
	httpx.JSON(w, http.StatusCreated, body)
}

type updateSegmentRequest struct {
	Label    *string `json:"label" validate:"omitempty,max=255"`
	Duration *int    `json:"duration" validate:"omitempty,gt=0"`
	Position *int    `json:"position" validate:"omitempty,gt=0"`
}

func (h *Handler) updateSegment(w http.ResponseWriter, r *http.Request) {
	segmentID, err := strconv.ParseInt(chi.URLParam(r, "segmentID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	segment, err := h.service.GetSegment(r.Context(), segmentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	timer, err := h.service.Get(r.Context(), segment.TimerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.canManage(r, timer); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateSegmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	updated, warning, err := h.service.UpdateSegment(r.Context(), segmentID, UpdateSegmentInput{
		Label:    req.Label,
		Duration: req.Duration,
		Position: req.Position,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	body := map[string]any{"segment": toSegmentView(updated)}
	if warning != "" {
		body["warning"] = warning
	}
	httpx.JSON(w, http.StatusOK, body)
}

func (h *Handler) removeSegment(w http.ResponseWriter, r *http.Request) {
	segmentID, err := strconv.ParseInt(chi.URLParam(r, "segmentID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	segment, err := h.service.GetSegment(r.Context(), segmentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	timer, err := h.service.Get(r.Context(), segment.TimerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.canManage(r, timer); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteSegment(r.Context(), segmentID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}
