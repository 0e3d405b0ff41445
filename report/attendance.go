package report

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/koinonia-app/koinonia/internal/authz"
	"github.com/koinonia-app/koinonia/internal/events"
	"github.com/koinonia-app/koinonia/internal/identity"
	"github.com/koinonia-app/koinonia/internal/members"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

// MemberDirectory resolves member profiles for display names.
type MemberDirectory interface {
	Get(ctx context.Context, id string) (*members.Member, error)
}

// Handler manages report endpoints.
type Handler struct {
	client  *Client
	events  *events.Service
	members MemberDirectory
	guard   *identity.Guard
	logger  *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, eventService *events.Service, directory MemberDirectory, guard *identity.Guard, logger *slog.Logger) *Handler {
	return &Handler{client: client, events: eventService, members: directory, guard: guard, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/events/{id}/attendance.pdf", h.attendanceSheet)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) attendanceSheet(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermViewUsers); err != nil {
		httpx.RespondError(w, err)
		return
	}
	eventID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	roster, err := h.events.GetRoster(r.Context(), eventID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	pdf, err := h.client.RenderHTML(r.Context(), h.attendanceHTML(r.Context(), roster))
	if err != nil {
		h.logger.Error("render attendance pdf", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("inline; filename=attendance-event-%d.pdf", eventID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) attendanceHTML(ctx context.Context, roster *events.Roster) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Attendance Sheet</title></head><body>")
	b.WriteString("<h1>" + html.EscapeString(roster.Event.Title) + "</h1>")
	b.WriteString("<p>" + roster.Event.StartTime.Format(time.RFC1123) + "</p>")
	b.WriteString(fmt.Sprintf("<p>Attending: %d (+%d guests), maybe: %d, checked in: %d</p>",
		roster.Summary.Attending, roster.Summary.AttendingGuests,
		roster.Summary.Maybe, len(roster.Attendance)))
	b.WriteString("<table border=\"1\" cellpadding=\"4\"><tr><th>Name</th><th>Checked in at</th></tr>")
	for _, att := range roster.Attendance {
		name := att.UserID
		if member, err := h.members.Get(ctx, att.UserID); err == nil {
			name = member.FullName()
		}
		b.WriteString("<tr><td>" + html.EscapeString(name) + "</td><td>" +
			att.CheckedAt.Format("15:04") + "</td></tr>")
	}
	b.WriteString("</table></body></html>")
	return b.String()
}
