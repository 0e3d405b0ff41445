package events_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/koinonia-app/koinonia/internal/authz"
	"github.com/koinonia-app/koinonia/internal/events"
	"github.com/koinonia-app/koinonia/internal/identity"
	"github.com/koinonia-app/koinonia/internal/shared"
	_ "github.com/koinonia-app/koinonia/testing"
)

type staticRoleSource struct {
	roles map[string][]authz.RoleRef
}

func (s *staticRoleSource) RolesForUser(_ context.Context, userID string) ([]authz.RoleRef, error) {
	return s.roles[userID], nil
}

func (s *staticRoleSource) GroupRole(_ context.Context, _ string, _ int64) (authz.GroupRole, error) {
	return "", nil
}

// newEventsRouter mounts the calendar handler behind a middleware that binds
// the given user's session to every request.
func newEventsRouter(t *testing.T, repo events.Repository, roles *staticRoleSource, userID string) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := identity.NewGuard(identity.NewGateway(roles), logger)
	handler := events.NewHandler(logger, events.NewService(repo), guard)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess := &shared.Session{}
			sess.SetUser(userID)
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	handler.MountRoutes(r)
	return r
}

func TestGetEventCanManageFlag(t *testing.T) {
	repo := newMemoryRepo()
	event := &events.Event{
		Title:     "Harvest Dinner",
		StartTime: time.Now().Add(48 * time.Hour),
		CreatorID: "user_creator",
	}
	require.NoError(t, repo.Create(context.Background(), event))

	roles := &staticRoleSource{roles: map[string][]authz.RoleRef{
		"user_creator": {{ID: 1, Name: authz.RoleMember}},
		"user_pastor":  {{ID: 2, Name: authz.RolePastor}},
		"user_member":  {{ID: 1, Name: authz.RoleMember}},
	}}

	fetch := func(userID string) map[string]json.RawMessage {
		t.Helper()
		router := newEventsRouter(t, repo, roles, userID)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	canManage := func(body map[string]json.RawMessage) bool {
		t.Helper()
		var flag bool
		require.NoError(t, json.Unmarshal(body["canManage"], &flag))
		return flag
	}

	// The creator manages their own event regardless of role.
	require.True(t, canManage(fetch("user_creator")))
	// Pastors manage any event.
	require.True(t, canManage(fetch("user_pastor")))
	// Plain members only read.
	body := fetch("user_member")
	require.False(t, canManage(body))

	var view struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(body["event"], &view))
	require.Equal(t, "Harvest Dinner", view.Title)
}
