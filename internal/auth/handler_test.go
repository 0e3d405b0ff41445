package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/koinonia-app/koinonia/internal/auth"
	"github.com/koinonia-app/koinonia/internal/shared"
	_ "github.com/koinonia-app/koinonia/testing"
)

func newAuthRouter(t *testing.T, repo auth.Repository) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo, nil), sessionManager, "https://koinonia.test")

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(req.Context(), sess)
			req = req.WithContext(ctx)
			// Commit before the handler writes so the cookie lands in the
			// response headers, mirroring the app middleware.
			wrapped := &committingWriter{ResponseWriter: w, commit: func() {
				require.NoError(t, sessionManager.Commit(ctx, w, req, sess))
			}}
			next.ServeHTTP(wrapped, req)
			wrapped.flush()
		})
	})
	handler.MountRoutes(r)
	return r, sessionManager
}

type committingWriter struct {
	http.ResponseWriter
	commit    func()
	committed bool
}

func (w *committingWriter) WriteHeader(statusCode int) {
	w.flush()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *committingWriter) Write(data []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(data)
}

func (w *committingWriter) flush() {
	if !w.committed {
		w.committed = true
		w.commit()
	}
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestLoginEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "anna@church.test", "Str0ng#pass")
	router, _ := newAuthRouter(t, repo)

	res := postJSON(t, router, "/login", `{"email":"anna@church.test","password":"Str0ng#pass"}`)
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Success bool `json:"success"`
		User    struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, "anna@church.test", body.User.Email)
	require.NotEmpty(t, res.Result().Cookies(), "expected a session cookie")

	// The session row was recorded for auditing.
	require.Len(t, repo.sessions, 1)
}

func TestLoginEndpointRejectsBadCredentials(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "anna@church.test", "Str0ng#pass")
	router, _ := newAuthRouter(t, repo)

	res := postJSON(t, router, "/login", `{"email":"anna@church.test","password":"Wrong#pass1"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Empty(t, repo.sessions)
}

func TestLoginEndpointValidatesInput(t *testing.T) {
	router, _ := newAuthRouter(t, newMemoryRepo())

	res := postJSON(t, router, "/login", `{"email":"not-an-email","password":"short"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	router, _ := newAuthRouter(t, repo)

	res := postJSON(t, router, "/register",
		`{"firstName":"Ben","lastName":"Okoro","email":"ben@church.test","password":"Str0ng#pass"}`)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, repo.accounts, "ben@church.test")
	require.NotEmpty(t, res.Result().Cookies())
}

func TestRegisterEndpointDuplicateEmailLooksLikeSuccess(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "ben@church.test", "Str0ng#pass")
	router, _ := newAuthRouter(t, repo)

	fresh := postJSON(t, router, "/register",
		`{"firstName":"New","lastName":"Person","email":"new@church.test","password":"Str0ng#pass"}`)
	dup := postJSON(t, router, "/register",
		`{"firstName":"Ben","lastName":"Okoro","email":"ben@church.test","password":"Str0ng#pass"}`)

	// Same status and body shape for taken and fresh emails.
	require.Equal(t, fresh.Code, dup.Code)
	var freshBody, dupBody map[string]any
	require.NoError(t, json.Unmarshal(fresh.Body.Bytes(), &freshBody))
	require.NoError(t, json.Unmarshal(dup.Body.Bytes(), &dupBody))
	require.Equal(t, freshBody, dupBody)

	// But no session was established for the duplicate.
	require.Len(t, repo.sessions, 1)
}

func TestForgotPasswordEndpointIsEnumerationSafe(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "anna@church.test", "Str0ng#pass")
	router, _ := newAuthRouter(t, repo)

	known := postJSON(t, router, "/forgot-password", `{"email":"anna@church.test"}`)
	unknown := postJSON(t, router, "/forgot-password", `{"email":"ghost@church.test"}`)

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	require.JSONEq(t, known.Body.String(), unknown.Body.String())
}

func TestResetPasswordEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	acct := seedAccount(t, repo, "anna@church.test", "Old#pass99")
	repo.tokens["tok-valid"] = &auth.PasswordResetToken{
		ID:        "reset_1",
		UserID:    acct.ID,
		Token:     "tok-valid",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	router, _ := newAuthRouter(t, repo)

	res := postJSON(t, router, "/reset-password", `{"token":"tok-valid","password":"New#pass42"}`)
	require.Equal(t, http.StatusOK, res.Code)

	svc := auth.NewService(repo, nil)
	_, err := svc.Authenticate(context.Background(), "anna@church.test", "New#pass42")
	require.NoError(t, err)
}

func TestResetPasswordEndpointRejectsBadToken(t *testing.T) {
	router, _ := newAuthRouter(t, newMemoryRepo())

	res := postJSON(t, router, "/reset-password", `{"token":"tok-missing","password":"New#pass42"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLogoutEndpointDestroysSession(t *testing.T) {
	repo := newMemoryRepo()
	seedAccount(t, repo, "anna@church.test", "Str0ng#pass")
	router, sessionManager := newAuthRouter(t, repo)

	login := postJSON(t, router, "/login", `{"email":"anna@church.test","password":"Str0ng#pass"}`)
	require.Equal(t, http.StatusOK, login.Code)
	cookies := login.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Empty(t, repo.sessions)

	// The cleared cookie has an immediate expiry.
	var cleared bool
	for _, c := range res.Result().Cookies() {
		if c.Name == sessionManager.CookieName() && c.MaxAge < 0 {
			cleared = true
		}
	}
	require.True(t, cleared)
}
