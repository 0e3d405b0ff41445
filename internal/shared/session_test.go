package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "test_session", "secret", time.Hour, false)
}

func TestSessionRoundTrip(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, r)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	sess.SetUser("user_abc")
	sess.Set("theme", "dark")

	w := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, w, r, sess))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "test_session", cookies[0].Name)
	require.Equal(t, sess.ID, cookies[0].Value)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, r2)
	require.NoError(t, err)
	require.Equal(t, "user_abc", loaded.User())
	require.Equal(t, "dark", loaded.Get("theme"))
}

func TestSessionFlashIsOneShot(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, r)
	require.NoError(t, err)

	sess.AddFlash(FlashMessage{Kind: "success", Message: "saved"})
	w := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, w, r, sess))

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(w.Result().Cookies()[0])
	loaded, err := sm.Load(ctx, r2)
	require.NoError(t, err)

	msg := loaded.PopFlash()
	require.NotNil(t, msg)
	require.Equal(t, "saved", msg.Message)
	require.Nil(t, loaded.PopFlash())

	// The pop must persist so the flash does not reappear.
	w2 := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, w2, r2, loaded))

	r3 := httptest.NewRequest(http.MethodGet, "/", nil)
	r3.AddCookie(w.Result().Cookies()[0])
	again, err := sm.Load(ctx, r3)
	require.NoError(t, err)
	require.Nil(t, again.PopFlash())
}

func TestSessionDestroyClearsCookieAndStore(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, r)
	require.NoError(t, err)
	sess.SetUser("user_abc")

	w := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, w, r, sess))
	cookie := w.Result().Cookies()[0]

	sm.Destroy(sess)
	w2 := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, w2, r, sess))

	cleared := w2.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Equal(t, -1, cleared[0].MaxAge)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookie)
	loaded, err := sm.Load(ctx, r2)
	require.NoError(t, err)
	require.Empty(t, loaded.User())
}

func TestCSRFTokenVerifies(t *testing.T) {
	sm := newTestSessionManager(t)
	cm := NewCSRFManager("csrf-secret")
	ctx := context.Background()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, r)
	require.NoError(t, err)

	token, err := cm.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, cm.VerifyToken(ctx, sess, token))
	require.Error(t, cm.VerifyToken(ctx, sess, token+"x"))
}
