package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/evn/cleanops/config"
	"github.com/evn/cleanops/internal/models"
	"github.com/evn/cleanops/internal/services/activity"
	authService "github.com/evn/cleanops/internal/services/auth"
	"github.com/evn/cleanops/internal/services/realtime"
	"github.com/evn/cleanops/internal/session"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type testApp struct {
	*App
	server *httptest.Server
	mock   sqlmock.Sqlmock
	redis  *redis.Client
	mr     *miniredis.Miniredis
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{
		JwtSecret:      testSecret,
		TickInterval:   time.Second,
		PersistTimeout: time.Second,
		ActiveShiftTTL: time.Hour,
		CameraTimeout:  200 * time.Millisecond,
		UploadDir:      t.TempDir(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	app := Setup(ctx, cfg, conn, client, zap.NewNop())
	go app.Hub.Run(ctx)
	t.Cleanup(app.Registry.Shutdown)

	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)
	return &testApp{App: app, server: srv, mock: mock, redis: client, mr: mr}
}

func (a *testApp) token(t *testing.T, id int, username, role string) string {
	t.Helper()
	access, _, err := authService.NewJWTService(testSecret, a.redis).GenerateToken(context.Background(), id, username, role)
	require.NoError(t, err)
	return access
}

func (a *testApp) request(t *testing.T, method, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)
	a.mock.ExpectPing()

	resp := a.request(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	a.mr.Close()
	a.mock.ExpectPing()
	resp = a.request(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSessionRequiresToken(t *testing.T) {
	a := newTestApp(t)

	resp := a.request(t, http.MethodGet, "/api/session", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = a.request(t, http.MethodGet, "/api/session", a.token(t, 7, "anna", models.RoleWorker))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap session.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, 7, snap.UserID)
}

func TestStartShift_NoCameraFallsBackToConfirmation(t *testing.T) {
	a := newTestApp(t)
	a.mock.ExpectQuery("FROM shifts").WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	resp := a.request(t, http.MethodPost, "/api/shift/start", a.token(t, 7, "anna", models.RoleWorker))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		State session.Snapshot `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.State.Scanner.Open)
	require.NotNil(t, body.State.Confirmation)
	assert.NoError(t, a.mock.ExpectationsWereMet())
}

func TestAdminRoutes(t *testing.T) {
	a := newTestApp(t)

	resp := a.request(t, http.MethodGet, "/api/admin/active-shifts", a.token(t, 7, "anna", models.RoleWorker))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = a.request(t, http.MethodGet, "/api/admin/active-shifts", a.token(t, 1, "boss", models.RoleAdmin))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocket_TokenFromQuery(t *testing.T) {
	a := newTestApp(t)
	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws?jwt=" + a.token(t, 7, "anna", models.RoleWorker)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env realtime.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, realtime.MsgState, env.Type)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(a.server.URL, "http")+"/ws", nil)
	assert.Error(t, err)
}

func TestActivitySweepLoop(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := activity.NewStore(client, time.Minute)

	ctx := context.Background()
	require.NoError(t, store.MarkActive(ctx, models.ActiveShift{ShiftID: "s1", UserID: 7}))
	mr.FastForward(2 * time.Minute)

	published := make(chan struct{}, 1)
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ActivitySweepLoop(loopCtx, store, time.Hour, func() { published <- struct{}{} }, zap.NewNop())
	}()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("sweep did not publish")
	}
	cancel()
	<-done

	assert.False(t, mr.Exists("active_shifts"))
}

func TestEnsureUploadDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, EnsureUploadDirs(root))
	assert.DirExists(t, root+"/cleanings")
}
