package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evn/cleanops/internal/models"
	"github.com/evn/cleanops/internal/session"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func readEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case data := <-c.Send:
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return Envelope{}
	}
}

func TestHub_SendToUser(t *testing.T) {
	hub := startHub(t)
	anna1, anna2, oleg := NewClient(nil, 1, false), NewClient(nil, 1, false), NewClient(nil, 2, false)
	for _, c := range []*Client{anna1, anna2, oleg} {
		require.True(t, hub.Register(c))
	}
	assert.Eventually(t, func() bool { return hub.Connected(1) && hub.Connected(2) }, time.Second, 5*time.Millisecond)

	sent := hub.SendToUser(1, MsgNotification, session.Notification{Severity: session.SeverityInfo, Title: "hi"})
	assert.Equal(t, 2, sent)
	assert.Equal(t, MsgNotification, readEnvelope(t, anna1).Type)
	assert.Equal(t, MsgNotification, readEnvelope(t, anna2).Type)
	assert.Empty(t, oleg.Send)
	assert.Equal(t, []int{1, 2}, hub.ConnectedUsers())
}

func TestHub_SendBeforeRegister(t *testing.T) {
	hub := startHub(t)
	c := NewClient(nil, 3, false)

	assert.True(t, hub.Send(c, MsgState, session.Snapshot{UserID: 3}))
	assert.False(t, hub.Connected(3))
	assert.Equal(t, MsgState, readEnvelope(t, c).Type)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	c := NewClient(nil, 1, false)
	require.True(t, hub.Register(c))
	assert.Eventually(t, func() bool { return hub.Connected(1) }, time.Second, 5*time.Millisecond)

	hub.Unregister(c)
	assert.Eventually(t, func() bool { return !hub.Connected(1) }, time.Second, 5*time.Millisecond)
	_, ok := <-c.Send
	assert.False(t, ok)
	assert.Zero(t, hub.SendToUser(1, MsgState, nil))
}

func TestHub_BroadcastAdmins(t *testing.T) {
	hub := startHub(t)
	admin, worker := NewClient(nil, 10, true), NewClient(nil, 1, false)
	require.True(t, hub.Register(admin))
	require.True(t, hub.Register(worker))
	assert.Eventually(t, func() bool { return hub.Connected(10) && hub.Connected(1) }, time.Second, 5*time.Millisecond)

	hub.BroadcastAdmins(MsgActivity, []models.ActiveShift{{ShiftID: "s1", UserID: 1}})

	env := readEnvelope(t, admin)
	assert.Equal(t, MsgActivity, env.Type)
	var shifts []models.ActiveShift
	require.NoError(t, json.Unmarshal(env.Payload, &shifts))
	assert.Equal(t, "s1", shifts[0].ShiftID)
	assert.Never(t, func() bool { return len(worker.Send) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestHub_StoppedRejectsRegister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	assert.False(t, hub.Register(NewClient(nil, 1, false)))
	hub.Unregister(NewClient(nil, 1, false))
}

func TestUserPresenter(t *testing.T) {
	hub := startHub(t)
	c := NewClient(nil, 3, false)
	require.True(t, hub.Register(c))
	assert.Eventually(t, func() bool { return hub.Connected(3) }, time.Second, 5*time.Millisecond)

	p := hub.Presenter(3)
	p.Notify(session.Notification{Severity: session.SeverityWarning, Title: "No active shift"})
	p.ShowCleaningSummary(models.CleaningSummary{AreaName: "Lobby", Duration: "0h 1m"})
	p.StateChanged(session.Snapshot{UserID: 3})

	env := readEnvelope(t, c)
	assert.Equal(t, MsgNotification, env.Type)
	assert.Contains(t, string(env.Payload), "No active shift")

	env = readEnvelope(t, c)
	assert.Equal(t, MsgCleaningSummary, env.Type)
	assert.Contains(t, string(env.Payload), "0h 1m")

	env = readEnvelope(t, c)
	assert.Equal(t, MsgState, env.Type)
}

func TestRemoteCamera_NotConnected(t *testing.T) {
	hub := startHub(t)
	_, err := hub.Camera(5, time.Second).Acquire(context.Background())
	assert.ErrorIs(t, err, session.ErrCameraUnavailable)
}

// answerCamera отвечает на первый camera.acquire клиенту c.
func answerCamera(t *testing.T, hub *Hub, c *Client, stream, errText string) {
	t.Helper()
	go func() {
		data := <-c.Send
		var env Envelope
		if json.Unmarshal(data, &env) != nil || env.Type != MsgCameraAcquire {
			return
		}
		var req cameraRequest
		json.Unmarshal(env.Payload, &req)
		reply, _ := json.Marshal(cameraReply{RequestID: req.RequestID, Stream: stream, Error: errText})
		hub.resolveCamera(reply)
	}()
}

func TestRemoteCamera_AcquireAndRelease(t *testing.T) {
	hub := startHub(t)
	c := NewClient(nil, 5, false)
	require.True(t, hub.Register(c))
	assert.Eventually(t, func() bool { return hub.Connected(5) }, time.Second, 5*time.Millisecond)

	cam := hub.Camera(5, time.Second)
	answerCamera(t, hub, c, "track-1", "")

	h, err := cam.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.StreamHandle("track-1"), h)

	require.NoError(t, cam.Release(h))
	env := readEnvelope(t, c)
	assert.Equal(t, MsgCameraRelease, env.Type)
	assert.Contains(t, string(env.Payload), "track-1")
}

func TestRemoteCamera_ClientError(t *testing.T) {
	hub := startHub(t)
	c := NewClient(nil, 5, false)
	require.True(t, hub.Register(c))
	assert.Eventually(t, func() bool { return hub.Connected(5) }, time.Second, 5*time.Millisecond)

	answerCamera(t, hub, c, "", "NotAllowedError")
	_, err := hub.Camera(5, time.Second).Acquire(context.Background())
	assert.ErrorIs(t, err, session.ErrCameraUnavailable)
	assert.ErrorContains(t, err, "NotAllowedError")
}

func TestRemoteCamera_Timeout(t *testing.T) {
	hub := startHub(t)
	c := NewClient(nil, 5, false)
	require.True(t, hub.Register(c))
	assert.Eventually(t, func() bool { return hub.Connected(5) }, time.Second, 5*time.Millisecond)

	_, err := hub.Camera(5, 20*time.Millisecond).Acquire(context.Background())
	assert.ErrorIs(t, err, session.ErrCameraUnavailable)

	hub.pendingMu.Lock()
	assert.Empty(t, hub.pending)
	hub.pendingMu.Unlock()
}

func TestPumps_OverWebsocket(t *testing.T) {
	hub := NewHub(zap.NewNop())
	var mu sync.Mutex
	var received []Envelope
	hub.OnMessage(func(c *Client, env Envelope) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, env)
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, 9, false)
		hub.Register(client)
		go hub.ReadPump(client)
		go hub.WritePump(client)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"scan","payload":{"data":"{}"}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1 && received[0].Type == MsgScan
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return hub.Connected(9) }, time.Second, 5*time.Millisecond)
	hub.SendToUser(9, MsgState, session.Snapshot{UserID: 9})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, MsgState, env.Type)

	conn.Close()
	assert.Eventually(t, func() bool { return !hub.Connected(9) }, time.Second, 5*time.Millisecond)
}
