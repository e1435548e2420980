package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evn/cleanops/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type cameraRequest struct {
	RequestID string `json:"request_id"`
}

type cameraRelease struct {
	Stream string `json:"stream"`
}

type cameraReply struct {
	RequestID string `json:"request_id"`
	Stream    string `json:"stream"`
	Error     string `json:"error,omitempty"`
}

// RemoteCamera - камера в браузере сотрудника. Захват идёт через
// запрос camera.acquire и ответ camera.ready по websocket.
type RemoteCamera struct {
	hub     *Hub
	userID  int
	timeout time.Duration
}

func (h *Hub) Camera(userID int, timeout time.Duration) *RemoteCamera {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteCamera{hub: h, userID: userID, timeout: timeout}
}

func (c *RemoteCamera) Acquire(ctx context.Context) (session.StreamHandle, error) {
	if !c.hub.Connected(c.userID) {
		return "", session.ErrCameraUnavailable
	}

	reqID := uuid.NewString()
	replies := c.hub.expectCamera(reqID)
	defer c.hub.forgetCamera(reqID)

	if c.hub.SendToUser(c.userID, MsgCameraAcquire, cameraRequest{RequestID: reqID}) == 0 {
		return "", session.ErrCameraUnavailable
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case reply := <-replies:
		if reply.Error != "" {
			return "", fmt.Errorf("%w: %s", session.ErrCameraUnavailable, reply.Error)
		}
		if reply.Stream == "" {
			return "", fmt.Errorf("%w: empty stream id", session.ErrCameraUnavailable)
		}
		return session.StreamHandle(reply.Stream), nil
	case <-timer.C:
		return "", fmt.Errorf("%w: no reply from client", session.ErrCameraUnavailable)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Release не ждёт ответа: клиент останавливает поток сам, а если он
// отключился, поток уже закрыт браузером.
func (c *RemoteCamera) Release(h session.StreamHandle) error {
	c.hub.SendToUser(c.userID, MsgCameraRelease, cameraRelease{Stream: string(h)})
	return nil
}

func (h *Hub) expectCamera(reqID string) <-chan cameraReply {
	ch := make(chan cameraReply, 1)
	h.pendingMu.Lock()
	h.pending[reqID] = ch
	h.pendingMu.Unlock()
	return ch
}

func (h *Hub) forgetCamera(reqID string) {
	h.pendingMu.Lock()
	delete(h.pending, reqID)
	h.pendingMu.Unlock()
}

func (h *Hub) resolveCamera(payload json.RawMessage) {
	var reply cameraReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		h.logger.Debug("invalid camera reply", zap.Error(err))
		return
	}

	h.pendingMu.Lock()
	ch, ok := h.pending[reply.RequestID]
	delete(h.pending, reply.RequestID)
	h.pendingMu.Unlock()

	if !ok {
		h.logger.Debug("camera reply for unknown request", zap.String("request_id", reply.RequestID))
		return
	}
	ch <- reply
}
