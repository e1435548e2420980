// handlers/ws/ws.go
package ws

import (
	"encoding/json"
	"net/http"

	"github.com/evn/cleanops/internal/middleware"
	"github.com/evn/cleanops/internal/pkg/response"
	"github.com/evn/cleanops/internal/services/realtime"
	"github.com/evn/cleanops/internal/session"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type scanMessage struct {
	Data string `json:"data"`
}

// Handler подключает клиентов к хабу и передаёт входящие сообщения
// контроллеру сессии сотрудника.
type Handler struct {
	hub      *realtime.Hub
	registry *session.Registry
	logger   *zap.Logger
}

func NewHandler(hub *realtime.Hub, registry *session.Registry, logger *zap.Logger) *Handler {
	h := &Handler{hub: hub, registry: registry, logger: logger}
	hub.OnMessage(h.HandleMessage)
	return h
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		response.RespondWithError(w, http.StatusUnauthorized, "invalid user")
		return
	}

	ctrl, err := h.registry.Get(*user)
	if err != nil {
		response.RespondWithSessionError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Int("user_id", user.ID), zap.Error(err))
		return
	}

	client := realtime.NewClient(conn, user.ID, user.IsAdmin())
	// начальное состояние уходит первым, до любых событий хаба
	if snap, err := ctrl.State(); err == nil {
		h.hub.Send(client, realtime.MsgState, snap)
	}
	if !h.hub.Register(client) {
		conn.Close()
		return
	}
	go h.hub.ReadPump(client)
	go h.hub.WritePump(client)
}

// OnlineUsers - сотрудники с открытым соединением.
func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	response.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user_ids": h.hub.ConnectedUsers(),
	})
}

// HandleMessage обрабатывает scan и scanner.close от клиента.
func (h *Handler) HandleMessage(client *realtime.Client, env realtime.Envelope) {
	ctrl, ok := h.registry.Lookup(client.UserID)
	if !ok {
		return
	}
	log := h.logger.With(zap.Int("user_id", client.UserID), zap.String("type", env.Type))

	switch env.Type {
	case realtime.MsgScan:
		var msg scanMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			log.Debug("invalid scan payload", zap.Error(err))
			return
		}
		handled, err := ctrl.Scan(msg.Data)
		if err != nil {
			log.Warn("scan failed", zap.Error(err))
			return
		}
		if !handled {
			log.Debug("scan dropped")
		}
	case realtime.MsgScannerClose:
		if err := ctrl.CloseScanner(); err != nil {
			log.Warn("close scanner failed", zap.Error(err))
		}
	default:
		log.Debug("unknown websocket message")
	}
}
