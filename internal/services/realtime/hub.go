// services/realtime/hub.go
package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Типы сообщений.
const (
	MsgNotification    = "notification"
	MsgCleaningSummary = "cleaning.summary"
	MsgState           = "state"
	MsgActivity        = "activity"
	MsgCameraAcquire   = "camera.acquire"
	MsgCameraRelease   = "camera.release"

	// входящие
	MsgCameraReady  = "camera.ready"
	MsgScan         = "scan"
	MsgScannerClose = "scanner.close"
)

const (
	pingInterval = 30 * time.Second
	readLimit    = 64 * 1024
)

type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageHandler обрабатывает входящее сообщение клиента.
type MessageHandler func(c *Client, env Envelope)

// Hub держит websocket-клиентов: у сотрудника может быть несколько вкладок,
// админы дополнительно получают сводку активности.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex

	onMessage MessageHandler

	pendingMu sync.Mutex
	pending   map[string]chan cameraReply

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
		pending:    make(map[string]chan cameraReply),
		logger:     logger,
	}
}

// OnMessage задаёт обработчик входящих сообщений. Вызывать до Run.
func (h *Hub) OnMessage(fn MessageHandler) {
	h.onMessage = fn
}

// Register возвращает false, если хаб уже остановлен.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client registered",
				zap.Int("user_id", client.UserID),
				zap.Bool("admin", client.Admin),
			)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if client.Admin {
					h.deliver(client, message)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// SendToUser отправляет сообщение во все вкладки сотрудника.
// Возвращает число клиентов, которым оно ушло.
func (h *Hub) SendToUser(userID int, msgType string, payload interface{}) int {
	data, err := encode(msgType, payload)
	if err != nil {
		h.logger.Error("failed to encode message", zap.String("type", msgType), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for client := range h.clients {
		if client.UserID == userID && h.deliver(client, data) {
			sent++
		}
	}
	return sent
}

// Send кладёт сообщение в очередь одного клиента. Клиент может быть
// ещё не зарегистрирован.
func (h *Hub) Send(client *Client, msgType string, payload interface{}) bool {
	data, err := encode(msgType, payload)
	if err != nil {
		h.logger.Error("failed to encode message", zap.String("type", msgType), zap.Error(err))
		return false
	}
	return h.deliver(client, data)
}

// BroadcastAdmins рассылает сообщение всем админским клиентам.
func (h *Hub) BroadcastAdmins(msgType string, payload interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.logger.Error("failed to encode message", zap.String("type", msgType), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("admin broadcast queue full, message dropped", zap.String("type", msgType))
	}
}

func (h *Hub) Connected(userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.UserID == userID {
			return true
		}
	}
	return false
}

// ConnectedUsers - id сотрудников, у которых открыт хотя бы один клиент.
func (h *Hub) ConnectedUsers() []int {
	h.mu.RLock()
	seen := make(map[int]bool)
	for client := range h.clients {
		seen[client.UserID] = true
	}
	h.mu.RUnlock()

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// deliver не блокируется: медленный клиент теряет сообщение.
func (h *Hub) deliver(client *Client, data []byte) bool {
	select {
	case client.Send <- data:
		return true
	default:
		h.logger.Warn("websocket client send buffer full", zap.Int("user_id", client.UserID))
		return false
	}
}

func (h *Hub) ReadPump(client *Client) {
	defer func() {
		h.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(readLimit)
	client.Conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Info("websocket closed", zap.Int("user_id", client.UserID), zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			h.logger.Debug("invalid websocket message", zap.Int("user_id", client.UserID), zap.Error(err))
			continue
		}

		if env.Type == MsgCameraReady {
			h.resolveCamera(env.Payload)
			continue
		}
		if h.onMessage != nil {
			// обработчик может ждать цикл контроллера, а тот ждёт camera.ready из этого же соединения
			go h.onMessage(client, env)
		}
	}
}

func (h *Hub) WritePump(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encode(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
