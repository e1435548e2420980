// handlers/shift/handler.go
package shift

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evn/cleanops/internal/middleware"
	"github.com/evn/cleanops/internal/pkg/response"
	"github.com/evn/cleanops/internal/repositories"
	"github.com/evn/cleanops/internal/session"
	"go.uber.org/zap"
)

// Handler - HTTP-обёртка над контроллером сессии сотрудника.
type Handler struct {
	registry  *session.Registry
	shifts    *repositories.ShiftRepository
	uploadDir string
	now       func() time.Time
	logger    *zap.Logger
}

func NewHandler(registry *session.Registry, shifts *repositories.ShiftRepository, uploadDir string, logger *zap.Logger) *Handler {
	return &Handler{
		registry:  registry,
		shifts:    shifts,
		uploadDir: uploadDir,
		now:       time.Now,
		logger:    logger,
	}
}

func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		response.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return nil, false
	}
	c, err := h.registry.Get(*user)
	if err != nil {
		response.RespondWithSessionError(w, err)
		return nil, false
	}
	return c, true
}

// State возвращает текущее состояние сессии.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	snap, err := c.State()
	if err != nil {
		response.RespondWithSessionError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, snap)
}

func (h *Handler) StartShift(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, c *session.Controller) error {
		return c.StartShift(ctx)
	})
}

func (h *Handler) EndShift(w http.ResponseWriter, r *http.Request) {
	withScan := scanParam(r)
	h.transition(w, r, func(ctx context.Context, c *session.Controller) error {
		return c.EndShift(ctx, withScan)
	})
}

func (h *Handler) PauseShift(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(_ context.Context, c *session.Controller) error {
		return c.PauseShift()
	})
}

func (h *Handler) ResumeShift(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(_ context.Context, c *session.Controller) error {
		return c.ResumeShift()
	})
}

func (h *Handler) StartCleaning(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, c *session.Controller) error {
		return c.StartCleaning(ctx)
	})
}

func (h *Handler) EndCleaning(w http.ResponseWriter, r *http.Request) {
	withScan := scanParam(r)
	h.transition(w, r, func(ctx context.Context, c *session.Controller) error {
		return c.EndCleaning(ctx, withScan)
	})
}

func (h *Handler) PauseCleaning(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(_ context.Context, c *session.Controller) error {
		return c.PauseCleaning()
	})
}

func (h *Handler) ResumeCleaning(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(_ context.Context, c *session.Controller) error {
		return c.ResumeCleaning()
	})
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request data")
		return
	}
	h.transition(w, r, func(_ context.Context, c *session.Controller) error {
		return c.AddCleaningNote(req.Note)
	})
}

type scanRequest struct {
	Data string `json:"data"`
}

// Scan передаёт сырой результат сканирования в маршрутизатор сканов.
// handled=false означает, что скан отброшен (сканер закрыт или занят).
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request data")
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	handled, err := c.Scan(req.Data)
	if err != nil {
		response.RespondWithSessionError(w, err)
		return
	}
	h.respondState(w, c, map[string]interface{}{"handled": handled})
}

func (h *Handler) CloseScanner(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(_ context.Context, c *session.Controller) error {
		return c.CloseScanner()
	})
}

type confirmationRequest struct {
	ID string `json:"id"`
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request data")
		return
	}
	h.transition(w, r, func(_ context.Context, c *session.Controller) error {
		return c.Confirm(req.ID)
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req confirmationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request data")
		return
	}
	h.transition(w, r, func(_ context.Context, c *session.Controller) error {
		return c.Cancel(req.ID)
	})
}

type simulateRequest struct {
	AreaID   string `json:"area_id"`
	AreaName string `json:"area_name"`
	Type     string `json:"type"`
	Scan     bool   `json:"scan"`
}

// SimulateQR кодирует тестовый QR. При scan=true код сразу подаётся
// в открытый сканер, как если бы его считала камера.
func (h *Handler) SimulateQR(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request data")
		return
	}

	var kind session.PayloadKind
	switch strings.ToLower(req.Type) {
	case "shift":
		kind = session.KindShift
	case "cleaning":
		kind = session.KindCleaning
	default:
		response.RespondWithError(w, http.StatusBadRequest, "Type must be Shift or Cleaning")
		return
	}

	data, err := session.EncodePayload(req.AreaID, req.AreaName, kind, h.now())
	if err != nil {
		response.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Scan {
		response.RespondWithJSON(w, http.StatusOK, map[string]string{"data": data})
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	handled, err := c.Scan(data)
	if err != nil {
		response.RespondWithSessionError(w, err)
		return
	}
	h.respondState(w, c, map[string]interface{}{"data": data, "handled": handled})
}

// transition выполняет операцию контроллера и отвечает состоянием
// вместе с next_view для переключения вкладки.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, *session.Controller) error) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), c); err != nil {
		response.RespondWithSessionError(w, err)
		return
	}
	h.respondState(w, c, nil)
}

func (h *Handler) respondState(w http.ResponseWriter, c *session.Controller, extra map[string]interface{}) {
	snap, err := c.State()
	if err != nil {
		response.RespondWithSessionError(w, err)
		return
	}
	body := map[string]interface{}{
		"state":     snap,
		"next_view": NextView(snap),
	}
	for k, v := range extra {
		body[k] = v
	}
	response.RespondWithJSON(w, http.StatusOK, body)
}

func scanParam(r *http.Request) bool {
	v := r.URL.Query().Get("scan")
	if v == "" {
		return true
	}
	scan, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return scan
}
