package admin

import (
	"net/http"

	"github.com/evn/cleanops/internal/pkg/response"
	"go.uber.org/zap"
)

// ActiveShifts возвращает активные смены всех сотрудников из Redis.
func (h *Handler) ActiveShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.activity.List(r.Context())
	if err != nil {
		h.logger.Error("list active shifts failed", zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Activity store error")
		return
	}
	response.RespondWithJSON(w, http.StatusOK, shifts)
}
