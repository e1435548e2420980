package admin

import (
	"net/http"

	"github.com/evn/cleanops/internal/pkg/response"
	"go.uber.org/zap"
)

// EndedShifts - смены, завершённые за день ?date=YYYY-MM-DD (по умолчанию сегодня).
func (h *Handler) EndedShifts(w http.ResponseWriter, r *http.Request) {
	from, to, err := dayRange(r.URL.Query().Get("date"), h.now())
	if err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	shifts, err := h.shifts.ListEndedShifts(r.Context(), from, to)
	if err != nil {
		h.logger.Error("list ended shifts failed", zap.Time("from", from), zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	response.RespondWithJSON(w, http.StatusOK, shifts)
}
