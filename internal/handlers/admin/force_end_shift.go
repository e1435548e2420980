package admin

import (
	"errors"
	"net/http"

	"github.com/evn/cleanops/internal/models"
	"github.com/evn/cleanops/internal/pkg/response"
	"github.com/evn/cleanops/internal/repositories"
	"github.com/evn/cleanops/internal/session"
	"go.uber.org/zap"
)

// ForceEndShift закрывает смену сотрудника. Если у сотрудника есть
// живой контроллер, смена закрывается через него (сотрудник получит
// уведомление), иначе открытые записи закрываются прямо в базе.
func (h *Handler) ForceEndShift(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if c, ok := h.registry.Lookup(userID); ok {
		shift, err := c.ForceEnd()
		switch {
		case err == nil:
			h.logger.Info("shift force-ended", zap.Int("user_id", userID), zap.String("shift_id", shift.ID))
			respondEnded(w, shift)
			return
		case errors.Is(err, session.ErrNoActiveShift), errors.Is(err, session.ErrControllerStopped):
			// в памяти смены нет, но в базе она могла остаться
		default:
			response.RespondWithSessionError(w, err)
			return
		}
	}

	shift, err := h.shifts.CloseOpenShift(r.Context(), userID, h.now())
	if errors.Is(err, repositories.ErrNoOpenShift) {
		response.RespondWithError(w, http.StatusNotFound, "No active shift found for the user")
		return
	}
	if err != nil {
		h.logger.Error("force end failed", zap.Int("user_id", userID), zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if err := h.activity.MarkEnded(r.Context(), userID); err != nil {
		h.logger.Warn("failed to clear activity", zap.Int("user_id", userID), zap.Error(err))
	}
	h.activityChanged()

	h.logger.Info("shift force-ended in database", zap.Int("user_id", userID), zap.String("shift_id", shift.ID))
	respondEnded(w, shift)
}

func respondEnded(w http.ResponseWriter, shift *models.Shift) {
	response.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Shift ended",
		"shift_id":    shift.ID,
		"worked_time": models.FormatDuration(shift.DurationSeconds),
	})
}
