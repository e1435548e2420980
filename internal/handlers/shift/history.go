package shift

import (
	"net/http"
	"strconv"

	"github.com/evn/cleanops/internal/middleware"
	"github.com/evn/cleanops/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ListShifts - сохранённые смены текущего сотрудника, новые первыми.
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		response.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.RespondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	shifts, err := h.shifts.ListShiftsByUser(r.Context(), user.ID, limit)
	if err != nil {
		h.logger.Error("list shifts failed", zap.Int("user_id", user.ID), zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	response.RespondWithJSON(w, http.StatusOK, shifts)
}

func (h *Handler) ListCleanings(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		response.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	shiftID := chi.URLParam(r, "id")
	if shiftID == "" {
		response.RespondWithError(w, http.StatusBadRequest, "Shift ID is required")
		return
	}

	cleanings, err := h.shifts.ListCleaningsByShift(r.Context(), user.ID, shiftID)
	if err != nil {
		h.logger.Error("list cleanings failed", zap.String("shift_id", shiftID), zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	response.RespondWithJSON(w, http.StatusOK, cleanings)
}
