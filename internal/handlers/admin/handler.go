// handlers/admin/handler.go
package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/evn/cleanops/internal/repositories"
	"github.com/evn/cleanops/internal/services/activity"
	"github.com/evn/cleanops/internal/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Handler - админские ручки: живая активность, отчёты, управление
// пользователями и принудительное завершение смен.
type Handler struct {
	users    *repositories.UserRepository
	shifts   *repositories.ShiftRepository
	activity *activity.Store
	registry *session.Registry
	now      func() time.Time
	changed  func()
	logger   *zap.Logger
}

func NewHandler(
	users *repositories.UserRepository,
	shifts *repositories.ShiftRepository,
	live *activity.Store,
	registry *session.Registry,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		users:    users,
		shifts:   shifts,
		activity: live,
		registry: registry,
		now:      time.Now,
		logger:   logger,
	}
}

// OnActivityChange вызывается, когда ручка сама меняет живую активность.
func (h *Handler) OnActivityChange(fn func()) *Handler {
	h.changed = fn
	return h
}

func (h *Handler) activityChanged() {
	if h.changed != nil {
		h.changed()
	}
}

func userIDParam(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "userID"))
	return id, err == nil && id > 0
}

// dayRange разбирает дату YYYY-MM-DD в интервал [начало дня, следующий день).
func dayRange(value string, fallback time.Time) (time.Time, time.Time, error) {
	day := time.Date(fallback.Year(), fallback.Month(), fallback.Day(), 0, 0, 0, 0, fallback.Location())
	if value != "" {
		parsed, err := time.ParseInLocation(dateLayout, value, fallback.Location())
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		day = parsed
	}
	return day, day.AddDate(0, 0, 1), nil
}
