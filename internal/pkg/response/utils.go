// pkg/response/utils.go
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/evn/cleanops/internal/session"
)

// Универсальные ответы
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		code = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// RespondWithSessionError отвечает на ошибку операции контроллера:
// UserActionError - 409 с кодом и заголовком, остановленный контроллер - 503.
func RespondWithSessionError(w http.ResponseWriter, err error) {
	if uae, ok := session.AsUserActionError(err); ok {
		RespondWithJSON(w, http.StatusConflict, map[string]string{
			"error": uae.Message,
			"code":  uae.Code,
			"title": uae.Title,
		})
		return
	}
	if errors.Is(err, session.ErrControllerStopped) {
		RespondWithError(w, http.StatusServiceUnavailable, "Session is shutting down")
		return
	}
	RespondWithError(w, http.StatusInternalServerError, "Internal error")
}
