package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evn/cleanops/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRespondWithError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, http.StatusBadRequest, "Invalid request")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Invalid request", decode(t, rec)["error"])
}

func TestRespondWithSessionError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithSessionError(rec, fmt.Errorf("end shift: %w", session.ErrCleaningInProgress))
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "cleaning_in_progress", body["code"])
	assert.Equal(t, session.ErrCleaningInProgress.Message, body["error"])

	rec = httptest.NewRecorder()
	RespondWithSessionError(rec, session.ErrControllerStopped)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	RespondWithSessionError(rec, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
