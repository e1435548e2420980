package shift

import (
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/evn/cleanops/internal/pkg/response"
	"go.uber.org/zap"
)

const maxImageSize = 5 << 20

// generateSafeFilename генерирует уникальное имя файла для фото уборки
func generateSafeFilename(userID int, ext string) string {
	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return fmt.Sprintf("cleaning_%d_%d%s", userID, time.Now().UnixNano(), ext)
	}
	return fmt.Sprintf("cleaning_%d_%x%s", userID, randomBytes, ext)
}

// UploadImage сохраняет фото и прикрепляет ссылку к текущей уборке.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+1024)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "File too large or malformed")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Image is required")
		return
	}
	defer file.Close()

	buff := make([]byte, 512)
	n, err := file.Read(buff)
	if err != nil && err != io.EOF {
		response.RespondWithError(w, http.StatusBadRequest, "Failed to read image")
		return
	}
	contentType := http.DetectContentType(buff[:n])
	if contentType != "image/jpeg" && contentType != "image/png" {
		response.RespondWithError(w, http.StatusBadRequest, "Only JPEG and PNG images allowed")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		response.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}

	ext := ".jpg"
	if contentType == "image/png" {
		ext = ".png"
	}

	snap, err := c.State()
	if err != nil {
		response.RespondWithSessionError(w, err)
		return
	}
	dir := filepath.Join(h.uploadDir, "cleanings")
	if err := os.MkdirAll(dir, 0755); err != nil {
		h.logger.Error("failed to create uploads dir", zap.String("dir", dir), zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}
	filename := generateSafeFilename(snap.UserID, ext)
	fullPath := filepath.Join(dir, filename)

	out, err := os.Create(fullPath)
	if err != nil {
		h.logger.Error("failed to create image file", zap.String("path", fullPath), zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Failed to save image")
		return
	}
	_, err = io.Copy(out, file)
	out.Close()
	if err != nil {
		os.Remove(fullPath)
		h.logger.Error("failed to write image file", zap.String("path", fullPath), zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Failed to save image")
		return
	}

	ref := "/uploads/cleanings/" + filename
	if err := c.AttachCleaningImage(ref); err != nil {
		os.Remove(fullPath)
		response.RespondWithSessionError(w, err)
		return
	}
	h.respondState(w, c, map[string]interface{}{"image": ref})
}
