// handlers/auth/auth.go
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/evn/cleanops/internal/middleware"
	"github.com/evn/cleanops/internal/models"
	"github.com/evn/cleanops/internal/pkg/response"
	"github.com/evn/cleanops/internal/repositories"
	services "github.com/evn/cleanops/internal/services/auth"
	"go.uber.org/zap"
)

type AuthHandler struct {
	users      *repositories.UserRepository
	jwtService *services.JWTService
	logger     *zap.Logger
}

func NewAuthHandler(users *repositories.UserRepository, jwtService *services.JWTService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:      users,
		jwtService: jwtService,
		logger:     logger,
	}
}

func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request data")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		response.RespondWithError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.users.FindByUsername(r.Context(), req.Username)
	if errors.Is(err, repositories.ErrUserNotFound) {
		response.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		h.logger.Error("login lookup failed", zap.String("username", req.Username), zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !services.CheckPasswordHash(req.Password, user.PasswordHash) {
		response.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if user.Status != "" && user.Status != "active" {
		response.RespondWithError(w, http.StatusForbidden, "Account is not active")
		return
	}

	token, refreshToken, err := h.jwtService.GenerateToken(r.Context(), user.ID, user.Username, user.Role)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Int("user_id", user.ID), zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.logger.Info("user logged in", zap.Int("user_id", user.ID))
	response.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"token":         token,
		"refresh_token": refreshToken,
		"role":          user.Role,
		"user_id":       user.ID,
		"username":      user.Username,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if body.RefreshToken == "" {
		response.RespondWithError(w, http.StatusUnauthorized, "Refresh token required")
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(r.Context(), body.RefreshToken)
	if err != nil {
		response.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		response.RespondWithError(w, http.StatusUnauthorized, "User not found")
		return
	}

	token, refreshToken, err := h.jwtService.GenerateToken(r.Context(), user.ID, user.Username, user.Role)
	if err != nil {
		response.RespondWithError(w, http.StatusInternalServerError, "Could not generate token")
		return
	}

	response.RespondWithJSON(w, http.StatusOK, map[string]string{
		"token":         token,
		"refresh_token": refreshToken,
	})
}

func (h *AuthHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.RefreshToken != "" {
		if err := h.jwtService.RevokeRefreshToken(r.Context(), body.RefreshToken); err != nil {
			h.logger.Warn("failed to revoke refresh token", zap.Error(err))
		}
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.CurrentUser(r.Context())
	if !ok {
		response.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	user, err := h.users.FindByID(r.Context(), current.ID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		response.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch profile", zap.Int("user_id", current.ID), zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch user profile")
		return
	}
	response.RespondWithJSON(w, http.StatusOK, user)
}
