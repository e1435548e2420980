package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/evn/cleanops/internal/models"
	"github.com/evn/cleanops/internal/pkg/response"
	"github.com/evn/cleanops/internal/repositories"
	"github.com/evn/cleanops/internal/services/auth"
	"go.uber.org/zap"
)

type CreateUserRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	Role      string `json:"role"`
}

func validRole(role string) bool {
	return role == models.RoleWorker || role == models.RoleAdmin || role == models.RoleSuperadmin
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	input.Username = strings.TrimSpace(input.Username)
	if input.Username == "" || input.Password == "" {
		response.RespondWithError(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	if input.Role == "" {
		input.Role = models.RoleWorker
	}
	if !validRole(input.Role) {
		response.RespondWithError(w, http.StatusBadRequest, "Role does not exist")
		return
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		response.RespondWithError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	id, err := h.users.Create(r.Context(), models.User{
		Username:     input.Username,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		Role:         input.Role,
		Status:       "active",
	})
	if errors.Is(err, repositories.ErrUserExists) {
		response.RespondWithError(w, http.StatusConflict, "Username already exists")
		return
	}
	if err != nil {
		h.logger.Error("create user failed", zap.String("username", input.Username), zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "DB error creating user")
		return
	}

	response.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User created successfully",
		"id":      id,
	})
}

// ListUsers возвращает список всех пользователей для админов
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	response.RespondWithJSON(w, http.StatusOK, users)
}

func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	var update struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !validRole(update.Role) {
		response.RespondWithError(w, http.StatusBadRequest, "Role does not exist")
		return
	}
	h.respondUpdate(w, userID, h.users.UpdateRole(r.Context(), userID, update.Role), "User role updated successfully")
}

func (h *Handler) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	var req struct {
		Status string `json:"status"` // "active" или "blocked"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Status != "active" && req.Status != "blocked" {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid status value. Must be 'active' or 'blocked'")
		return
	}
	h.respondUpdate(w, userID, h.users.UpdateStatus(r.Context(), userID, req.Status), "User status updated successfully")
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	h.respondUpdate(w, userID, h.users.Delete(r.Context(), userID), "User deleted successfully")
}

func (h *Handler) respondUpdate(w http.ResponseWriter, userID int, err error, message string) {
	if errors.Is(err, repositories.ErrUserNotFound) {
		response.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("user update failed", zap.Int("user_id", userID), zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]string{"message": message})
}
