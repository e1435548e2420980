package models

// Роли пользователей
const (
	RoleWorker     = "worker"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	FirstName    string `json:"first_name,omitempty"`
	Role         string `json:"role"`
	Status       string `json:"status,omitempty"`
}

// IsAdmin сообщает, может ли пользователь видеть агрегированную активность.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperadmin
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token    string `json:"token"`
	Role     string `json:"role"`
	UserID   int    `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}
