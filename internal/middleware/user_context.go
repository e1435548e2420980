// internal/middleware/user_context.go
package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/evn/cleanops/internal/models"
	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const userContextKey contextKey = "user"

// CurrentUser возвращает пользователя, положенного AddUserToContext.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userContextKey).(*models.User)
	return u, ok && u != nil
}

// WithUser кладёт пользователя в контекст.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// AddUserToContext извлекает user_id, username и role из JWT.
func AddUserToContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || claims == nil {
				next.ServeHTTP(w, r)
				return
			}

			var userID int
			switch v := claims["user_id"].(type) {
			case float64:
				userID = int(v)
			case string:
				if id, err := strconv.Atoi(v); err == nil {
					userID = id
				}
			}

			if userID != 0 {
				username, _ := claims["username"].(string)
				role, _ := claims["role"].(string)
				r = r.WithContext(WithUser(r.Context(), &models.User{
					ID:       userID,
					Username: username,
					Role:     role,
				}))
			}
			next.ServeHTTP(w, r)
		})
	}
}
