package middleware

import (
	"net/http"

	"github.com/evn/cleanops/internal/pkg/response"
)

// RequireUser отвечает 401, если в контексте нет пользователя.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r.Context()); !ok {
			response.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminOnly пропускает только admin и superadmin.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := CurrentUser(r.Context())
		if !ok {
			response.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if !user.IsAdmin() {
			response.RespondWithError(w, http.StatusForbidden, "Access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}
