package middleware

import (
	"net/http"

	"github.com/ecclesia/internal/model"
	"github.com/ecclesia/internal/repository"
)

// RequireAdmin allows only users with the admin role. Must run after SessionAuth.
func RequireAdmin(userRepo *repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			u, err := userRepo.GetByID(r.Context(), userID)
			if err != nil || u.Role != model.RoleAdmin {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLeader allows leaders and admins. Must run after SessionAuth.
func RequireLeader(userRepo *repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			u, err := userRepo.GetByID(r.Context(), userID)
			if err != nil || (u.Role != model.RoleLeader && u.Role != model.RoleAdmin) {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
