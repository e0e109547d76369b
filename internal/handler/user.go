package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ecclesia/internal/middleware"
	"github.com/ecclesia/internal/model"
	"github.com/ecclesia/internal/repository"
)

type UserHandler struct {
	userRepo *repository.UserRepository
}

func NewUserHandler(userRepo *repository.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// ListMembers returns the congregation directory.
func (h *UserHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 200)
	if limit > 500 {
		limit = 500
	}

	var (
		users []model.User
		err   error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		users, err = h.userRepo.SearchByName(r.Context(), q, limit)
	} else {
		users, err = h.userRepo.ListAll(r.Context(), limit)
	}
	if err != nil {
		writeRepoError(w, err, "failed to list members")
		return
	}

	out := make([]model.UserPublic, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToPublic())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *UserHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userId")
	u, err := h.userRepo.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, err, "failed to load member")
		return
	}
	pub := u.ToPublic()
	writeJSON(w, http.StatusOK, pub)
}

type updateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Ministry  string `json:"ministry"`
}

// UpdateProfile lets a member edit their own profile.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" {
		writeError(w, http.StatusBadRequest, "first_name required")
		return
	}

	err := h.userRepo.UpdateProfile(r.Context(), userID, req.FirstName, req.LastName, req.AvatarURL, req.Phone, req.Address, req.Ministry)
	if err != nil {
		writeRepoError(w, err, "failed to update profile")
		return
	}

	u, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeRepoError(w, err, "failed to load profile")
		return
	}
	u.PasswordHash = ""
	writeJSON(w, http.StatusOK, u)
}

type setRoleRequest struct {
	Role model.Role `json:"role"`
}

// SetRole changes a member's role. Admin only (enforced by routing).
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userId")

	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Role {
	case model.RoleMember, model.RoleLeader, model.RoleAdmin:
	default:
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	if err := h.userRepo.SetRole(r.Context(), id, req.Role); err != nil {
		writeRepoError(w, err, "failed to set role")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
