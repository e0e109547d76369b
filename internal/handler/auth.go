package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecclesia/internal/logger"
	"github.com/ecclesia/internal/middleware"
	"github.com/ecclesia/internal/model"
	"github.com/ecclesia/internal/repository"
	"github.com/ecclesia/internal/storage"
)

// UserAccounts is the slice of the user store auth needs. Satisfied by
// *repository.UserRepository.
type UserAccounts interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// GlobalRoomJoiner registers a member in the global chat room. Satisfied by
// *repository.RoomRepository.
type GlobalRoomJoiner interface {
	EnsureGlobalRoom(ctx context.Context, userID string) (*model.ChatRoom, error)
}

type AuthHandler struct {
	userRepo   UserAccounts
	rooms      GlobalRoomJoiner
	sessions   storage.SessionStore
	sessionTTL time.Duration
}

func NewAuthHandler(userRepo UserAccounts, rooms GlobalRoomJoiner, sessions storage.SessionStore, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{userRepo: userRepo, rooms: rooms, sessions: sessions, sessionTTL: sessionTTL}
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if req.FirstName == "" {
		writeError(w, http.StatusBadRequest, "first_name required")
		return
	}

	if _, err := h.userRepo.GetByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		writeRepoError(w, err, "registration failed")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Errorf("bcrypt hash: %v", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         model.RoleMember,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.userRepo.Create(r.Context(), u); err != nil {
		writeRepoError(w, err, "registration failed")
		return
	}

	// New members belong to the global room from the start; a failure here
	// is recovered on their first subscribe.
	if h.rooms != nil {
		if _, err := h.rooms.EnsureGlobalRoom(r.Context(), u.ID); err != nil {
			logger.Errorf("register join global room user=%s: %v", u.ID, err)
		}
	}

	token, err := h.newSession(r, u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	u.PasswordHash = ""
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: u})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	allowed, err := h.sessions.CheckLoginRateLimit(r.Context(), req.Email)
	if err != nil {
		logger.Errorf("login rate limit check %s: %v", req.Email, err)
	} else if !allowed {
		writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}

	u, err := h.userRepo.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeRepoError(w, err, "login failed")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.newSession(r, u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	u.PasswordHash = ""
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: u})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.sessions.DeleteSession(r.Context(), token); err != nil {
		logger.Errorf("logout delete session %s: %v", middleware.MaskToken(token), err)
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Me returns the authenticated user's own profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	u, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeRepoError(w, err, "failed to load profile")
		return
	}
	u.PasswordHash = ""
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) newSession(r *http.Request, userID string) (string, error) {
	token := uuid.New().String()
	if err := h.sessions.SetSession(r.Context(), token, userID, h.sessionTTL); err != nil {
		logger.Errorf("create session user=%s: %v", userID, err)
		return "", err
	}
	return token, nil
}
