package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ecclesia/internal/middleware"
	"github.com/ecclesia/internal/model"
	"github.com/ecclesia/internal/push"
	"github.com/ecclesia/internal/repository"
)

// NoticeHandler serves the announcements wall.
type NoticeHandler struct {
	repo     *repository.NoticeRepository
	notifier *push.Notifier
}

func NewNoticeHandler(repo *repository.NoticeRepository, notifier *push.Notifier) *NoticeHandler {
	return &NoticeHandler{repo: repo, notifier: notifier}
}

func (h *NoticeHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	notices, err := h.repo.List(r.Context(), limit)
	if err != nil {
		writeRepoError(w, err, "failed to list notices")
		return
	}
	writeJSON(w, http.StatusOK, notices)
}

func (h *NoticeHandler) Get(w http.ResponseWriter, r *http.Request) {
	n, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "noticeId"))
	if err != nil {
		writeRepoError(w, err, "failed to load notice")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type noticeRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

func (h *NoticeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req noticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "title and content required")
		return
	}

	n := &model.Notice{
		ID:        uuid.New().String(),
		AuthorID:  userID,
		Title:     req.Title,
		Content:   req.Content,
		ImageURL:  req.ImageURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), n); err != nil {
		writeRepoError(w, err, "failed to create notice")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *NoticeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "noticeId")

	var req noticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "title and content required")
		return
	}

	if err := h.repo.Update(r.Context(), id, req.Title, req.Content, req.ImageURL); err != nil {
		writeRepoError(w, err, "failed to update notice")
		return
	}
	n, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, err, "failed to load notice")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type pinRequest struct {
	Pinned bool `json:"pinned"`
}

// SetPinned pins or unpins a notice. Pinning announces it to every
// registered push endpoint.
func (h *NoticeHandler) SetPinned(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "noticeId")

	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.repo.SetPinned(r.Context(), id, req.Pinned); err != nil {
		writeRepoError(w, err, "failed to pin notice")
		return
	}
	if req.Pinned && h.notifier != nil {
		if n, err := h.repo.GetByID(r.Context(), id); err == nil {
			go h.notifier.NotifyAll(context.Background(), n.Title, "Novo aviso fixado", map[string]string{"notice_id": n.ID})
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *NoticeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "noticeId")); err != nil {
		writeRepoError(w, err, "failed to delete notice")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NoticeHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.repo.AddLike(r.Context(), chi.URLParam(r, "noticeId"), userID); err != nil {
		writeRepoError(w, err, "failed to like notice")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *NoticeHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.repo.RemoveLike(r.Context(), chi.URLParam(r, "noticeId"), userID); err != nil {
		writeRepoError(w, err, "failed to unlike notice")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type commentRequest struct {
	Content string `json:"content"`
}

func (h *NoticeHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}

	c := &model.NoticeComment{
		ID:        uuid.New().String(),
		NoticeID:  chi.URLParam(r, "noticeId"),
		AuthorID:  userID,
		Content:   req.Content,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.AddComment(r.Context(), c); err != nil {
		writeRepoError(w, err, "failed to add comment")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *NoticeHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.repo.GetComments(r.Context(), chi.URLParam(r, "noticeId"))
	if err != nil {
		writeRepoError(w, err, "failed to load comments")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}
