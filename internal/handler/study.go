package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ecclesia/internal/middleware"
	"github.com/ecclesia/internal/model"
	"github.com/ecclesia/internal/repository"
)

// StudyHandler serves bible study (EBD) articles.
type StudyHandler struct {
	repo *repository.StudyRepository
}

func NewStudyHandler(repo *repository.StudyRepository) *StudyHandler {
	return &StudyHandler{repo: repo}
}

func (h *StudyHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	studies, err := h.repo.List(r.Context(), limit)
	if err != nil {
		writeRepoError(w, err, "failed to list studies")
		return
	}
	writeJSON(w, http.StatusOK, studies)
}

func (h *StudyHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "studyId"))
	if err != nil {
		writeRepoError(w, err, "failed to load study")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type studyRequest struct {
	Title    string `json:"title"`
	Theme    string `json:"theme"`
	BaseText string `json:"base_text"`
	Content  string `json:"content"`
	CoverURL string `json:"cover_url"`
}

func (h *StudyHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req studyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "title and content required")
		return
	}

	s := &model.Study{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Theme:     req.Theme,
		BaseText:  req.BaseText,
		Content:   req.Content,
		CoverURL:  req.CoverURL,
		AuthorID:  userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), s); err != nil {
		writeRepoError(w, err, "failed to create study")
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *StudyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "studyId")); err != nil {
		writeRepoError(w, err, "failed to delete study")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StudyHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.repo.AddLike(r.Context(), chi.URLParam(r, "studyId"), userID); err != nil {
		writeRepoError(w, err, "failed to like study")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StudyHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.repo.RemoveLike(r.Context(), chi.URLParam(r, "studyId"), userID); err != nil {
		writeRepoError(w, err, "failed to unlike study")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StudyHandler) AddComment(w http.ResponseWriter, r *http.Request) {
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

	c := &model.StudyComment{
		ID:        uuid.New().String(),
		StudyID:   chi.URLParam(r, "studyId"),
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

func (h *StudyHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.repo.GetComments(r.Context(), chi.URLParam(r, "studyId"))
	if err != nil {
		writeRepoError(w, err, "failed to load comments")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}
