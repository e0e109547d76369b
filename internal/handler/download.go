package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ecclesia/internal/fileserver"
	"github.com/ecclesia/internal/logger"
	"github.com/ecclesia/internal/middleware"
	"github.com/ecclesia/internal/model"
	"github.com/ecclesia/internal/repository"
)

// DownloadHandler serves the shared files page: bulletins, sermons, study
// material.
type DownloadHandler struct {
	repo  *repository.DownloadRepository
	files *fileserver.Service
}

func NewDownloadHandler(repo *repository.DownloadRepository, files *fileserver.Service) *DownloadHandler {
	return &DownloadHandler{repo: repo, files: files}
}

func (h *DownloadHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	if limit > 500 {
		limit = 500
	}
	downloads, err := h.repo.List(r.Context(), r.URL.Query().Get("category"), limit)
	if err != nil {
		writeRepoError(w, err, "failed to list downloads")
		return
	}
	writeJSON(w, http.StatusOK, downloads)
}

// Upload stores a multipart file plus its metadata. Form fields: file,
// title, description, category.
func (h *DownloadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	stored, err := h.files.SaveMultipart(r.Context(), w, r)
	if err != nil {
		switch {
		case errors.Is(err, fileserver.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		case errors.Is(err, fileserver.ErrFileRequired):
			writeError(w, http.StatusBadRequest, "file is required")
		case errors.Is(err, fileserver.ErrBlockedType):
			writeError(w, http.StatusBadRequest, "file type not allowed")
		case errors.Is(err, fileserver.ErrBadContent):
			writeError(w, http.StatusBadRequest, "file content does not match type")
		default:
			logger.Errorf("download upload: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to save file")
		}
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = stored.FileName
	}

	d := &model.Download{
		ID:          uuid.New().String(),
		Title:       title,
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		StoredName:  stored.StoredName,
		FileName:    stored.FileName,
		FileSize:    stored.FileSize,
		ContentType: stored.ContentType,
		UploadedBy:  userID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), d); err != nil {
		if delErr := h.files.Delete(stored.StoredName); delErr != nil {
			logger.Errorf("download cleanup %s: %v", stored.StoredName, delErr)
		}
		writeRepoError(w, err, "failed to save download")
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// Serve streams a download's file content.
func (h *DownloadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	d, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "downloadId"))
	if err != nil {
		writeRepoError(w, err, "failed to load download")
		return
	}
	// Reuse the name= mechanism so the browser saves the original filename.
	q := r.URL.Query()
	q.Set("name", d.FileName)
	r.URL.RawQuery = q.Encode()
	h.files.Serve(w, r, d.StoredName)
}

// ServeFile streams an uploaded file by stored name, used for images
// referenced by avatar_url, notice image_url and study cover_url.
func (h *DownloadHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad filename")
		return
	}
	h.files.Serve(w, r, name)
}

// UploadFile stores a bare file (avatars, notice images) and returns its
// serving URL without creating a downloads entry.
func (h *DownloadHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	stored, err := h.files.SaveMultipart(r.Context(), w, r)
	if err != nil {
		switch {
		case errors.Is(err, fileserver.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		case errors.Is(err, fileserver.ErrFileRequired):
			writeError(w, http.StatusBadRequest, "file is required")
		case errors.Is(err, fileserver.ErrBlockedType):
			writeError(w, http.StatusBadRequest, "file type not allowed")
		case errors.Is(err, fileserver.ErrBadContent):
			writeError(w, http.StatusBadRequest, "file content does not match type")
		default:
			logger.Errorf("file upload: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to save file")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":          "/api/files/" + stored.StoredName,
		"file_name":    stored.FileName,
		"file_size":    stored.FileSize,
		"content_type": stored.ContentType,
	})
}

func (h *DownloadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	d, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "downloadId"))
	if err != nil {
		writeRepoError(w, err, "failed to load download")
		return
	}
	if err := h.repo.Delete(r.Context(), d.ID); err != nil {
		writeRepoError(w, err, "failed to delete download")
		return
	}
	if err := h.files.Delete(d.StoredName); err != nil {
		logger.Errorf("download delete file %s: %v", d.StoredName, err)
	}
	w.WriteHeader(http.StatusNoContent)
}
