package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ecclesia/internal/model"
	"github.com/ecclesia/internal/repository"
)

// ScheduleHandler serves the service and event agenda.
type ScheduleHandler struct {
	repo *repository.ScheduleRepository
}

func NewScheduleHandler(repo *repository.ScheduleRepository) *ScheduleHandler {
	return &ScheduleHandler{repo: repo}
}

// List returns upcoming schedules. The after= query param (RFC 3339) moves
// the window; it defaults to the start of today.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	if limit > 500 {
		limit = 500
	}

	after := time.Now().UTC().Truncate(24 * time.Hour)
	if v := r.URL.Query().Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be RFC 3339")
			return
		}
		after = t
	}

	schedules, err := h.repo.ListUpcoming(r.Context(), after, limit)
	if err != nil {
		writeRepoError(w, err, "failed to list schedules")
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "scheduleId"))
	if err != nil {
		writeRepoError(w, err, "failed to load schedule")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type scheduleRequest struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	StartsAt      time.Time `json:"starts_at"`
	ResponsibleID string    `json:"responsible_id"`
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.StartsAt.IsZero() {
		writeError(w, http.StatusBadRequest, "name and starts_at required")
		return
	}

	s := &model.Schedule{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Description:   req.Description,
		StartsAt:      req.StartsAt.UTC(),
		ResponsibleID: req.ResponsibleID,
		Status:        model.ScheduleStatusScheduled,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), s); err != nil {
		writeRepoError(w, err, "failed to create schedule")
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "scheduleId")

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.StartsAt.IsZero() {
		writeError(w, http.StatusBadRequest, "name and starts_at required")
		return
	}

	existing, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, err, "failed to load schedule")
		return
	}
	existing.Name = req.Name
	existing.Description = req.Description
	existing.StartsAt = req.StartsAt.UTC()
	existing.ResponsibleID = req.ResponsibleID

	if err := h.repo.Update(r.Context(), existing); err != nil {
		writeRepoError(w, err, "failed to update schedule")
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

type scheduleStatusRequest struct {
	Status model.ScheduleStatus `json:"status"`
}

func (h *ScheduleHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req scheduleStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Status {
	case model.ScheduleStatusScheduled, model.ScheduleStatusConfirmed, model.ScheduleStatusDone, model.ScheduleStatusCanceled:
	default:
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	if err := h.repo.SetStatus(r.Context(), chi.URLParam(r, "scheduleId"), req.Status); err != nil {
		writeRepoError(w, err, "failed to set status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "scheduleId")); err != nil {
		writeRepoError(w, err, "failed to delete schedule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
