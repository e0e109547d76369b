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
	"github.com/ecclesia/internal/ws"
)

// LiturgyHandler manages service plans. Activation and step changes are
// broadcast over the hub so every connected member follows the running
// service live.
type LiturgyHandler struct {
	repo *repository.LiturgyRepository
	hub  *ws.Hub
}

func NewLiturgyHandler(repo *repository.LiturgyRepository, hub *ws.Hub) *LiturgyHandler {
	return &LiturgyHandler{repo: repo, hub: hub}
}

func (h *LiturgyHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	liturgies, err := h.repo.List(r.Context(), limit)
	if err != nil {
		writeRepoError(w, err, "failed to list liturgies")
		return
	}
	writeJSON(w, http.StatusOK, liturgies)
}

func (h *LiturgyHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "liturgyId"))
	if err != nil {
		writeRepoError(w, err, "failed to load liturgy")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// GetActive returns the liturgy currently running, 404 when none is active.
func (h *LiturgyHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	l, err := h.repo.GetActive(r.Context())
	if err != nil {
		writeRepoError(w, err, "failed to load active liturgy")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// GetPublic serves a liturgy on its shareable link. Only liturgies whose
// public link was enabled are visible here; everything else is a 404.
func (h *LiturgyHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	l, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "liturgyId"))
	if err != nil {
		writeRepoError(w, err, "failed to load liturgy")
		return
	}
	if !l.PublicEnabled {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type liturgyStepRequest struct {
	Title           string   `json:"title"`
	StepType        string   `json:"step_type"`
	ResponsibleID   string   `json:"responsible_id"`
	Description     string   `json:"description"`
	DurationMinutes int      `json:"duration_minutes"`
	SongIDs         []string `json:"song_ids"`
}

type liturgyRequest struct {
	Theme         string               `json:"theme"`
	Verse         string               `json:"verse"`
	ServiceDate   time.Time            `json:"service_date"`
	PublicEnabled bool                 `json:"public_enabled"`
	Steps         []liturgyStepRequest `json:"steps"`
}

func (req *liturgyRequest) validate() string {
	if strings.TrimSpace(req.Theme) == "" {
		return "theme required"
	}
	if req.ServiceDate.IsZero() {
		return "service_date required"
	}
	for _, s := range req.Steps {
		if strings.TrimSpace(s.Title) == "" {
			return "every step needs a title"
		}
	}
	return ""
}

func (req *liturgyRequest) steps() []model.LiturgyStep {
	steps := make([]model.LiturgyStep, 0, len(req.Steps))
	for _, s := range req.Steps {
		stepType := model.LiturgyStepType(s.StepType)
		if stepType == "" {
			stepType = model.StepPrayer
		}
		duration := s.DurationMinutes
		if duration <= 0 {
			duration = 10
		}
		steps = append(steps, model.LiturgyStep{
			Title:           strings.TrimSpace(s.Title),
			StepType:        stepType,
			ResponsibleID:   s.ResponsibleID,
			Description:     s.Description,
			DurationMinutes: duration,
			SongIDs:         s.SongIDs,
		})
	}
	return steps
}

func (h *LiturgyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req liturgyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	l := &model.Liturgy{
		ID:            uuid.New().String(),
		Theme:         strings.TrimSpace(req.Theme),
		Verse:         strings.TrimSpace(req.Verse),
		ServiceDate:   req.ServiceDate,
		PublicEnabled: req.PublicEnabled,
		CreatedBy:     middleware.GetUserID(r.Context()),
		CreatedAt:     time.Now().UTC(),
		Steps:         req.steps(),
	}
	if err := h.repo.Create(r.Context(), l); err != nil {
		writeRepoError(w, err, "failed to create liturgy")
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *LiturgyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "liturgyId")
	var req liturgyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	l := &model.Liturgy{
		ID:            id,
		Theme:         strings.TrimSpace(req.Theme),
		Verse:         strings.TrimSpace(req.Verse),
		ServiceDate:   req.ServiceDate,
		PublicEnabled: req.PublicEnabled,
		Steps:         req.steps(),
	}
	if err := h.repo.Update(r.Context(), l); err != nil {
		writeRepoError(w, err, "failed to update liturgy")
		return
	}
	updated, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, err, "failed to load liturgy")
		return
	}
	h.broadcastIfActive(updated)
	writeJSON(w, http.StatusOK, updated)
}

func (h *LiturgyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "liturgyId")); err != nil {
		writeRepoError(w, err, "failed to delete liturgy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Activate makes this liturgy the running service plan; any other active
// liturgy is deactivated in the same transaction.
func (h *LiturgyHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "liturgyId")
	if err := h.repo.SetActive(r.Context(), id); err != nil {
		writeRepoError(w, err, "failed to activate liturgy")
		return
	}
	l, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, err, "failed to load liturgy")
		return
	}
	h.broadcast(l)
	writeJSON(w, http.StatusOK, l)
}

func (h *LiturgyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "liturgyId")
	if err := h.repo.Deactivate(r.Context(), id); err != nil {
		writeRepoError(w, err, "failed to deactivate liturgy")
		return
	}
	l, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, err, "failed to load liturgy")
		return
	}
	h.broadcast(l)
	writeJSON(w, http.StatusOK, l)
}

type setStepRequest struct {
	Step int `json:"step"`
}

// SetStep advances (or rewinds) the running service to a step index, so
// every member's liturgy view follows along.
func (h *LiturgyHandler) SetStep(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "liturgyId")
	var req setStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.repo.SetCurrentStep(r.Context(), id, req.Step); err != nil {
		writeRepoError(w, err, "failed to set step")
		return
	}
	l, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, err, "failed to load liturgy")
		return
	}
	h.broadcastIfActive(l)
	writeJSON(w, http.StatusOK, l)
}

func (h *LiturgyHandler) broadcast(l *model.Liturgy) {
	if h.hub != nil {
		h.hub.BroadcastEvent(ws.OutgoingMessage{Type: ws.EventLiturgyUpdated, Payload: l})
	}
}

func (h *LiturgyHandler) broadcastIfActive(l *model.Liturgy) {
	if l.IsActive {
		h.broadcast(l)
	}
}
