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

// SongHandler serves the worship repertoire.
type SongHandler struct {
	repo *repository.SongRepository
}

func NewSongHandler(repo *repository.SongRepository) *SongHandler {
	return &SongHandler{repo: repo}
}

// List searches the repertoire; q= matches title and artist, ministry=
// narrows to one ministry's list.
func (h *SongHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	if limit > 500 {
		limit = 500
	}
	songs, err := h.repo.Search(r.Context(), r.URL.Query().Get("q"), r.URL.Query().Get("ministry"), limit)
	if err != nil {
		writeRepoError(w, err, "failed to list songs")
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

func (h *SongHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "songId"))
	if err != nil {
		writeRepoError(w, err, "failed to load song")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type songRequest struct {
	Title     string   `json:"title"`
	Artist    string   `json:"artist"`
	SongKey   string   `json:"song_key"`
	BPM       int      `json:"bpm"`
	Ministry  string   `json:"ministry"`
	Tags      []string `json:"tags"`
	LyricsURL string   `json:"lyrics_url"`
	ChordsURL string   `json:"chords_url"`
	VideoURL  string   `json:"video_url"`
}

func (h *SongHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req songRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title required")
		return
	}

	s := &model.Song{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Artist:    req.Artist,
		SongKey:   req.SongKey,
		BPM:       req.BPM,
		Ministry:  req.Ministry,
		Tags:      req.Tags,
		LyricsURL: req.LyricsURL,
		ChordsURL: req.ChordsURL,
		VideoURL:  req.VideoURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), s); err != nil {
		writeRepoError(w, err, "failed to create song")
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *SongHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "songId")

	var req songRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title required")
		return
	}

	existing, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, err, "failed to load song")
		return
	}
	existing.Title = req.Title
	existing.Artist = req.Artist
	existing.SongKey = req.SongKey
	existing.BPM = req.BPM
	existing.Ministry = req.Ministry
	existing.Tags = req.Tags
	existing.LyricsURL = req.LyricsURL
	existing.ChordsURL = req.ChordsURL
	existing.VideoURL = req.VideoURL

	if err := h.repo.Update(r.Context(), existing); err != nil {
		writeRepoError(w, err, "failed to update song")
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (h *SongHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "songId")); err != nil {
		writeRepoError(w, err, "failed to delete song")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
