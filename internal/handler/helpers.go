package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ecclesia/internal/logger"
	"github.com/ecclesia/internal/repository"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeRepoError maps repository sentinel errors to HTTP statuses; anything
// else becomes a 500 with the fallback message.
func writeRepoError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, repository.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, "content must not be empty")
	case errors.Is(err, repository.ErrSamePair):
		writeError(w, http.StatusBadRequest, "cannot open a room with yourself")
	case errors.Is(err, repository.ErrInvalidStep):
		writeError(w, http.StatusBadRequest, "step index out of range")
	default:
		logger.Errorf("%s: %v", fallback, err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
