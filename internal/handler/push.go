package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ecclesia/internal/middleware"
	"github.com/ecclesia/internal/repository"
)

// PushHandler manages browser push subscriptions (session required).
type PushHandler struct {
	repo *repository.PushRepository
}

func NewPushHandler(repo *repository.PushRepository) *PushHandler {
	return &PushHandler{repo: repo}
}

// SubscribeRequest carries the subscription from PushManager.getSubscription().
type SubscribeRequest struct {
	Subscription struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	} `json:"subscription"`
}

// Subscribe stores the browser subscription for the current user.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s := req.Subscription
	if s.Endpoint == "" || s.Keys.P256dh == "" || s.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "subscription.endpoint and subscription.keys required")
		return
	}

	err := h.repo.Save(r.Context(), &repository.PushSubscription{
		Endpoint: s.Endpoint,
		UserID:   userID,
		P256dh:   s.Keys.P256dh,
		Auth:     s.Keys.Auth,
	})
	if err != nil {
		writeRepoError(w, err, "failed to subscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint required")
		return
	}
	if err := h.repo.Delete(r.Context(), req.Endpoint); err != nil {
		writeRepoError(w, err, "failed to unsubscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
