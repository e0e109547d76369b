package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecclesia/internal/chatview"
	"github.com/ecclesia/internal/logger"
	"github.com/ecclesia/internal/middleware"
	"github.com/ecclesia/internal/model"
	"github.com/ecclesia/internal/repository"
	"github.com/ecclesia/internal/ws"
)

type ChatHandler struct {
	roomRepo *repository.RoomRepository
	hub      *ws.Hub
}

func NewChatHandler(roomRepo *repository.RoomRepository, hub *ws.Hub) *ChatHandler {
	return &ChatHandler{roomRepo: roomRepo, hub: hub}
}

// ListConversations returns the viewer's conversation list: the global room
// plus every private room they are part of, newest activity first. The q
// query param filters by the displayed title.
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	// Membership in the global room is recorded lazily on first sight.
	if _, err := h.roomRepo.EnsureGlobalRoom(r.Context(), userID); err != nil {
		logger.Errorf("ensure global room user=%s: %v", userID, err)
	}

	rooms, err := h.roomRepo.ListRoomsForUser(r.Context(), userID)
	if err != nil {
		writeRepoError(w, err, "failed to list conversations")
		return
	}

	summaries := make([]chatview.ConversationSummary, 0, len(rooms))
	for i := range rooms {
		var participants []model.UserPublic
		if !rooms[i].IsGlobal() {
			participants, err = h.roomRepo.GetParticipants(r.Context(), rooms[i].ID)
			if err != nil {
				writeRepoError(w, err, "failed to list conversations")
				return
			}
		}
		summaries = append(summaries, chatview.BuildSummary(rooms[i], participants, userID))
	}

	chatview.SortByRecency(summaries)
	summaries = chatview.Filter(summaries, r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, summaries)
}

type openRoomRequest struct {
	UserID string `json:"user_id"`
}

// OpenPrivateRoom finds or creates the private room between the viewer and
// another member. Repeated calls return the same room.
func (h *ChatHandler) OpenPrivateRoom(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req openRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	room, err := h.roomRepo.GetOrCreatePrivateRoom(r.Context(), userID, req.UserID)
	if err != nil {
		writeRepoError(w, err, "failed to open conversation")
		return
	}

	participants, err := h.roomRepo.GetParticipants(r.Context(), room.ID)
	if err != nil {
		writeRepoError(w, err, "failed to open conversation")
		return
	}

	out := &model.RoomWithParticipants{Room: *room, Participants: participants}
	if h.hub != nil {
		h.hub.NotifyRoomCreated(out)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetRoom returns one room with its participants; the viewer must belong to
// it (the global room belongs to everyone).
func (h *ChatHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	userID := middleware.GetUserID(r.Context())

	room, err := h.roomRepo.GetByID(r.Context(), roomID)
	if err != nil {
		writeRepoError(w, err, "failed to load conversation")
		return
	}
	if !room.IsGlobal() {
		ok, err := h.roomRepo.IsParticipant(r.Context(), roomID, userID)
		if err != nil {
			writeRepoError(w, err, "failed to load conversation")
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, "not a participant")
			return
		}
	}

	participants, err := h.roomRepo.GetParticipants(r.Context(), roomID)
	if err != nil {
		writeRepoError(w, err, "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, &model.RoomWithParticipants{Room: *room, Participants: participants})
}
