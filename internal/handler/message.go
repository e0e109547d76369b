package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecclesia/internal/middleware"
	"github.com/ecclesia/internal/model"
	"github.com/ecclesia/internal/repository"
	"github.com/ecclesia/internal/ws"
)

type MessageHandler struct {
	msgRepo  *repository.MessageRepository
	roomRepo *repository.RoomRepository
	hub      *ws.Hub
}

func NewMessageHandler(msgRepo *repository.MessageRepository, roomRepo *repository.RoomRepository, hub *ws.Hub) *MessageHandler {
	return &MessageHandler{msgRepo: msgRepo, roomRepo: roomRepo, hub: hub}
}

func (h *MessageHandler) requireAccess(w http.ResponseWriter, r *http.Request, roomID, userID string) bool {
	if roomID == model.GlobalRoomID {
		return true
	}
	ok, err := h.roomRepo.IsParticipant(r.Context(), roomID, userID)
	if err != nil {
		writeRepoError(w, err, "failed to check access")
		return false
	}
	if !ok {
		writeError(w, http.StatusForbidden, "not a participant")
		return false
	}
	return true
}

// GetMessages returns a room's history in ascending order. By default the
// whole log is returned; limit= caps it to the newest N keeping ascending
// order.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	userID := middleware.GetUserID(r.Context())
	if !h.requireAccess(w, r, roomID, userID) {
		return
	}

	limit := queryInt(r, "limit", 0)
	messages, err := h.msgRepo.ListByRoom(r.Context(), roomID, limit)
	if err != nil {
		writeRepoError(w, err, "failed to get messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage appends a message over plain HTTP; live subscribers still get
// the broadcast through the hub.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	userID := middleware.GetUserID(r.Context())
	if !h.requireAccess(w, r, roomID, userID) {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var m *model.ChatMessage
	var err error
	if h.hub != nil {
		// The hub's publish path keeps fan-out in storage order.
		m, err = h.hub.PublishMessage(r.Context(), roomID, userID, req.Content)
	} else {
		m, err = h.msgRepo.Append(r.Context(), roomID, userID, req.Content)
	}
	if err != nil {
		writeRepoError(w, err, "failed to send message")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type editMessageRequest struct {
	Content string `json:"content"`
}

// EditMessage rewrites a message's content. Only the sender may edit.
func (h *MessageHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.msgRepo.Edit(r.Context(), messageID, userID, req.Content)
	if err != nil {
		writeRepoError(w, err, "failed to edit message")
		return
	}
	if h.hub != nil {
		h.hub.BroadcastMessage(r.Context(), m, ws.EventMessageEdited)
	}
	writeJSON(w, http.StatusOK, m)
}
