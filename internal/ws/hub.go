package ws

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ecclesia/internal/logger"
	"github.com/ecclesia/internal/model"
	"github.com/ecclesia/internal/repository"
)

// RoomStore is the slice of the room registry the hub needs. Satisfied by
// *repository.RoomRepository.
type RoomStore interface {
	GetByID(ctx context.Context, id string) (*model.ChatRoom, error)
	IsParticipant(ctx context.Context, roomID, userID string) (bool, error)
	GetParticipantIDs(ctx context.Context, roomID string) ([]string, error)
	AddParticipant(ctx context.Context, roomID, userID string) error
}

// MessageStore is the slice of the message log the hub needs. Satisfied by
// *repository.MessageRepository.
type MessageStore interface {
	Append(ctx context.Context, roomID, senderID, content string) (*model.ChatMessage, error)
	Edit(ctx context.Context, messageID, requesterID, newContent string) (*model.ChatMessage, error)
}

// PushNotifier sends push notifications. nil disables pushes.
type PushNotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

// Hub routes live chat events. Clients subscribe per room; a stored message
// is fanned out to every subscriber of that room, and participants who are
// connected but not subscribed still receive a room_updated preview so
// their conversation list stays current.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{} // userID -> connections
	rooms    map[string]map[*Client]struct{} // roomID -> subscribers
	subs     map[*Client]map[string]struct{} // client -> subscribed roomIDs
	total    int
	maxConns int

	roomStore RoomStore
	msgStore  MessageStore
	push      PushNotifier

	// pubMu guards roomPubs; each room's publish lock spans the storage
	// commit and the fan-out so delivery order matches storage order.
	pubMu    sync.Mutex
	roomPubs map[string]*sync.Mutex

	sendBufSize int
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
}

func NewHub(roomStore RoomStore, msgStore MessageStore, maxConns, sendBufSize int, push PushNotifier) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:     make(map[string]map[*Client]struct{}),
		rooms:       make(map[string]map[*Client]struct{}),
		subs:        make(map[*Client]map[string]struct{}),
		maxConns:    maxConns,
		roomStore:   roomStore,
		msgStore:    msgStore,
		push:        push,
		roomPubs:    make(map[string]*sync.Mutex),
		sendBufSize: sendBufSize,
		register:    make(chan *Client, 64),
		unregister:  make(chan *Client, 64),
		done:        make(chan struct{}),
	}
}

// SendBufSize is the per-client outgoing buffer configured for this hub.
func (h *Hub) SendBufSize() int { return h.sendBufSize }

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
	h.subs = make(map[*Client]map[string]struct{})
	h.total = 0
	h.mu.Unlock()

	// Close connections outside the lock (network I/O).
	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.subs[c] = make(map[string]struct{})
	h.total++
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.clients, c.userID)
	}
	for roomID := range h.subs[c] {
		delete(h.rooms[roomID], c)
		if len(h.rooms[roomID]) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(h.subs, c)
	h.total--
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()
}

// HandleMessage dispatches incoming WebSocket messages.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventSubscribe:
		h.handleSubscribe(ctx, c, msg)
	case EventUnsubscribe:
		h.handleUnsubscribe(c, msg)
	case EventMessageNew:
		h.handleNewMessage(ctx, c, msg)
	case EventMessageEdited:
		h.handleEditMessage(ctx, c, msg)
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "unknown event type"})
	}
}

func (h *Hub) handleSubscribe(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleSubscribe", time.Now())()
	if msg.RoomID == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "room_id required"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	room, err := h.roomStore.GetByID(ctx, msg.RoomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "room not found"})
			return
		}
		logger.Errorf("ws subscribe room=%s user=%s: %v", msg.RoomID, c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "internal error"})
		return
	}

	if room.IsGlobal() {
		// Everyone belongs to the global room; record membership on first contact.
		if err := h.roomStore.AddParticipant(ctx, room.ID, c.userID); err != nil {
			logger.Errorf("ws join global room user=%s: %v", c.userID, err)
		}
	} else {
		ok, err := h.roomStore.IsParticipant(ctx, msg.RoomID, c.userID)
		if err != nil {
			logger.Errorf("ws check participant room=%s user=%s: %v", msg.RoomID, c.userID, err)
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "internal error"})
			return
		}
		if !ok {
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "not a participant"})
			return
		}
	}

	h.mu.Lock()
	if _, ok := h.rooms[msg.RoomID]; !ok {
		h.rooms[msg.RoomID] = make(map[*Client]struct{})
	}
	h.rooms[msg.RoomID][c] = struct{}{}
	if h.subs[c] == nil {
		h.subs[c] = make(map[string]struct{})
	}
	h.subs[c][msg.RoomID] = struct{}{}
	h.mu.Unlock()

	h.sendToClient(c, OutgoingMessage{Type: EventSubscribed, Payload: SubscribedPayload{RoomID: msg.RoomID}})
}

func (h *Hub) handleUnsubscribe(c *Client, msg IncomingMessage) {
	if msg.RoomID == "" {
		return
	}
	h.mu.Lock()
	delete(h.rooms[msg.RoomID], c)
	if len(h.rooms[msg.RoomID]) == 0 {
		delete(h.rooms, msg.RoomID)
	}
	delete(h.subs[c], msg.RoomID)
	h.mu.Unlock()
}

func (h *Hub) handleNewMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleNewMessage", time.Now())()
	if msg.RoomID == "" || msg.Content == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "room_id and content required"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if !h.canPost(ctx, c, msg.RoomID) {
		return
	}

	stored, err := h.PublishMessage(ctx, msg.RoomID, c.userID, msg.Content)
	if err != nil {
		if errors.Is(err, repository.ErrEmptyContent) {
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "content must not be empty"})
			return
		}
		logger.Errorf("ws save message room=%s user=%s: %v", msg.RoomID, c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "failed to save message"})
		return
	}

	h.notifyPush(ctx, stored)
}

func (h *Hub) handleEditMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleEditMessage", time.Now())()
	if msg.MessageID == "" || msg.Content == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "message_id and content required"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stored, err := h.msgStore.Edit(ctx, msg.MessageID, c.userID, msg.Content)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "message not found"})
		case errors.Is(err, repository.ErrForbidden):
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "can only edit own messages"})
		case errors.Is(err, repository.ErrEmptyContent):
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "content must not be empty"})
		default:
			logger.Errorf("ws edit message %s: %v", msg.MessageID, err)
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "failed to edit"})
		}
		return
	}

	h.BroadcastMessage(ctx, stored, EventMessageEdited)
}

// canPost verifies the sender may write to the room; the global room is
// open to every signed-in member.
func (h *Hub) canPost(ctx context.Context, c *Client, roomID string) bool {
	if roomID == model.GlobalRoomID {
		return true
	}
	ok, err := h.roomStore.IsParticipant(ctx, roomID, c.userID)
	if err != nil {
		logger.Errorf("ws check participant room=%s user=%s: %v", roomID, c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "internal error"})
		return false
	}
	if !ok {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "not a participant"})
		return false
	}
	return true
}

func (h *Hub) roomLock(roomID string) *sync.Mutex {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()
	mu, ok := h.roomPubs[roomID]
	if !ok {
		mu = &sync.Mutex{}
		h.roomPubs[roomID] = mu
	}
	return mu
}

// PublishMessage stores a message and fans it out to the room's subscribers.
// The room's publish lock is held from the storage commit through the
// fan-out, so two concurrent senders cannot deliver their messages in an
// order that differs from the one ListByRoom will return on reload. Both the
// WebSocket path and the REST send handler go through here.
func (h *Hub) PublishMessage(ctx context.Context, roomID, senderID, content string) (*model.ChatMessage, error) {
	mu := h.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	stored, err := h.msgStore.Append(ctx, roomID, senderID, content)
	if err != nil {
		return nil, err
	}
	h.BroadcastMessage(ctx, stored, EventMessageNew)
	return stored, nil
}

// BroadcastMessage fans a stored message out to the room's subscribers and
// sends a room_updated preview to every connected participant. REST handlers
// call this too, so a message sent over HTTP reaches live subscribers.
func (h *Hub) BroadcastMessage(ctx context.Context, m *model.ChatMessage, ev EventType) {
	h.sendToRoom(m.RoomID, OutgoingMessage{Type: ev, Payload: m})

	if ev != EventMessageNew {
		return
	}
	at := m.CreatedAt
	update := OutgoingMessage{Type: EventRoomUpdated, Payload: RoomUpdatedPayload{
		RoomID:        m.RoomID,
		LastMessage:   m.Content,
		LastMessageAt: &at,
	}}
	if m.RoomID == model.GlobalRoomID {
		h.sendToAll(update)
		return
	}
	ids, err := h.roomStore.GetParticipantIDs(ctx, m.RoomID)
	if err != nil {
		logger.Errorf("ws get participants room=%s: %v", m.RoomID, err)
		return
	}
	for _, uid := range ids {
		h.sendToUser(uid, update)
	}
}

// BroadcastEvent sends an event to every connected client. Used for
// congregation-wide state such as the active liturgy and its current step.
func (h *Hub) BroadcastEvent(msg OutgoingMessage) {
	h.sendToAll(msg)
}

// NotifyRoomCreated tells both sides of a freshly created private room so
// their conversation lists pick it up without a reload.
func (h *Hub) NotifyRoomCreated(room *model.RoomWithParticipants) {
	out := OutgoingMessage{Type: EventRoomCreated, Payload: room}
	for _, p := range room.Participants {
		h.sendToUser(p.ID, out)
	}
}

func (h *Hub) notifyPush(ctx context.Context, m *model.ChatMessage) {
	// The global room would ping the whole congregation on every message.
	if h.push == nil || m.RoomID == model.GlobalRoomID {
		return
	}
	ids, err := h.roomStore.GetParticipantIDs(ctx, m.RoomID)
	if err != nil {
		logger.Errorf("ws get participants for push room=%s: %v", m.RoomID, err)
		return
	}
	title := "Nova mensagem"
	if m.Sender != nil {
		title = m.Sender.FullName()
	}
	body := truncateRunes(m.Content, 120)
	data := map[string]string{"room_id": m.RoomID, "message_id": m.ID}
	for _, uid := range ids {
		if uid != m.SenderID {
			go h.push.Notify(context.Background(), uid, title, body, data)
		}
	}
}

// truncateRunes shortens s to at most max runes, never splitting a
// multi-byte character.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}

func (h *Hub) sendToRoom(roomID string, msg OutgoingMessage) {
	h.mu.RLock()
	subs, ok := h.rooms[roomID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(subs))
	for c := range subs {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendToUser(userID string, msg OutgoingMessage) {
	h.mu.RLock()
	clients, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendToAll(msg OutgoingMessage) {
	h.mu.RLock()
	targets := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
