package ws

import (
	"time"
)

type EventType string

const (
	// Client -> server.
	EventSubscribe   EventType = "subscribe"
	EventUnsubscribe EventType = "unsubscribe"

	// Both directions: a client sends one to create or edit a message,
	// the server broadcasts the stored result to room subscribers.
	EventMessageNew    EventType = "message_new"
	EventMessageEdited EventType = "message_edited"

	// Server -> client.
	EventSubscribed     EventType = "subscribed"
	EventRoomCreated    EventType = "room_created"
	EventRoomUpdated    EventType = "room_updated"
	EventLiturgyUpdated EventType = "liturgy_updated"
	EventError          EventType = "error"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type    EventType `json:"type"`
	RoomID  string    `json:"room_id,omitempty"`
	Content string    `json:"content,omitempty"`

	// For edits.
	MessageID string `json:"message_id,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// SubscribedPayload confirms a subscription took effect.
type SubscribedPayload struct {
	RoomID string `json:"room_id"`
}

// RoomUpdatedPayload is sent to room participants when the room's
// last-message preview changes, so conversation lists can reorder
// without a full reload.
type RoomUpdatedPayload struct {
	RoomID        string     `json:"room_id"`
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}
