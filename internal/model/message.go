package model

import "time"

type ChatMessage struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"room_id"`
	SenderID  string      `json:"sender_id"`
	Content   string      `json:"content"`
	IsEdited  bool        `json:"is_edited"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
	Sender    *UserPublic `json:"sender,omitempty"`
}
