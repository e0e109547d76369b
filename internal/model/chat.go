package model

import "time"

// GlobalRoomID is the reserved id of the single broadcast room every member
// implicitly belongs to. It is constant for the lifetime of the system.
const GlobalRoomID = "00000000-0000-0000-0000-000000000000"

// GlobalRoomName is the fixed display label of the global room.
const GlobalRoomName = "Chat Global"

type ChatRoom struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	LastMessageContent *string    `json:"last_message_content,omitempty"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
}

// IsGlobal is derived from id equality with the reserved id, never stored.
func (r *ChatRoom) IsGlobal() bool {
	return r.ID == GlobalRoomID
}

type RoomParticipant struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// RoomWithParticipants is a registry row annotated for the conversation list.
type RoomWithParticipants struct {
	Room         ChatRoom     `json:"room"`
	Participants []UserPublic `json:"participants"`
}
