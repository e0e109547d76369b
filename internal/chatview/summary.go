// Package chatview composes chat room registry output into the
// display-ready conversation list: resolved titles, last-message previews,
// recency order and free-text filtering.
package chatview

import (
	"sort"
	"strings"
	"time"

	"github.com/ecclesia/internal/model"
)

// ConversationSummary is the denormalized projection of a room plus its
// latest message, used by the conversation list. It is derived, never stored.
type ConversationSummary struct {
	Room             model.ChatRoom    `json:"room"`
	IsGlobal         bool              `json:"is_global"`
	OtherParticipant *model.UserPublic `json:"other_participant,omitempty"`
	DisplayTitle     string            `json:"display_title"`
	LastMessage      string            `json:"last_message"`
	LastMessageAt    *time.Time        `json:"last_message_at,omitempty"`
}

// BuildSummary projects one room for the given viewer. For a private room
// the title is the other participant's full name; the global room keeps its
// fixed label regardless of participants.
func BuildSummary(room model.ChatRoom, participants []model.UserPublic, currentUserID string) ConversationSummary {
	s := ConversationSummary{
		Room:          room,
		IsGlobal:      room.IsGlobal(),
		DisplayTitle:  model.GlobalRoomName,
		LastMessageAt: room.LastMessageAt,
	}
	if room.LastMessageContent != nil {
		s.LastMessage = *room.LastMessageContent
	}
	if s.IsGlobal {
		return s
	}

	for i := range participants {
		if participants[i].ID != currentUserID {
			p := participants[i]
			s.OtherParticipant = &p
			break
		}
	}
	if s.OtherParticipant != nil {
		s.DisplayTitle = s.OtherParticipant.FullName()
	} else {
		s.DisplayTitle = ""
	}
	return s
}

// SortByRecency orders summaries by last message time descending. Rooms with
// no messages yet sort last; ties break by room id ascending so the list
// never jitters between renders.
func SortByRecency(summaries []ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		ti, tj := summaries[i].LastMessageAt, summaries[j].LastMessageAt
		switch {
		case ti == nil && tj == nil:
			return summaries[i].Room.ID < summaries[j].Room.ID
		case ti == nil:
			return false
		case tj == nil:
			return true
		case ti.Equal(*tj):
			return summaries[i].Room.ID < summaries[j].Room.ID
		default:
			return ti.After(*tj)
		}
	})
}

// Filter narrows summaries by a case-insensitive match against the display
// title only. Internal room ids never match; the global room matches only
// through its fixed label. An empty query returns everything.
func Filter(summaries []ConversationSummary, query string) []ConversationSummary {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return summaries
	}
	out := make([]ConversationSummary, 0, len(summaries))
	for _, s := range summaries {
		if strings.Contains(strings.ToLower(s.DisplayTitle), q) {
			out = append(out, s)
		}
	}
	return out
}
