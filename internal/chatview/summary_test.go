package chatview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia/internal/model"
)

func userPub(id, first, last string) model.UserPublic {
	return model.UserPublic{ID: id, FirstName: first, LastName: last}
}

func TestBuildSummaryPrivateRoom(t *testing.T) {
	last := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	content := "see you sunday"
	room := model.ChatRoom{
		ID:                 "room-1",
		LastMessageContent: &content,
		LastMessageAt:      &last,
	}
	participants := []model.UserPublic{
		userPub("u1", "Ana", "Souza"),
		userPub("u2", "Bruno", "Lima"),
	}

	s := BuildSummary(room, participants, "u1")

	require.NotNil(t, s.OtherParticipant)
	assert.Equal(t, "u2", s.OtherParticipant.ID)
	assert.Equal(t, "Bruno Lima", s.DisplayTitle)
	assert.False(t, s.IsGlobal)
	assert.Equal(t, "see you sunday", s.LastMessage)
	assert.Equal(t, &last, s.LastMessageAt)
}

func TestBuildSummaryGlobalRoomKeepsLabel(t *testing.T) {
	room := model.ChatRoom{ID: model.GlobalRoomID, Name: model.GlobalRoomName}
	participants := []model.UserPublic{
		userPub("u1", "Ana", "Souza"),
		userPub("u2", "Bruno", "Lima"),
	}

	s := BuildSummary(room, participants, "u1")

	assert.True(t, s.IsGlobal)
	assert.Equal(t, model.GlobalRoomName, s.DisplayTitle)
	assert.Nil(t, s.OtherParticipant)
	assert.Empty(t, s.LastMessage)
}

func TestSortByRecency(t *testing.T) {
	t1 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)

	summaries := []ConversationSummary{
		{Room: model.ChatRoom{ID: "b"}},
		{Room: model.ChatRoom{ID: "old"}, LastMessageAt: &t1},
		{Room: model.ChatRoom{ID: "a"}},
		{Room: model.ChatRoom{ID: "new"}, LastMessageAt: &t2},
	}

	SortByRecency(summaries)

	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.Room.ID)
	}
	assert.Equal(t, []string{"new", "old", "a", "b"}, ids)
}

func TestSortByRecencyTieBreaksByRoomID(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	summaries := []ConversationSummary{
		{Room: model.ChatRoom{ID: "z"}, LastMessageAt: &ts},
		{Room: model.ChatRoom{ID: "a"}, LastMessageAt: &ts},
	}

	SortByRecency(summaries)

	assert.Equal(t, "a", summaries[0].Room.ID)
	assert.Equal(t, "z", summaries[1].Room.ID)
}

func TestFilter(t *testing.T) {
	summaries := []ConversationSummary{
		{Room: model.ChatRoom{ID: "room-abc"}, DisplayTitle: "Bruno Lima"},
		{Room: model.ChatRoom{ID: "room-def"}, DisplayTitle: model.GlobalRoomName},
		{Room: model.ChatRoom{ID: "room-ghi"}, DisplayTitle: "Carla Mendes"},
	}

	t.Run("matches title case-insensitively", func(t *testing.T) {
		got := Filter(summaries, "bruno")
		require.Len(t, got, 1)
		assert.Equal(t, "Bruno Lima", got[0].DisplayTitle)
	})

	t.Run("global room matches only its label", func(t *testing.T) {
		got := Filter(summaries, "global")
		require.Len(t, got, 1)
		assert.True(t, got[0].Room.ID == "room-def")
	})

	t.Run("room ids never match", func(t *testing.T) {
		got := Filter(summaries, "room-abc")
		assert.Empty(t, got)
	})

	t.Run("empty query returns everything", func(t *testing.T) {
		got := Filter(summaries, "   ")
		assert.Len(t, got, 3)
	})

	t.Run("no matches", func(t *testing.T) {
		got := Filter(summaries, "zzz")
		assert.Empty(t, got)
	})
}
