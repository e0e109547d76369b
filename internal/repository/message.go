package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecclesia/internal/logger"
	"github.com/ecclesia/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const msgCols = `m.id, m.room_id, m.sender_id, m.content, m.is_edited, m.created_at, m.updated_at,
		        u.id, u.first_name, u.last_name, COALESCE(u.avatar_url,''), u.role, COALESCE(u.ministry,'')`

// MessageRepository is the per-room append-only message log with in-place
// edit support.
type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func scanMessage(s interface{ Scan(dest ...any) error }, m *model.ChatMessage) error {
	sender := &model.UserPublic{}
	if err := s.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.IsEdited, &m.CreatedAt, &m.UpdatedAt,
		&sender.ID, &sender.FirstName, &sender.LastName, &sender.AvatarURL, &sender.Role, &sender.Ministry); err != nil {
		return err
	}
	m.Sender = sender
	return nil
}

// Append validates and stores a new message, then refreshes the owning
// room's last-message cache. created_at is assigned here (server side), so
// room order never depends on client clocks.
func (r *MessageRepository) Append(ctx context.Context, roomID, senderID, content string) (*model.ChatMessage, error) {
	defer logger.DeferLogDuration("msg.Append", time.Now())()
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	m := &model.ChatMessage{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, room_id, sender_id, content, is_edited, created_at)
		 VALUES ($1, $2, $3, $4, false, $5)`,
		m.ID, m.RoomID, m.SenderID, m.Content, m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Append: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE chat_rooms SET last_message_content = $2, last_message_at = $3 WHERE id = $1`,
		roomID, m.Content, m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Append touch room: %w", err)
	}

	return r.GetByID(ctx, m.ID)
}

// Edit updates content in place. Only the sender may edit: the guard is part
// of the UPDATE itself, so a non-sender can never mutate the row. Edits set
// is_edited (monotone true) and updated_at, never sender_id, room_id or
// created_at, so the message's position in the log is unchanged.
func (r *MessageRepository) Edit(ctx context.Context, messageID, requesterID, newContent string) (*model.ChatMessage, error) {
	defer logger.DeferLogDuration("msg.Edit", time.Now())()
	if strings.TrimSpace(newContent) == "" {
		return nil, ErrEmptyContent
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE chat_messages SET content = $2, updated_at = $3, is_edited = true
		 WHERE id = $1 AND sender_id = $4`,
		messageID, newContent, time.Now().UTC(), requesterID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Edit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the message is gone or the requester is not the sender.
		if _, err := r.GetByID(ctx, messageID); errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrForbidden
	}
	return r.GetByID(ctx, messageID)
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m := &model.ChatMessage{}
	err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+msgCols+`
		 FROM chat_messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.id = $1`, id,
	), m)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, nil
}

// ListByRoom returns the room's messages ordered by (created_at, id)
// ascending, sender profiles attached. limit <= 0 means the full history
// (the behavior the views rely on; bounded loads pass an explicit limit and
// receive the newest messages, still in ascending order).
func (r *MessageRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]model.ChatMessage, error) {
	defer logger.DeferLogDuration("msg.ListByRoom", time.Now())()
	query := `SELECT ` + msgCols + `
		 FROM chat_messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.room_id = $1
		 ORDER BY m.created_at, m.id`
	args := []any{roomID}
	reversed := false
	if limit > 0 {
		// Fetch newest-first when truncating so the limit keeps the tail of
		// the log, then restore ascending order below.
		query = `SELECT ` + msgCols + `
		 FROM chat_messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.room_id = $1
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT $2`
		args = append(args, limit)
		reversed = true
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListByRoom query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.ChatMessage, 0, 64)
	for rows.Next() {
		var m model.ChatMessage
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("msgRepo.ListByRoom scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListByRoom rows: %w", err)
	}
	if reversed {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}
