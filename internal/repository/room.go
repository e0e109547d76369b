package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecclesia/internal/logger"
	"github.com/ecclesia/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const roomCols = `id, COALESCE(name,''), created_by, created_at, last_message_content, last_message_at`

// foreignKeyViolation is the PostgreSQL error code for a failed FK check.
const foreignKeyViolation = "23503"

// RoomRepository is the chat room registry: it resolves, creates and lists
// rooms visible to a user.
type RoomRepository struct {
	pool *pgxpool.Pool
}

func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

func scanRoom(s interface{ Scan(dest ...any) error }, c *model.ChatRoom) error {
	return s.Scan(&c.ID, &c.Name, &c.CreatedBy, &c.CreatedAt, &c.LastMessageContent, &c.LastMessageAt)
}

// pairKey is the canonical key of an unordered user pair. A partial unique
// index on this column is what makes room creation race-free across clients.
func pairKey(userA, userB string) string {
	if userA < userB {
		return userA + ":" + userB
	}
	return userB + ":" + userA
}

func (r *RoomRepository) GetByID(ctx context.Context, id string) (*model.ChatRoom, error) {
	defer logger.DeferLogDuration("room.GetByID", time.Now())()
	c := &model.ChatRoom{}
	row := r.pool.QueryRow(ctx, `SELECT `+roomCols+` FROM chat_rooms WHERE id = $1`, id)
	if err := scanRoom(row, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("roomRepo.GetByID: %w", err)
	}
	return c, nil
}

// ListRoomsForUser returns every room the user participates in, plus the
// global room (always included, even when the user has no private rooms yet).
// Rooms carry the denormalized last-message metadata for the list view.
func (r *RoomRepository) ListRoomsForUser(ctx context.Context, userID string) ([]model.ChatRoom, error) {
	defer logger.DeferLogDuration("room.ListRoomsForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+roomCols+` FROM chat_rooms c
		 WHERE c.id = $2
		    OR EXISTS (SELECT 1 FROM room_participants WHERE room_id = c.id AND user_id = $1)
		 ORDER BY c.last_message_at DESC NULLS LAST, c.id`,
		userID, model.GlobalRoomID,
	)
	if err != nil {
		return nil, fmt.Errorf("roomRepo.ListRoomsForUser query: %w", err)
	}
	defer rows.Close()

	rooms := make([]model.ChatRoom, 0, 16)
	for rows.Next() {
		var c model.ChatRoom
		if err := scanRoom(rows, &c); err != nil {
			return nil, fmt.Errorf("roomRepo.ListRoomsForUser scan: %w", err)
		}
		rooms = append(rooms, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roomRepo.ListRoomsForUser rows: %w", err)
	}
	return rooms, nil
}

// GetOrCreatePrivateRoom resolves the room for an unordered user pair,
// creating it when absent. The upsert on pair_key makes concurrent calls for
// the same pair converge on a single room id; the losing insert returns the
// winner's row. Both users end up registered as participants either way.
func (r *RoomRepository) GetOrCreatePrivateRoom(ctx context.Context, userA, userB string) (*model.ChatRoom, error) {
	defer logger.DeferLogDuration("room.GetOrCreatePrivateRoom", time.Now())()
	if userA == userB {
		return nil, ErrSamePair
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("roomRepo.GetOrCreatePrivateRoom begin: %w", err)
	}
	defer tx.Rollback(ctx)

	c := &model.ChatRoom{}
	row := tx.QueryRow(ctx,
		`INSERT INTO chat_rooms (id, name, pair_key, created_by, created_at)
		 VALUES ($1, '', $2, $3, $4)
		 ON CONFLICT (pair_key) WHERE pair_key IS NOT NULL
		 DO UPDATE SET pair_key = EXCLUDED.pair_key
		 RETURNING `+roomCols,
		uuid.New().String(), pairKey(userA, userB), userA, time.Now().UTC(),
	)
	if err := scanRoom(row, c); err != nil {
		return nil, fmt.Errorf("roomRepo.GetOrCreatePrivateRoom: %w", err)
	}

	// Room and participants commit together: a nonexistent peer must not
	// leave an orphan room claiming the pair_key.
	for _, uid := range []string{userA, userB} {
		_, err := tx.Exec(ctx,
			`INSERT INTO room_participants (room_id, user_id, joined_at)
			 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			c.ID, uid, time.Now().UTC(),
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("roomRepo.GetOrCreatePrivateRoom participant: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("roomRepo.GetOrCreatePrivateRoom commit: %w", err)
	}
	return c, nil
}

// EnsureGlobalRoom is the idempotent bootstrap of the reserved global room.
// Losing a creation race with another process is "already exists", never an
// error; the invoking user is registered as a participant either way.
func (r *RoomRepository) EnsureGlobalRoom(ctx context.Context, userID string) (*model.ChatRoom, error) {
	defer logger.DeferLogDuration("room.EnsureGlobalRoom", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_rooms (id, name, created_by, created_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
		model.GlobalRoomID, model.GlobalRoomName, userID, time.Now().UTC(),
	)
	if err != nil {
		logger.Errorf("roomRepo.EnsureGlobalRoom insert: %v", err)
	}
	if err := r.AddParticipant(ctx, model.GlobalRoomID, userID); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, model.GlobalRoomID)
}

func (r *RoomRepository) AddParticipant(ctx context.Context, roomID, userID string) error {
	defer logger.DeferLogDuration("room.AddParticipant", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO room_participants (room_id, user_id, joined_at)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		roomID, userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("roomRepo.AddParticipant: %w", err)
	}
	return nil
}

func (r *RoomRepository) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	defer logger.DeferLogDuration("room.IsParticipant", time.Now())()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("roomRepo.IsParticipant: %w", err)
	}
	return exists, nil
}

func (r *RoomRepository) GetParticipants(ctx context.Context, roomID string) ([]model.UserPublic, error) {
	defer logger.DeferLogDuration("room.GetParticipants", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.first_name, u.last_name, COALESCE(u.avatar_url,''), u.role, COALESCE(u.ministry,'')
		 FROM users u
		 JOIN room_participants rp ON rp.user_id = u.id
		 WHERE rp.room_id = $1
		 ORDER BY rp.joined_at`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("roomRepo.GetParticipants query: %w", err)
	}
	defer rows.Close()

	users := make([]model.UserPublic, 0, 8)
	for rows.Next() {
		var u model.UserPublic
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.AvatarURL, &u.Role, &u.Ministry); err != nil {
			return nil, fmt.Errorf("roomRepo.GetParticipants scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roomRepo.GetParticipants rows: %w", err)
	}
	return users, nil
}

func (r *RoomRepository) GetParticipantIDs(ctx context.Context, roomID string) ([]string, error) {
	defer logger.DeferLogDuration("room.GetParticipantIDs", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM room_participants WHERE room_id = $1`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("roomRepo.GetParticipantIDs query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("roomRepo.GetParticipantIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roomRepo.GetParticipantIDs rows: %w", err)
	}
	return ids, nil
}
