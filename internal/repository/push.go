package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ecclesia/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PushSubscription is a stored browser push endpoint for one user.
type PushSubscription struct {
	Endpoint string
	UserID   string
	P256dh   string
	Auth     string
}

type PushRepository struct {
	pool *pgxpool.Pool
}

func NewPushRepository(pool *pgxpool.Pool) *PushRepository {
	return &PushRepository{pool: pool}
}

func (r *PushRepository) Save(ctx context.Context, s *PushSubscription) error {
	defer logger.DeferLogDuration("push.Save", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO push_subscriptions (endpoint, user_id, p256dh, auth, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (endpoint) DO UPDATE SET user_id = $2, p256dh = $3, auth = $4`,
		s.Endpoint, s.UserID, s.P256dh, s.Auth, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("pushRepo.Save: %w", err)
	}
	return nil
}

func (r *PushRepository) Delete(ctx context.Context, endpoint string) error {
	defer logger.DeferLogDuration("push.Delete", time.Now())()
	_, err := r.pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint)
	if err != nil {
		return fmt.Errorf("pushRepo.Delete: %w", err)
	}
	return nil
}

func (r *PushRepository) GetByUser(ctx context.Context, userID string) ([]PushSubscription, error) {
	defer logger.DeferLogDuration("push.GetByUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT endpoint, user_id, p256dh, auth FROM push_subscriptions WHERE user_id = $1`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("pushRepo.GetByUser query: %w", err)
	}
	defer rows.Close()

	subs := make([]PushSubscription, 0, 4)
	for rows.Next() {
		var s PushSubscription
		if err := rows.Scan(&s.Endpoint, &s.UserID, &s.P256dh, &s.Auth); err != nil {
			return nil, fmt.Errorf("pushRepo.GetByUser scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pushRepo.GetByUser rows: %w", err)
	}
	return subs, nil
}

// GetAll returns every stored subscription (used for congregation-wide
// announcements like pinned notices).
func (r *PushRepository) GetAll(ctx context.Context) ([]PushSubscription, error) {
	defer logger.DeferLogDuration("push.GetAll", time.Now())()
	rows, err := r.pool.Query(ctx, `SELECT endpoint, user_id, p256dh, auth FROM push_subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("pushRepo.GetAll query: %w", err)
	}
	defer rows.Close()

	subs := make([]PushSubscription, 0, 64)
	for rows.Next() {
		var s PushSubscription
		if err := rows.Scan(&s.Endpoint, &s.UserID, &s.P256dh, &s.Auth); err != nil {
			return nil, fmt.Errorf("pushRepo.GetAll scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pushRepo.GetAll rows: %w", err)
	}
	return subs, nil
}
