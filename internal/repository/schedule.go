package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecclesia/internal/logger"
	"github.com/ecclesia/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const scheduleCols = `s.id, s.name, COALESCE(s.description,''), s.starts_at, s.responsible_id,
		        u.first_name || ' ' || u.last_name, s.status, s.created_at`

type ScheduleRepository struct {
	pool *pgxpool.Pool
}

func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func scanSchedule(s interface{ Scan(dest ...any) error }, sc *model.Schedule) error {
	return s.Scan(&sc.ID, &sc.Name, &sc.Description, &sc.StartsAt, &sc.ResponsibleID, &sc.ResponsibleName, &sc.Status, &sc.CreatedAt)
}

func (r *ScheduleRepository) Create(ctx context.Context, s *model.Schedule) error {
	defer logger.DeferLogDuration("schedule.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO schedules (id, name, description, starts_at, responsible_id, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.Name, s.Description, s.StartsAt, s.ResponsibleID, s.Status, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("scheduleRepo.Create: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	defer logger.DeferLogDuration("schedule.GetByID", time.Now())()
	s := &model.Schedule{}
	err := scanSchedule(r.pool.QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM schedules s JOIN users u ON u.id = s.responsible_id WHERE s.id = $1`, id,
	), s)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scheduleRepo.GetByID: %w", err)
	}
	return s, nil
}

// ListUpcoming returns schedules starting after the given time, soonest first.
func (r *ScheduleRepository) ListUpcoming(ctx context.Context, after time.Time, limit int) ([]model.Schedule, error) {
	defer logger.DeferLogDuration("schedule.ListUpcoming", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+scheduleCols+`
		 FROM schedules s
		 JOIN users u ON u.id = s.responsible_id
		 WHERE s.starts_at >= $1 AND s.status != 'canceled'
		 ORDER BY s.starts_at
		 LIMIT $2`, after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("scheduleRepo.ListUpcoming query: %w", err)
	}
	defer rows.Close()

	schedules := make([]model.Schedule, 0, limit)
	for rows.Next() {
		var s model.Schedule
		if err := scanSchedule(rows, &s); err != nil {
			return nil, fmt.Errorf("scheduleRepo.ListUpcoming scan: %w", err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduleRepo.ListUpcoming rows: %w", err)
	}
	return schedules, nil
}

func (r *ScheduleRepository) Update(ctx context.Context, s *model.Schedule) error {
	defer logger.DeferLogDuration("schedule.Update", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE schedules SET name = $2, description = $3, starts_at = $4, responsible_id = $5, status = $6 WHERE id = $1`,
		s.ID, s.Name, s.Description, s.StartsAt, s.ResponsibleID, s.Status,
	)
	if err != nil {
		return fmt.Errorf("scheduleRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ScheduleRepository) SetStatus(ctx context.Context, id string, status model.ScheduleStatus) error {
	defer logger.DeferLogDuration("schedule.SetStatus", time.Now())()
	tag, err := r.pool.Exec(ctx, `UPDATE schedules SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("scheduleRepo.SetStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("schedule.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("scheduleRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
