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
	"github.com/jackc/pgx/v5/pgxpool"
)

const liturgyCols = `id, theme, COALESCE(verse,''), service_date, is_active, public_enabled, current_step, created_by, created_at`

// LiturgyRepository stores service plans and their ordered steps. The
// "at most one active" rule is enforced by a partial unique index plus a
// deactivate-then-activate transaction.
type LiturgyRepository struct {
	pool *pgxpool.Pool
}

func NewLiturgyRepository(pool *pgxpool.Pool) *LiturgyRepository {
	return &LiturgyRepository{pool: pool}
}

func scanLiturgy(s interface{ Scan(dest ...any) error }, l *model.Liturgy) error {
	return s.Scan(&l.ID, &l.Theme, &l.Verse, &l.ServiceDate, &l.IsActive, &l.PublicEnabled,
		&l.CurrentStep, &l.CreatedBy, &l.CreatedAt)
}

// Create stores the liturgy and its steps in one transaction. Step positions
// are assigned from slice order.
func (r *LiturgyRepository) Create(ctx context.Context, l *model.Liturgy) error {
	defer logger.DeferLogDuration("liturgy.Create", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("liturgyRepo.Create begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO liturgies (id, theme, verse, service_date, is_active, public_enabled, current_step, created_by, created_at)
		 VALUES ($1, $2, $3, $4, false, $5, 0, $6, $7)`,
		l.ID, l.Theme, l.Verse, l.ServiceDate, l.PublicEnabled, l.CreatedBy, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("liturgyRepo.Create: %w", err)
	}
	if err := insertSteps(ctx, tx, l.ID, l.Steps); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("liturgyRepo.Create commit: %w", err)
	}
	return nil
}

func insertSteps(ctx context.Context, tx pgx.Tx, liturgyID string, steps []model.LiturgyStep) error {
	for i := range steps {
		s := &steps[i]
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		s.LiturgyID = liturgyID
		s.Position = i
		if s.SongIDs == nil {
			s.SongIDs = []string{}
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO liturgy_steps (id, liturgy_id, position, title, step_type, responsible_id, description, duration_minutes, song_ids)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			s.ID, liturgyID, i, s.Title, s.StepType, s.ResponsibleID, s.Description, s.DurationMinutes, s.SongIDs,
		)
		if err != nil {
			return fmt.Errorf("liturgyRepo step %d: %w", i, err)
		}
	}
	return nil
}

func (r *LiturgyRepository) GetByID(ctx context.Context, id string) (*model.Liturgy, error) {
	defer logger.DeferLogDuration("liturgy.GetByID", time.Now())()
	l := &model.Liturgy{}
	err := scanLiturgy(r.pool.QueryRow(ctx,
		`SELECT `+liturgyCols+` FROM liturgies WHERE id = $1`, id,
	), l)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("liturgyRepo.GetByID: %w", err)
	}
	if err := r.loadSteps(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// GetActive returns the currently active liturgy with its steps, or
// ErrNotFound when no liturgy is active.
func (r *LiturgyRepository) GetActive(ctx context.Context) (*model.Liturgy, error) {
	defer logger.DeferLogDuration("liturgy.GetActive", time.Now())()
	l := &model.Liturgy{}
	err := scanLiturgy(r.pool.QueryRow(ctx,
		`SELECT `+liturgyCols+` FROM liturgies WHERE is_active LIMIT 1`,
	), l)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("liturgyRepo.GetActive: %w", err)
	}
	if err := r.loadSteps(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *LiturgyRepository) loadSteps(ctx context.Context, l *model.Liturgy) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, liturgy_id, position, title, step_type, responsible_id, description, duration_minutes, song_ids
		 FROM liturgy_steps WHERE liturgy_id = $1 ORDER BY position`, l.ID,
	)
	if err != nil {
		return fmt.Errorf("liturgyRepo.loadSteps query: %w", err)
	}
	defer rows.Close()

	l.Steps = make([]model.LiturgyStep, 0, 8)
	for rows.Next() {
		var s model.LiturgyStep
		if err := rows.Scan(&s.ID, &s.LiturgyID, &s.Position, &s.Title, &s.StepType,
			&s.ResponsibleID, &s.Description, &s.DurationMinutes, &s.SongIDs); err != nil {
			return fmt.Errorf("liturgyRepo.loadSteps scan: %w", err)
		}
		l.Steps = append(l.Steps, s)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("liturgyRepo.loadSteps rows: %w", err)
	}
	return nil
}

// List returns liturgies newest service first, steps attached.
func (r *LiturgyRepository) List(ctx context.Context, limit int) ([]model.Liturgy, error) {
	defer logger.DeferLogDuration("liturgy.List", time.Now())()
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+liturgyCols+` FROM liturgies ORDER BY service_date DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("liturgyRepo.List query: %w", err)
	}
	defer rows.Close()

	liturgies := make([]model.Liturgy, 0, 16)
	for rows.Next() {
		var l model.Liturgy
		if err := scanLiturgy(rows, &l); err != nil {
			return nil, fmt.Errorf("liturgyRepo.List scan: %w", err)
		}
		liturgies = append(liturgies, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("liturgyRepo.List rows: %w", err)
	}
	for i := range liturgies {
		if err := r.loadSteps(ctx, &liturgies[i]); err != nil {
			return nil, err
		}
	}
	return liturgies, nil
}

// Update replaces the liturgy's fields and its whole step list in one
// transaction; current_step is clamped into the new list's bounds.
func (r *LiturgyRepository) Update(ctx context.Context, l *model.Liturgy) error {
	defer logger.DeferLogDuration("liturgy.Update", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("liturgyRepo.Update begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE liturgies
		 SET theme = $2, verse = $3, service_date = $4, public_enabled = $5,
		     current_step = LEAST(current_step, GREATEST($6 - 1, 0))
		 WHERE id = $1`,
		l.ID, l.Theme, l.Verse, l.ServiceDate, l.PublicEnabled, len(l.Steps),
	)
	if err != nil {
		return fmt.Errorf("liturgyRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM liturgy_steps WHERE liturgy_id = $1`, l.ID); err != nil {
		return fmt.Errorf("liturgyRepo.Update clear steps: %w", err)
	}
	if err := insertSteps(ctx, tx, l.ID, l.Steps); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("liturgyRepo.Update commit: %w", err)
	}
	return nil
}

func (r *LiturgyRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("liturgy.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM liturgies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("liturgyRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive makes the given liturgy the one active service plan, resetting
// its progress. Any previously active liturgy is deactivated in the same
// transaction, so the partial unique index never rejects the switch.
func (r *LiturgyRepository) SetActive(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("liturgy.SetActive", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("liturgyRepo.SetActive begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE liturgies SET is_active = false WHERE is_active`); err != nil {
		return fmt.Errorf("liturgyRepo.SetActive clear: %w", err)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE liturgies SET is_active = true, current_step = 0 WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("liturgyRepo.SetActive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("liturgyRepo.SetActive commit: %w", err)
	}
	return nil
}

func (r *LiturgyRepository) Deactivate(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("liturgy.Deactivate", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE liturgies SET is_active = false WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("liturgyRepo.Deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCurrentStep moves the running service to the given step index. The
// index must address an existing step of that liturgy.
func (r *LiturgyRepository) SetCurrentStep(ctx context.Context, id string, step int) error {
	defer logger.DeferLogDuration("liturgy.SetCurrentStep", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE liturgies SET current_step = $2
		 WHERE id = $1
		   AND $2 >= 0
		   AND $2 < (SELECT COUNT(*) FROM liturgy_steps WHERE liturgy_id = $1)`,
		id, step,
	)
	if err != nil {
		return fmt.Errorf("liturgyRepo.SetCurrentStep: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrInvalidStep
	}
	return nil
}
