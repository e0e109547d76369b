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

const downloadCols = `id, title, COALESCE(description,''), COALESCE(category,''), stored_name, file_name, file_size, content_type, uploaded_by, created_at`

type DownloadRepository struct {
	pool *pgxpool.Pool
}

func NewDownloadRepository(pool *pgxpool.Pool) *DownloadRepository {
	return &DownloadRepository{pool: pool}
}

func scanDownload(s interface{ Scan(dest ...any) error }, d *model.Download) error {
	return s.Scan(&d.ID, &d.Title, &d.Description, &d.Category, &d.StoredName, &d.FileName, &d.FileSize, &d.ContentType, &d.UploadedBy, &d.CreatedAt)
}

func (r *DownloadRepository) Create(ctx context.Context, d *model.Download) error {
	defer logger.DeferLogDuration("download.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO downloads (id, title, description, category, stored_name, file_name, file_size, content_type, uploaded_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.Title, d.Description, d.Category, d.StoredName, d.FileName, d.FileSize, d.ContentType, d.UploadedBy, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("downloadRepo.Create: %w", err)
	}
	return nil
}

func (r *DownloadRepository) GetByID(ctx context.Context, id string) (*model.Download, error) {
	defer logger.DeferLogDuration("download.GetByID", time.Now())()
	d := &model.Download{}
	err := scanDownload(r.pool.QueryRow(ctx, `SELECT `+downloadCols+` FROM downloads WHERE id = $1`, id), d)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("downloadRepo.GetByID: %w", err)
	}
	return d, nil
}

// List returns downloads, optionally filtered by category, newest first.
func (r *DownloadRepository) List(ctx context.Context, category string, limit int) ([]model.Download, error) {
	defer logger.DeferLogDuration("download.List", time.Now())()
	sql := `SELECT ` + downloadCols + ` FROM downloads`
	args := []any{}
	if category != "" {
		sql += ` WHERE category = $1`
		args = append(args, category)
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("downloadRepo.List query: %w", err)
	}
	defer rows.Close()

	downloads := make([]model.Download, 0, limit)
	for rows.Next() {
		var d model.Download
		if err := scanDownload(rows, &d); err != nil {
			return nil, fmt.Errorf("downloadRepo.List scan: %w", err)
		}
		downloads = append(downloads, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("downloadRepo.List rows: %w", err)
	}
	return downloads, nil
}

func (r *DownloadRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("download.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM downloads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("downloadRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
