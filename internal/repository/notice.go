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

const noticeCols = `n.id, n.author_id, n.title, n.content, COALESCE(n.image_url,''), n.is_pinned, n.created_at,
		        (SELECT COUNT(*) FROM notice_likes WHERE notice_id = n.id),
		        (SELECT COUNT(*) FROM notice_comments WHERE notice_id = n.id),
		        u.id, u.first_name, u.last_name, COALESCE(u.avatar_url,''), u.role, COALESCE(u.ministry,'')`

type NoticeRepository struct {
	pool *pgxpool.Pool
}

func NewNoticeRepository(pool *pgxpool.Pool) *NoticeRepository {
	return &NoticeRepository{pool: pool}
}

func scanNotice(s interface{ Scan(dest ...any) error }, n *model.Notice) error {
	author := &model.UserPublic{}
	if err := s.Scan(&n.ID, &n.AuthorID, &n.Title, &n.Content, &n.ImageURL, &n.IsPinned, &n.CreatedAt,
		&n.LikesCount, &n.CommentsCount,
		&author.ID, &author.FirstName, &author.LastName, &author.AvatarURL, &author.Role, &author.Ministry); err != nil {
		return err
	}
	n.Author = author
	return nil
}

func (r *NoticeRepository) Create(ctx context.Context, n *model.Notice) error {
	defer logger.DeferLogDuration("notice.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notices (id, author_id, title, content, image_url, is_pinned, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.AuthorID, n.Title, n.Content, n.ImageURL, n.IsPinned, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("noticeRepo.Create: %w", err)
	}
	return nil
}

func (r *NoticeRepository) GetByID(ctx context.Context, id string) (*model.Notice, error) {
	defer logger.DeferLogDuration("notice.GetByID", time.Now())()
	n := &model.Notice{}
	err := scanNotice(r.pool.QueryRow(ctx,
		`SELECT `+noticeCols+` FROM notices n JOIN users u ON u.id = n.author_id WHERE n.id = $1`, id,
	), n)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("noticeRepo.GetByID: %w", err)
	}
	return n, nil
}

// List returns notices pinned-first, newest-first within each group.
func (r *NoticeRepository) List(ctx context.Context, limit int) ([]model.Notice, error) {
	defer logger.DeferLogDuration("notice.List", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+noticeCols+`
		 FROM notices n
		 JOIN users u ON u.id = n.author_id
		 ORDER BY n.is_pinned DESC, n.created_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("noticeRepo.List query: %w", err)
	}
	defer rows.Close()

	notices := make([]model.Notice, 0, limit)
	for rows.Next() {
		var n model.Notice
		if err := scanNotice(rows, &n); err != nil {
			return nil, fmt.Errorf("noticeRepo.List scan: %w", err)
		}
		notices = append(notices, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("noticeRepo.List rows: %w", err)
	}
	return notices, nil
}

func (r *NoticeRepository) Update(ctx context.Context, id, title, content, imageURL string) error {
	defer logger.DeferLogDuration("notice.Update", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE notices SET title = $2, content = $3, image_url = $4 WHERE id = $1`,
		id, title, content, imageURL,
	)
	if err != nil {
		return fmt.Errorf("noticeRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NoticeRepository) SetPinned(ctx context.Context, id string, pinned bool) error {
	defer logger.DeferLogDuration("notice.SetPinned", time.Now())()
	tag, err := r.pool.Exec(ctx, `UPDATE notices SET is_pinned = $2 WHERE id = $1`, id, pinned)
	if err != nil {
		return fmt.Errorf("noticeRepo.SetPinned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NoticeRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("notice.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM notices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("noticeRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddLike records a like once per user (repeat likes are no-ops).
func (r *NoticeRepository) AddLike(ctx context.Context, noticeID, userID string) error {
	defer logger.DeferLogDuration("notice.AddLike", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notice_likes (notice_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		noticeID, userID,
	)
	if err != nil {
		return fmt.Errorf("noticeRepo.AddLike: %w", err)
	}
	return nil
}

func (r *NoticeRepository) RemoveLike(ctx context.Context, noticeID, userID string) error {
	defer logger.DeferLogDuration("notice.RemoveLike", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM notice_likes WHERE notice_id = $1 AND user_id = $2`,
		noticeID, userID,
	)
	if err != nil {
		return fmt.Errorf("noticeRepo.RemoveLike: %w", err)
	}
	return nil
}

func (r *NoticeRepository) AddComment(ctx context.Context, c *model.NoticeComment) error {
	defer logger.DeferLogDuration("notice.AddComment", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notice_comments (id, notice_id, author_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.NoticeID, c.AuthorID, c.Content, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("noticeRepo.AddComment: %w", err)
	}
	return nil
}

func (r *NoticeRepository) GetComments(ctx context.Context, noticeID string) ([]model.NoticeComment, error) {
	defer logger.DeferLogDuration("notice.GetComments", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.notice_id, c.author_id, c.content, c.created_at,
		        u.id, u.first_name, u.last_name, COALESCE(u.avatar_url,''), u.role, COALESCE(u.ministry,'')
		 FROM notice_comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.notice_id = $1
		 ORDER BY c.created_at`, noticeID,
	)
	if err != nil {
		return nil, fmt.Errorf("noticeRepo.GetComments query: %w", err)
	}
	defer rows.Close()

	comments := make([]model.NoticeComment, 0, 8)
	for rows.Next() {
		var c model.NoticeComment
		author := &model.UserPublic{}
		if err := rows.Scan(&c.ID, &c.NoticeID, &c.AuthorID, &c.Content, &c.CreatedAt,
			&author.ID, &author.FirstName, &author.LastName, &author.AvatarURL, &author.Role, &author.Ministry); err != nil {
			return nil, fmt.Errorf("noticeRepo.GetComments scan: %w", err)
		}
		c.Author = author
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("noticeRepo.GetComments rows: %w", err)
	}
	return comments, nil
}
