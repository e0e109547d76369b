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

const studyCols = `s.id, s.title, COALESCE(s.theme,''), COALESCE(s.base_text,''), s.content, COALESCE(s.cover_url,''), s.author_id,
		        (SELECT COUNT(*) FROM study_likes WHERE study_id = s.id),
		        (SELECT COUNT(*) FROM study_comments WHERE study_id = s.id),
		        s.created_at,
		        u.id, u.first_name, u.last_name, COALESCE(u.avatar_url,''), u.role, COALESCE(u.ministry,'')`

type StudyRepository struct {
	pool *pgxpool.Pool
}

func NewStudyRepository(pool *pgxpool.Pool) *StudyRepository {
	return &StudyRepository{pool: pool}
}

func scanStudy(s interface{ Scan(dest ...any) error }, st *model.Study) error {
	author := &model.UserPublic{}
	if err := s.Scan(&st.ID, &st.Title, &st.Theme, &st.BaseText, &st.Content, &st.CoverURL, &st.AuthorID,
		&st.LikesCount, &st.CommentsCount, &st.CreatedAt,
		&author.ID, &author.FirstName, &author.LastName, &author.AvatarURL, &author.Role, &author.Ministry); err != nil {
		return err
	}
	st.Author = author
	return nil
}

func (r *StudyRepository) Create(ctx context.Context, s *model.Study) error {
	defer logger.DeferLogDuration("study.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO studies (id, title, theme, base_text, content, cover_url, author_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.Title, s.Theme, s.BaseText, s.Content, s.CoverURL, s.AuthorID, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("studyRepo.Create: %w", err)
	}
	return nil
}

func (r *StudyRepository) GetByID(ctx context.Context, id string) (*model.Study, error) {
	defer logger.DeferLogDuration("study.GetByID", time.Now())()
	s := &model.Study{}
	err := scanStudy(r.pool.QueryRow(ctx,
		`SELECT `+studyCols+` FROM studies s JOIN users u ON u.id = s.author_id WHERE s.id = $1`, id,
	), s)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("studyRepo.GetByID: %w", err)
	}
	return s, nil
}

func (r *StudyRepository) List(ctx context.Context, limit int) ([]model.Study, error) {
	defer logger.DeferLogDuration("study.List", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+studyCols+`
		 FROM studies s
		 JOIN users u ON u.id = s.author_id
		 ORDER BY s.created_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("studyRepo.List query: %w", err)
	}
	defer rows.Close()

	studies := make([]model.Study, 0, limit)
	for rows.Next() {
		var s model.Study
		if err := scanStudy(rows, &s); err != nil {
			return nil, fmt.Errorf("studyRepo.List scan: %w", err)
		}
		studies = append(studies, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("studyRepo.List rows: %w", err)
	}
	return studies, nil
}

func (r *StudyRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("study.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM studies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("studyRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *StudyRepository) AddLike(ctx context.Context, studyID, userID string) error {
	defer logger.DeferLogDuration("study.AddLike", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO study_likes (study_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		studyID, userID,
	)
	if err != nil {
		return fmt.Errorf("studyRepo.AddLike: %w", err)
	}
	return nil
}

func (r *StudyRepository) AddComment(ctx context.Context, c *model.StudyComment) error {
	defer logger.DeferLogDuration("study.AddComment", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO study_comments (id, study_id, author_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.StudyID, c.AuthorID, c.Content, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("studyRepo.AddComment: %w", err)
	}
	return nil
}

func (r *StudyRepository) GetComments(ctx context.Context, studyID string) ([]model.StudyComment, error) {
	defer logger.DeferLogDuration("study.GetComments", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.study_id, c.author_id, c.content, c.created_at,
		        u.id, u.first_name, u.last_name, COALESCE(u.avatar_url,''), u.role, COALESCE(u.ministry,'')
		 FROM study_comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.study_id = $1
		 ORDER BY c.created_at`, studyID,
	)
	if err != nil {
		return nil, fmt.Errorf("studyRepo.GetComments query: %w", err)
	}
	defer rows.Close()

	comments := make([]model.StudyComment, 0, 8)
	for rows.Next() {
		var c model.StudyComment
		author := &model.UserPublic{}
		if err := rows.Scan(&c.ID, &c.StudyID, &c.AuthorID, &c.Content, &c.CreatedAt,
			&author.ID, &author.FirstName, &author.LastName, &author.AvatarURL, &author.Role, &author.Ministry); err != nil {
			return nil, fmt.Errorf("studyRepo.GetComments scan: %w", err)
		}
		c.Author = author
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("studyRepo.GetComments rows: %w", err)
	}
	return comments, nil
}

func (r *StudyRepository) RemoveLike(ctx context.Context, studyID, userID string) error {
	defer logger.DeferLogDuration("study.RemoveLike", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM study_likes WHERE study_id = $1 AND user_id = $2`,
		studyID, userID,
	)
	if err != nil {
		return fmt.Errorf("studyRepo.RemoveLike: %w", err)
	}
	return nil
}
