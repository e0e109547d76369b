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

const songCols = `id, title, COALESCE(artist,''), COALESCE(song_key,''), COALESCE(bpm,0), COALESCE(ministry,''), tags,
		 COALESCE(lyrics_url,''), COALESCE(chords_url,''), COALESCE(video_url,''), created_at`

type SongRepository struct {
	pool *pgxpool.Pool
}

func NewSongRepository(pool *pgxpool.Pool) *SongRepository {
	return &SongRepository{pool: pool}
}

func scanSong(s interface{ Scan(dest ...any) error }, sg *model.Song) error {
	return s.Scan(&sg.ID, &sg.Title, &sg.Artist, &sg.SongKey, &sg.BPM, &sg.Ministry, &sg.Tags,
		&sg.LyricsURL, &sg.ChordsURL, &sg.VideoURL, &sg.CreatedAt)
}

func (r *SongRepository) Create(ctx context.Context, s *model.Song) error {
	defer logger.DeferLogDuration("song.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO songs (id, title, artist, song_key, bpm, ministry, tags, lyrics_url, chords_url, video_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.Title, s.Artist, s.SongKey, s.BPM, s.Ministry, s.Tags, s.LyricsURL, s.ChordsURL, s.VideoURL, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("songRepo.Create: %w", err)
	}
	return nil
}

func (r *SongRepository) GetByID(ctx context.Context, id string) (*model.Song, error) {
	defer logger.DeferLogDuration("song.GetByID", time.Now())()
	s := &model.Song{}
	err := scanSong(r.pool.QueryRow(ctx, `SELECT `+songCols+` FROM songs WHERE id = $1`, id), s)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("songRepo.GetByID: %w", err)
	}
	return s, nil
}

// Search filters by title or artist substring and optionally by ministry.
// Empty query lists everything (alphabetical).
func (r *SongRepository) Search(ctx context.Context, query, ministry string, limit int) ([]model.Song, error) {
	defer logger.DeferLogDuration("song.Search", time.Now())()
	sql := `SELECT ` + songCols + ` FROM songs
		 WHERE (title ILIKE $1 OR artist ILIKE $1)`
	args := []any{"%" + query + "%"}
	if ministry != "" {
		sql += ` AND ministry = $2`
		args = append(args, ministry)
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY title LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("songRepo.Search query: %w", err)
	}
	defer rows.Close()

	songs := make([]model.Song, 0, limit)
	for rows.Next() {
		var s model.Song
		if err := scanSong(rows, &s); err != nil {
			return nil, fmt.Errorf("songRepo.Search scan: %w", err)
		}
		songs = append(songs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("songRepo.Search rows: %w", err)
	}
	return songs, nil
}

func (r *SongRepository) Update(ctx context.Context, s *model.Song) error {
	defer logger.DeferLogDuration("song.Update", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE songs SET title = $2, artist = $3, song_key = $4, bpm = $5, ministry = $6, tags = $7,
		        lyrics_url = $8, chords_url = $9, video_url = $10
		 WHERE id = $1`,
		s.ID, s.Title, s.Artist, s.SongKey, s.BPM, s.Ministry, s.Tags, s.LyricsURL, s.ChordsURL, s.VideoURL,
	)
	if err != nil {
		return fmt.Errorf("songRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SongRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("song.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM songs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("songRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
