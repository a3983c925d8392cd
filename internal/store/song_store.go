package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/songforge/api/internal/model"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS songs (
	task_id    TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	style      TEXT NOT NULL,
	mood       TEXT NOT NULL DEFAULT '',
	theme      TEXT NOT NULL DEFAULT '',
	lyrics     TEXT NOT NULL,
	status     TEXT NOT NULL,
	audio_url  TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_songs_status ON songs (status);
`

// SongStore persists song records in Postgres. The task_id primary key
// enforces the one-job-per-task invariant; terminal transitions go through
// the conditional update in ApplyTerminal.
type SongStore struct {
	db *sqlx.DB
}

func NewSongStore(db *sqlx.DB) *SongStore {
	return &SongStore{db: db}
}

// EnsureSchema creates the songs table if it does not exist
func (s *SongStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Create inserts a new song row. Returns model.ErrDuplicateTaskID when a row
// for the task ID already exists; the existing row is left untouched.
func (s *SongStore) Create(ctx context.Context, song *model.Song) error {
	query := `
		INSERT INTO songs (
			task_id, title, style, mood, theme,
			lyrics, status, audio_url, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		song.TaskID,
		song.Title,
		song.Style,
		song.Mood,
		song.Theme,
		song.Lyrics,
		song.Status,
		song.AudioURL,
		song.CreatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return model.ErrDuplicateTaskID
		}
		return fmt.Errorf("failed to create song: %w", err)
	}

	return nil
}

// FindByTaskID returns the song for a task ID or model.ErrSongNotFound
func (s *SongStore) FindByTaskID(ctx context.Context, taskID string) (*model.Song, error) {
	var song model.Song
	query := `
		SELECT task_id, title, style, mood, theme,
		       lyrics, status, audio_url, created_at
		FROM songs
		WHERE task_id = $1
	`

	err := s.db.GetContext(ctx, &song, query, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSongNotFound
		}
		return nil, fmt.Errorf("failed to get song: %w", err)
	}

	return &song, nil
}

// ApplyTerminal performs the terminal transition as a single conditional
// update: the row is touched only while still pending, so concurrent
// reconciliation attempts cannot both succeed. Returns whether this call won.
func (s *SongStore) ApplyTerminal(ctx context.Context, taskID string, status model.SongStatus, audioURL *string) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("status %q is not terminal", status)
	}

	query := `
		UPDATE songs
		SET status = $1, audio_url = $2
		WHERE task_id = $3 AND status = $4
	`

	res, err := s.db.ExecContext(ctx, query, status, audioURL, taskID, model.SongStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to apply terminal state: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

// ListPending returns all songs still awaiting a terminal report, oldest first
func (s *SongStore) ListPending(ctx context.Context) ([]model.Song, error) {
	var songs []model.Song
	query := `
		SELECT task_id, title, style, mood, theme,
		       lyrics, status, audio_url, created_at
		FROM songs
		WHERE status = $1
		ORDER BY created_at ASC
	`

	if err := s.db.SelectContext(ctx, &songs, query, model.SongStatusPending); err != nil {
		return nil, fmt.Errorf("failed to list pending songs: %w", err)
	}

	return songs, nil
}
