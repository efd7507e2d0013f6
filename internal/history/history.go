package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// tsLayout is fixed width so created_at sorts lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one stored transcription.
type Entry struct {
	ID        string
	Text      string
	Provider  string
	Audio     time.Duration
	CreatedAt time.Time
}

// Store keeps the most recent transcriptions in SQLite.
type Store struct {
	db    *sql.DB
	max   int
	log   *zap.SugaredLogger
	clock func() time.Time
}

// Open creates or opens the database at path. max <= 0 keeps everything.
func Open(ctx context.Context, path string, max int, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(2000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, max: max, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Prune(ctx); err != nil {
		log.Warnw("history prune on open failed", "error", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS transcriptions (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    provider TEXT,
    audio_ms INTEGER,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_created ON transcriptions(created_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores e and trims the table to the configured maximum.
func (s *Store) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcriptions(id, text, provider, audio_ms, created_at) VALUES(?, ?, ?, ?, ?)`,
		e.ID, e.Text, e.Provider, e.Audio.Milliseconds(), e.CreatedAt.UTC().Format(tsLayout))
	if err != nil {
		return e, fmt.Errorf("insert transcription: %w", err)
	}
	if err := s.Prune(ctx); err != nil {
		return e, err
	}
	s.log.Debugw("saved transcription to history", "id", e.ID)
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, provider, audio_ms, created_at FROM transcriptions
		 ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			audioMs int64
			created string
		)
		if err := rows.Scan(&e.ID, &e.Text, &e.Provider, &audioMs, &created); err != nil {
			return nil, err
		}
		e.Audio = time.Duration(audioMs) * time.Millisecond
		if ts, err := time.Parse(tsLayout, created); err == nil {
			e.CreatedAt = ts
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes everything but the newest max entries.
func (s *Store) Prune(ctx context.Context) error {
	if s.max <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM transcriptions WHERE id IN (
		SELECT id FROM transcriptions ORDER BY created_at DESC LIMIT -1 OFFSET ?
	)`, s.max)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}
