// Package journal persists final transcripts to a local SQLite database.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chaz8081/gostt-live/internal/dispatch"
)

// Entry is one journaled utterance.
type Entry struct {
	ID        int64
	Session   string
	Utterance uint64
	Text      string
	Empty     bool
	CreatedAt time.Time
}

// Config configures the journal.
type Config struct {
	Path string
	// Retention drops entries older than this on Open and Prune. Zero keeps
	// everything.
	Retention time.Duration
}

// Store is a dispatch.Sink that records final results. Partials are not
// stored.
type Store struct {
	db        *sql.DB
	log       *slog.Logger
	retention time.Duration
	clock     func() time.Time

	mu       sync.Mutex
	sessions map[string]bool
}

// Open creates or opens the database at cfg.Path.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("journal: no path configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping sqlite: %w", err)
	}

	s := &Store{
		db:        db,
		log:       logger.With("component", "journal"),
		retention: cfg.Retention,
		clock:     time.Now,
		sessions:  make(map[string]bool),
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Prune(ctx); err != nil {
		s.log.Warn("journal prune on open failed", "error", err)
	}
	s.log.Info("journal opened", "path", cfg.Path)
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    started_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS transcripts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    utterance INTEGER NOT NULL,
    text TEXT NOT NULL,
    empty INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_transcripts_session ON transcripts(session_id, utterance);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("journal: init schema: %w", err)
	}
	return nil
}

func (s *Store) Name() string { return "journal" }

// Publish records final and completed results.
func (s *Store) Publish(ctx context.Context, r dispatch.Result) error {
	if !r.IsFinal() {
		return nil
	}
	created := r.Time
	if created.IsZero() {
		created = s.clock()
	}
	if err := s.ensureSession(ctx, r.Session, created); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts(session_id, utterance, text, empty, created_at) VALUES(?, ?, ?, ?, ?)`,
		r.Session, int64(r.Utterance), r.Text, r.Kind == dispatch.Completed, created.UnixNano())
	if err != nil {
		return fmt.Errorf("journal: insert transcript: %w", err)
	}
	return nil
}

func (s *Store) ensureSession(ctx context.Context, session string, at time.Time) error {
	s.mu.Lock()
	known := s.sessions[session]
	s.mu.Unlock()
	if known {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, started_at) VALUES(?, ?) ON CONFLICT(session_id) DO NOTHING`,
		session, at.UnixNano())
	if err != nil {
		return fmt.Errorf("journal: insert session: %w", err)
	}
	s.mu.Lock()
	s.sessions[session] = true
	s.mu.Unlock()
	return nil
}

// List returns up to limit entries for session in utterance order. An empty
// session lists the most recent entries across all sessions, oldest first.
func (s *Store) List(ctx context.Context, session string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		rows *sql.Rows
		err  error
	)
	if session != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, session_id, utterance, text, empty, created_at FROM transcripts
			 WHERE session_id = ? ORDER BY utterance ASC, id ASC LIMIT ?`, session, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, session_id, utterance, text, empty, created_at FROM (
			   SELECT * FROM transcripts ORDER BY id DESC LIMIT ?
			 ) ORDER BY id ASC`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			utterance int64
			created   int64
		)
		if err := rows.Scan(&e.ID, &e.Session, &utterance, &e.Text, &e.Empty, &created); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Utterance = uint64(utterance)
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries and sessions older than the retention window.
func (s *Store) Prune(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}
	cutoff := s.clock().Add(-s.retention).UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin prune: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM transcripts WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("journal: prune transcripts: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE started_at < ? AND session_id NOT IN (SELECT DISTINCT session_id FROM transcripts)`,
		cutoff); err != nil {
		return fmt.Errorf("journal: prune sessions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal: commit prune: %w", err)
	}

	s.mu.Lock()
	s.sessions = make(map[string]bool)
	s.mu.Unlock()
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.log.Info("journal pruned", "removed", n)
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
