// Package state persists which issue fingerprints have already been
// published per revision, so repeated reviews of the same revision never
// re-post comments.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sprite-ai/revmcp/internal/model"
)

// Published is one previously-published issue, as much of it as the
// near-duplicate check needs to compare against new candidates.
type Published struct {
	Fingerprint string
	File        string
	Line        int
	Message     string
	PublishedAt time.Time
}

// Store is the SQLite-backed publish state.
type Store struct {
	conn *sql.DB
}

// Open opens or creates the state database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS published_issues (
			revision     TEXT NOT NULL,
			fingerprint  TEXT NOT NULL,
			file         TEXT NOT NULL,
			line         INTEGER NOT NULL DEFAULT 0,
			message      TEXT NOT NULL,
			published_at TEXT NOT NULL,
			PRIMARY KEY (revision, fingerprint)
		);
		CREATE INDEX IF NOT EXISTS idx_published_revision ON published_issues(revision);
	`
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initializing state schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Record marks an issue as published for a revision. Re-recording the same
// fingerprint is a no-op.
func (s *Store) Record(revision string, iss model.Issue) error {
	publishedAt := time.Now()
	if iss.PublishedAt != nil {
		publishedAt = *iss.PublishedAt
	}

	_, err := s.conn.Exec(`
		INSERT OR IGNORE INTO published_issues (revision, fingerprint, file, line, message, published_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		revision, iss.ID, iss.File, iss.Line, iss.Message,
		publishedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording published issue: %w", err)
	}
	return nil
}

// ForRevision returns everything published for a revision.
func (s *Store) ForRevision(revision string) ([]Published, error) {
	rows, err := s.conn.Query(`
		SELECT fingerprint, file, line, message, published_at
		FROM published_issues WHERE revision = ?`, revision)
	if err != nil {
		return nil, fmt.Errorf("querying published issues: %w", err)
	}
	defer rows.Close()

	var out []Published
	for rows.Next() {
		var p Published
		var at string
		if err := rows.Scan(&p.Fingerprint, &p.File, &p.Line, &p.Message, &at); err != nil {
			return nil, fmt.Errorf("scanning published issue: %w", err)
		}
		p.PublishedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Has reports whether a fingerprint was already published for a revision.
func (s *Store) Has(revision, fp string) (bool, error) {
	var one int
	err := s.conn.QueryRow(`
		SELECT 1 FROM published_issues WHERE revision = ? AND fingerprint = ?`,
		revision, fp).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking published fingerprint: %w", err)
	}
	return true, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
