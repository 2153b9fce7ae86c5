// Package manifest records retrieval sessions and the documents they
// persisted in a local SQLite database, so repeated runs can be audited
// and already-downloaded documents skipped.
package manifest

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Session is one recorded retrieval run.
type Session struct {
	ID          string     `json:"id"`
	Mode        string     `json:"mode"`
	Criteria    string     `json:"criteria"`
	FormType    string     `json:"form_type,omitempty"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Saved       int64      `json:"saved"`
	Failed      int64      `json:"failed"`
	Error       string     `json:"error,omitempty"`
}

// Document is one persisted filing.
type Document struct {
	SessionID  string    `json:"session_id"`
	CIK        string    `json:"cik"`
	FormType   string    `json:"form_type"`
	FilingDate time.Time `json:"filing_date"`
	URL        string    `json:"url"`
	Path       string    `json:"path"`
	Bytes      int64     `json:"bytes"`
	SavedAt    time.Time `json:"saved_at"`
}

// Manifest provides read/write access to the session history database.
type Manifest struct {
	db *sql.DB
}

// Open opens (or creates) the manifest database at path and configures
// WAL mode.
func Open(path string) (*Manifest, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "manifest: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "manifest: exec %s", pragma)
		}
	}
	return &Manifest{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	mode         TEXT NOT NULL,
	criteria     TEXT NOT NULL,
	form_type    TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	saved        INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS documents (
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	cik         TEXT NOT NULL,
	form_type   TEXT NOT NULL,
	filing_date DATETIME NOT NULL,
	url         TEXT NOT NULL,
	path        TEXT NOT NULL,
	bytes       INTEGER NOT NULL DEFAULT 0,
	saved_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
CREATE INDEX IF NOT EXISTS idx_documents_session_id ON documents(session_id);
CREATE INDEX IF NOT EXISTS idx_documents_url ON documents(url);
`

// Migrate creates the schema if it does not exist.
func (m *Manifest) Migrate(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "manifest: migrate")
}

// Close closes the underlying database.
func (m *Manifest) Close() error {
	return m.db.Close()
}

// StartSession records the beginning of a retrieval run and returns its ID.
func (m *Manifest) StartSession(ctx context.Context, mode, criteria, formType string) (string, error) {
	id := uuid.New().String()
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO sessions (id, mode, criteria, form_type, status, started_at)
		 VALUES (?, ?, ?, ?, 'running', ?)`,
		id, mode, criteria, formType, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "manifest: start session for %s", criteria)
	}
	return id, nil
}

// CompleteSession marks a run as finished with its final counts.
func (m *Manifest) CompleteSession(ctx context.Context, id string, saved, failed int64) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE sessions SET status = 'complete', completed_at = ?, saved = ?, failed = ?
		 WHERE id = ?`,
		time.Now().UTC(), saved, failed, id,
	)
	return eris.Wrapf(err, "manifest: complete session %s", id)
}

// FailSession marks a run as failed with an error message.
func (m *Manifest) FailSession(ctx context.Context, id string, errMsg string) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE sessions SET status = 'failed', completed_at = ?, error = ?
		 WHERE id = ?`,
		time.Now().UTC(), errMsg, id,
	)
	return eris.Wrapf(err, "manifest: fail session %s", id)
}

// RecordDocument records one persisted filing.
func (m *Manifest) RecordDocument(ctx context.Context, d Document) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO documents (session_id, cik, form_type, filing_date, url, path, bytes, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.SessionID, d.CIK, d.FormType, d.FilingDate.UTC(),
		d.URL, d.Path, d.Bytes, time.Now().UTC(),
	)
	return eris.Wrap(err, "manifest: record document")
}

// Seen reports whether a document URL was already persisted by any
// session.
func (m *Manifest) Seen(ctx context.Context, url string) (bool, error) {
	var n int64
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM documents WHERE url = ?`, url,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "manifest: seen")
	}
	return n > 0, nil
}

// ListSessions returns recorded sessions, most recent first.
func (m *Manifest) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, mode, criteria, form_type, status, started_at, completed_at, saved, failed, error
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "manifest: list sessions")
	}
	defer rows.Close() //nolint:errcheck

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Mode, &s.Criteria, &s.FormType, &s.Status,
			&s.StartedAt, &s.CompletedAt, &s.Saved, &s.Failed, &s.Error); err != nil {
			return nil, eris.Wrap(err, "manifest: scan session")
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// SessionDocuments returns the documents persisted by one session.
func (m *Manifest) SessionDocuments(ctx context.Context, sessionID string) ([]Document, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT session_id, cik, form_type, filing_date, url, path, bytes, saved_at
		 FROM documents WHERE session_id = ? ORDER BY saved_at`, sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "manifest: session documents")
	}
	defer rows.Close() //nolint:errcheck

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.SessionID, &d.CIK, &d.FormType, &d.FilingDate,
			&d.URL, &d.Path, &d.Bytes, &d.SavedAt); err != nil {
			return nil, eris.Wrap(err, "manifest: scan document")
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
