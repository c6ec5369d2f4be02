// Package store persists form definitions and per-form submission logs in
// SQLite. All mutating operations are serialized: registry writes behind a
// single mutex, submission appends behind one mutex per form id.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS forms (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	fields      TEXT NOT NULL,
	source_file TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	form_id      TEXT NOT NULL REFERENCES forms(id),
	record_id    INTEGER NOT NULL,
	field_values TEXT NOT NULL,
	submitted_at DATETIME NOT NULL,
	PRIMARY KEY (form_id, record_id)
);

CREATE INDEX IF NOT EXISTS idx_submissions_form ON submissions(form_id);
`

// DB wraps a sql.DB with registry and submission-log operations.
type DB struct {
	conn *sql.DB

	createMu sync.Mutex // serializes form creation (id collision check + insert)

	locksMu   sync.Mutex
	formLocks map[string]*sync.Mutex
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn, formLocks: make(map[string]*sync.Mutex)}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// lockFor returns the append mutex for a form id, creating it on first use.
// Locks are never removed; forms are never deleted.
func (db *DB) lockFor(formID string) *sync.Mutex {
	db.locksMu.Lock()
	defer db.locksMu.Unlock()
	mu, ok := db.formLocks[formID]
	if !ok {
		mu = &sync.Mutex{}
		db.formLocks[formID] = mu
	}
	return mu
}
