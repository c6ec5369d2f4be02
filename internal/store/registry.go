package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/models"
)

// maxIDAttempts bounds the collision-check loop in CreateForm. UUID
// collisions are not expected; the loop exists so uniqueness is checked
// against the registry rather than assumed.
const maxIDAttempts = 5

// CreateForm registers a new immutable form definition and returns it.
// The generated id is checked for uniqueness against the current registry.
func (db *DB) CreateForm(title string, fields []models.FormField, sourceFile, checksum string) (*models.FormDefinition, error) {
	db.createMu.Lock()
	defer db.createMu.Unlock()

	id, err := db.newFormID()
	if err != nil {
		return nil, err
	}

	def := &models.FormDefinition{
		ID:         id,
		Title:      title,
		Fields:     fields,
		SourceFile: sourceFile,
		Checksum:   checksum,
		CreatedAt:  time.Now().UTC(),
	}

	fieldsJSON, err := json.Marshal(def.Fields)
	if err != nil {
		return nil, fmt.Errorf("store: marshal fields: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO forms (id, title, fields, source_file, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, def.ID, def.Title, string(fieldsJSON), def.SourceFile, def.Checksum, def.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: insert form: %v", apperr.ErrStorage, err)
	}
	return def, nil
}

// newFormID generates a form id that does not collide with any registered
// form. Must be called with createMu held.
func (db *DB) newFormID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := uuid.NewString()
		var exists int
		err := db.conn.QueryRow(`SELECT COUNT(1) FROM forms WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("%w: id check: %v", apperr.ErrStorage, err)
		}
		if exists == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: could not generate a unique form id", apperr.ErrStorage)
}

// GetForm resolves a form id to its definition.
func (db *DB) GetForm(id string) (*models.FormDefinition, error) {
	row := db.conn.QueryRow(`
		SELECT id, title, fields, source_file, checksum, created_at
		FROM forms WHERE id = ?
	`, id)
	return scanForm(row)
}

// ListForms returns every registered form ordered by creation time
// ascending. Each call runs a fresh query, so the sequence is restartable.
func (db *DB) ListForms() ([]*models.FormDefinition, error) {
	rows, err := db.conn.Query(`
		SELECT id, title, fields, source_file, checksum, created_at
		FROM forms ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list forms: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var out []*models.FormDefinition
	for rows.Next() {
		def, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(row rowScanner) (*models.FormDefinition, error) {
	var def models.FormDefinition
	var fieldsJSON string
	err := row.Scan(&def.ID, &def.Title, &fieldsJSON, &def.SourceFile, &def.Checksum, &def.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan form: %v", apperr.ErrStorage, err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &def.Fields); err != nil {
		return nil, fmt.Errorf("%w: decode fields: %v", apperr.ErrStorage, err)
	}
	return &def, nil
}
