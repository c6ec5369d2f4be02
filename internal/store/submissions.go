package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/models"
)

// Submit appends one record to a form's log and returns it. The raw values
// are projected onto the form's field order: absent fields default to the
// empty string, unknown keys are dropped.
//
// The count-assign-insert critical section runs under the form's append
// mutex, so record ids are strictly increasing and gap-free even when the
// same form is submitted concurrently.
func (db *DB) Submit(formID string, rawValues map[string]string) (*models.SubmissionRecord, error) {
	def, err := db.GetForm(formID)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(def.Fields))
	for _, f := range def.Fields {
		values[f.Name] = rawValues[f.Name]
	}

	mu := db.lockFor(formID)
	mu.Lock()
	defer mu.Unlock()

	valuesJSON, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("store: marshal values: %w", err)
	}

	rec := &models.SubmissionRecord{
		FormID:      formID,
		Values:      values,
		SubmittedAt: time.Now().UTC(),
	}

	// The append is a single transaction: either the record lands with its
	// id or nothing is written.
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", apperr.ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var count int64
	if err := tx.QueryRow(`SELECT COUNT(*) FROM submissions WHERE form_id = ?`, formID).Scan(&count); err != nil {
		return nil, fmt.Errorf("%w: count records: %v", apperr.ErrStorage, err)
	}
	rec.RecordID = count + 1

	_, err = tx.Exec(`
		INSERT INTO submissions (form_id, record_id, field_values, submitted_at)
		VALUES (?, ?, ?, ?)
	`, rec.FormID, rec.RecordID, string(valuesJSON), rec.SubmittedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: insert record: %v", apperr.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", apperr.ErrStorage, err)
	}
	return rec, nil
}

// ListResponses returns every record of a form ordered by record id
// ascending. Unknown form ids fail with ErrNotFound.
func (db *DB) ListResponses(formID string) ([]*models.SubmissionRecord, error) {
	if _, err := db.GetForm(formID); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(`
		SELECT record_id, field_values, submitted_at
		FROM submissions WHERE form_id = ?
		ORDER BY record_id ASC
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var out []*models.SubmissionRecord
	for rows.Next() {
		rec := &models.SubmissionRecord{FormID: formID}
		var valuesJSON string
		if err := rows.Scan(&rec.RecordID, &valuesJSON, &rec.SubmittedAt); err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", apperr.ErrStorage, err)
		}
		if err := json.Unmarshal([]byte(valuesJSON), &rec.Values); err != nil {
			return nil, fmt.Errorf("%w: decode values: %v", apperr.ErrStorage, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountResponses returns the number of records in a form's log.
func (db *DB) CountResponses(formID string) (int64, error) {
	if _, err := db.GetForm(formID); err != nil {
		return 0, err
	}
	var n int64
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM submissions WHERE form_id = ?`, formID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count records: %v", apperr.ErrStorage, err)
	}
	return n, nil
}
