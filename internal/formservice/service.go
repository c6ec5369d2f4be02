// Package formservice coordinates schema extraction, the form registry,
// the submission store, and the upload archive.
package formservice

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/checksum"
	"github.com/starford/fehu/internal/events"
	"github.com/starford/fehu/internal/models"
	"github.com/starford/fehu/internal/storage"
	"github.com/starford/fehu/internal/store"
	"github.com/starford/fehu/internal/tabular"
)

// Service is the core entry point consumed by the API, inbox, and MCP
// layers. The broker may be nil (no event streaming, e.g. under tests or
// the MCP stdio server).
type Service struct {
	db      *store.DB
	uploads storage.Provider
	broker  *events.Broker
}

// NewService creates a new form service.
func NewService(db *store.DB, uploads storage.Provider, broker *events.Broker) *Service {
	return &Service{db: db, uploads: uploads, broker: broker}
}

// CreateFormFromUpload extracts a schema from uploaded spreadsheet bytes,
// registers a new form, and archives the original file under the form id.
func (s *Service) CreateFormFromUpload(_ context.Context, title, filename string, data []byte, format tabular.Format) (*models.FormDefinition, error) {
	fields, err := tabular.Extract(data, format)
	if err != nil {
		return nil, err
	}

	source := filepath.Base(filename)
	def, err := s.db.CreateForm(title, fields, source, checksum.Sum(data))
	if err != nil {
		return nil, err
	}

	// The archive is auxiliary: the form is already registered, so a failed
	// archive write is logged rather than surfaced.
	if err := s.uploads.Write(path.Join(def.ID, source), data); err != nil {
		slog.Warn("archive upload failed",
			slog.String("form_id", def.ID),
			slog.String("file", source),
			slog.String("error", err.Error()))
	}

	slog.Info("form created",
		slog.String("form_id", def.ID),
		slog.String("title", def.Title),
		slog.Int("fields", len(def.Fields)),
		slog.String("checksum", checksum.Short(data)))

	if s.broker != nil {
		s.broker.PublishFormCreated(def.ID, def.Title)
	}
	return def, nil
}

// CreateForm registers a form from an already-extracted field list.
func (s *Service) CreateForm(_ context.Context, title string, fields []models.FormField) (*models.FormDefinition, error) {
	def, err := s.db.CreateForm(title, fields, "", "")
	if err != nil {
		return nil, err
	}
	if s.broker != nil {
		s.broker.PublishFormCreated(def.ID, def.Title)
	}
	return def, nil
}

// GetForm resolves a form id to its definition.
func (s *Service) GetForm(_ context.Context, formID string) (*models.FormDefinition, error) {
	return s.db.GetForm(formID)
}

// ListForms returns all registered forms ordered by creation time.
func (s *Service) ListForms(_ context.Context) ([]*models.FormDefinition, error) {
	return s.db.ListForms()
}

// Submit appends one record to a form's log and returns it.
//
// Submit is not safe to retry blindly: after an ambiguous failure a retry
// may double-append. Callers should confirm with the user instead.
func (s *Service) Submit(_ context.Context, formID string, rawValues map[string]string) (*models.SubmissionRecord, error) {
	rec, err := s.db.Submit(formID, rawValues)
	if err != nil {
		return nil, err
	}
	if s.broker != nil {
		s.broker.PublishSubmission(rec.FormID, rec.RecordID)
	}
	return rec, nil
}

// ListResponses returns a form's records ordered by record id.
func (s *Service) ListResponses(_ context.Context, formID string) ([]*models.SubmissionRecord, error) {
	return s.db.ListResponses(formID)
}

// CountResponses returns the number of records in a form's log.
func (s *Service) CountResponses(_ context.Context, formID string) (int64, error) {
	return s.db.CountResponses(formID)
}

// Export serializes a form's full record set as a spreadsheet: record_id,
// the form's fields in schema order, submitted_at.
func (s *Service) Export(_ context.Context, formID string, format tabular.Format) ([]byte, error) {
	def, err := s.db.GetForm(formID)
	if err != nil {
		return nil, err
	}
	records, err := s.db.ListResponses(formID)
	if err != nil {
		return nil, err
	}
	return tabular.Encode(def, records, format)
}

// SourceFile returns the archived original upload of a form along with its
// file name.
func (s *Service) SourceFile(_ context.Context, formID string) ([]byte, string, error) {
	def, err := s.db.GetForm(formID)
	if err != nil {
		return nil, "", err
	}
	if def.SourceFile == "" {
		return nil, "", fmt.Errorf("%w: form has no archived source", apperr.ErrNotFound)
	}
	data, err := s.uploads.Read(path.Join(def.ID, def.SourceFile))
	if err != nil {
		return nil, "", err
	}
	return data, def.SourceFile, nil
}
