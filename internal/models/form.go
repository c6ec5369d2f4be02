// Package models defines the domain types for Fehu.
package models

import "time"

// FieldType is the inferred semantic type of a form field. Values are stored
// as strings regardless of type; the tag exists for presentation-layer
// validation only.
type FieldType string

// Known field types.
const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
)

// FormField is one column of a form schema. Name is unique within its form
// (case-insensitive) and order is significant.
type FormField struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// FormDefinition is a registered form schema. Definitions are immutable
// after creation; re-uploading a spreadsheet produces a brand-new form.
type FormDefinition struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Fields     []FormField `json:"fields"`
	SourceFile string      `json:"source_file,omitempty"`
	Checksum   string      `json:"checksum,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// FieldNames returns the field names in schema order.
func (d *FormDefinition) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// SubmissionRecord is one filled instance of a form. RecordID starts at 1
// and is strictly increasing within its form. Values holds an entry for
// every field of the form's definition; absent inputs default to "".
type SubmissionRecord struct {
	RecordID    int64             `json:"record_id"`
	FormID      string            `json:"form_id"`
	Values      map[string]string `json:"values"`
	SubmittedAt time.Time         `json:"submitted_at"`
}
