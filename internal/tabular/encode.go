package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/starford/fehu/internal/models"
)

// Reserved export columns framing the form's own fields.
const (
	ColRecordID    = "record_id"
	ColSubmittedAt = "submitted_at"
)

// Encode serializes records of a form into a spreadsheet. The header row is
// record_id, the form's fields in schema order, then submitted_at, so an
// exported table re-extracts to the same field names.
func Encode(def *models.FormDefinition, records []*models.SubmissionRecord, format Format) ([]byte, error) {
	rows := buildRows(def, records)
	switch format {
	case FormatCSV:
		return encodeCSV(rows)
	case FormatXLSX:
		return encodeXLSX(rows)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

func buildRows(def *models.FormDefinition, records []*models.SubmissionRecord) [][]string {
	header := make([]string, 0, len(def.Fields)+2)
	header = append(header, ColRecordID)
	header = append(header, def.FieldNames()...)
	header = append(header, ColSubmittedAt)

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, header)
	for _, rec := range records {
		row := make([]string, 0, len(header))
		row = append(row, fmt.Sprintf("%d", rec.RecordID))
		for _, f := range def.Fields {
			row = append(row, rec.Values[f.Name])
		}
		row = append(row, rec.SubmittedAt.Format(time.RFC3339))
		rows = append(rows, row)
	}
	return rows
}

func encodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("tabular: write csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("tabular: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeXLSX(rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("tabular: cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("tabular: write xlsx row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("tabular: write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
