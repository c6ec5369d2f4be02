// Package tabular extracts form schemas from spreadsheet bytes and encodes
// submission sets back into spreadsheets.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/models"
)

// Format identifies a supported spreadsheet encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SampleRows is the maximum number of data rows read for type inference.
const SampleRows = 50

// FormatFromFilename maps a file extension to a Format.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: unsupported file extension %q", apperr.ErrFormat, filepath.Ext(name))
	}
}

// Extract derives an ordered field list from the header row of data,
// inferring each column's type from a bounded sample of data rows.
// It is a pure function of its input.
func Extract(data []byte, format Format) ([]models.FormField, error) {
	var header []string
	var sample [][]string
	var err error

	switch format {
	case FormatCSV:
		header, sample, err = readCSV(data)
	case FormatXLSX:
		header, sample, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", apperr.ErrFormat, format)
	}
	if err != nil {
		return nil, err
	}

	names, err := validateHeader(header)
	if err != nil {
		return nil, err
	}

	fields := make([]models.FormField, len(names))
	for i, name := range names {
		fields[i] = models.FormField{Name: name, Type: inferType(column(sample, i))}
	}
	return fields, nil
}

// readCSV returns the header row and up to SampleRows data rows.
func readCSV(data []byte) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // ragged rows are tolerated; the header is authoritative

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: no header row", apperr.ErrFormat)
		}
		return nil, nil, fmt.Errorf("%w: %v", apperr.ErrFormat, err)
	}

	var sample [][]string
	for len(sample) < SampleRows {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Skip unreadable rows; inference is best-effort.
			continue
		}
		sample = append(sample, row)
	}
	return header, sample, nil
}

// readXLSX streams the first sheet of an xlsx workbook, stopping after the
// inference sample so large workbooks are never fully materialised.
func readXLSX(data []byte) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperr.ErrFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("%w: workbook has no sheets", apperr.ErrFormat)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperr.ErrFormat, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil, fmt.Errorf("%w: no header row", apperr.ErrFormat)
	}
	header, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperr.ErrFormat, err)
	}

	var sample [][]string
	for len(sample) < SampleRows && rows.Next() {
		row, err := rows.Columns()
		if err != nil {
			continue
		}
		sample = append(sample, row)
	}
	return header, sample, nil
}

// validateHeader trims header cells and rejects empty names, zero columns,
// and names that collide case-insensitively.
func validateHeader(header []string) ([]string, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: zero columns", apperr.ErrFormat)
	}
	names := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, cell := range header {
		name := strings.TrimSpace(cell)
		if name == "" {
			return nil, fmt.Errorf("%w: column %d has an empty name", apperr.ErrFormat, i+1)
		}
		norm := strings.ToLower(name)
		if _, dup := seen[norm]; dup {
			return nil, fmt.Errorf("%w: duplicate column name %q", apperr.ErrFormat, name)
		}
		seen[norm] = struct{}{}
		names[i] = name
	}
	return names, nil
}

// column collects the i-th cell of every sampled row, skipping rows that
// are too short.
func column(sample [][]string, i int) []string {
	var out []string
	for _, row := range sample {
		if i < len(row) {
			out = append(out, row[i])
		}
	}
	return out
}

// inferType votes over the non-empty sampled values of one column:
// all integers → integer, else all decimals → number, else all boolean
// tokens → boolean, else string. An all-empty sample is a string column.
func inferType(values []string) models.FieldType {
	allInt, allNum, allBool := true, true, true
	nonEmpty := 0

	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			allNum = false
		}
		if !isBoolToken(v) {
			allBool = false
		}
	}

	switch {
	case nonEmpty == 0:
		return models.FieldString
	case allInt:
		return models.FieldInteger
	case allNum:
		return models.FieldNumber
	case allBool:
		return models.FieldBoolean
	default:
		return models.FieldString
	}
}

func isBoolToken(v string) bool {
	switch strings.ToLower(v) {
	case "true", "false", "yes", "no", "1", "0":
		return true
	}
	return false
}
