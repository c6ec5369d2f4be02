package tabular

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/models"
)

func TestExtract_HeaderOrderPreserved(t *testing.T) {
	data := []byte("Name,Email,Department\nAnn,a@x.com,Ops\n")
	fields, err := Extract(data, FormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Name", "Email", "Department"}
	if len(fields) != len(want) {
		t.Fatalf("len(fields) = %d, want %d", len(fields), len(want))
	}
	for i, name := range want {
		if fields[i].Name != name {
			t.Errorf("fields[%d].Name = %q, want %q", i, fields[i].Name, name)
		}
	}
}

func TestExtract_TypeInference(t *testing.T) {
	data := []byte(strings.Join([]string{
		"Count,Price,Active,Note,Blank",
		"1,10.5,yes,hello,",
		"2,3,no,world,",
		"30,0.25,true,,",
	}, "\n"))
	fields, err := Extract(data, FormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []models.FieldType{
		models.FieldInteger,
		models.FieldNumber,
		models.FieldBoolean,
		models.FieldString,
		models.FieldString, // all-empty sample defaults to string
	}
	for i, ft := range want {
		if fields[i].Type != ft {
			t.Errorf("fields[%d].Type = %q, want %q", i, fields[i].Type, ft)
		}
	}
}

func TestExtract_IntegerBeatsBoolean(t *testing.T) {
	// "1" and "0" parse as integers; integer wins by policy order.
	data := []byte("Flag\n1\n0\n")
	fields, err := Extract(data, FormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields[0].Type != models.FieldInteger {
		t.Errorf("type = %q, want integer", fields[0].Type)
	}
}

func TestExtract_HeaderOnly(t *testing.T) {
	fields, err := Extract([]byte("A,B\n"), FormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("len = %d, want 2", len(fields))
	}
	for _, f := range fields {
		if f.Type != models.FieldString {
			t.Errorf("%s type = %q, want string", f.Name, f.Type)
		}
	}
}

func TestExtract_FormatErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty input", ""},
		{"empty column name", "Name,,Email\n"},
		{"whitespace column name", "Name,   ,Email\n"},
		{"case-insensitive duplicate", "Name,name\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Extract([]byte(tc.data), FormatCSV)
			if !errors.Is(err, apperr.ErrFormat) {
				t.Errorf("err = %v, want ErrFormat", err)
			}
		})
	}
}

func TestExtract_SampleBounded(t *testing.T) {
	// Rows beyond the sample must not affect inference: the first 50 rows
	// are integers, row 51 is not.
	var b strings.Builder
	b.WriteString("N\n")
	for i := 0; i < SampleRows; i++ {
		b.WriteString("7\n")
	}
	b.WriteString("not-a-number\n")
	fields, err := Extract([]byte(b.String()), FormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields[0].Type != models.FieldInteger {
		t.Errorf("type = %q, want integer (row %d should be outside the sample)", fields[0].Type, SampleRows+1)
	}
}

func TestFormatFromFilename(t *testing.T) {
	if f, err := FormatFromFilename("staff.CSV"); err != nil || f != FormatCSV {
		t.Errorf("staff.CSV → %q, %v", f, err)
	}
	if f, err := FormatFromFilename("staff.xlsx"); err != nil || f != FormatXLSX {
		t.Errorf("staff.xlsx → %q, %v", f, err)
	}
	if _, err := FormatFromFilename("staff.pdf"); !errors.Is(err, apperr.ErrFormat) {
		t.Errorf("staff.pdf err = %v, want ErrFormat", err)
	}
}

func testDef() *models.FormDefinition {
	return &models.FormDefinition{
		ID:    "f1",
		Title: "Onboarding",
		Fields: []models.FormField{
			{Name: "Name", Type: models.FieldString},
			{Name: "Email", Type: models.FieldString},
		},
	}
}

func testRecords() []*models.SubmissionRecord {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []*models.SubmissionRecord{
		{RecordID: 1, FormID: "f1", Values: map[string]string{"Name": "Ann", "Email": ""}, SubmittedAt: at},
		{RecordID: 2, FormID: "f1", Values: map[string]string{"Name": "Bo", "Email": "b@x.com"}, SubmittedAt: at},
	}
}

func TestEncodeCSV(t *testing.T) {
	out, err := Encode(testDef(), testRecords(), FormatCSV)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if lines[0] != "record_id,Name,Email,submitted_at" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1,Ann,,") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "2,Bo,b@x.com,") {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestEncodeExtractRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatCSV, FormatXLSX} {
		def := testDef()
		out, err := Encode(def, testRecords(), format)
		if err != nil {
			t.Fatalf("[%s] Encode: %v", format, err)
		}
		fields, err := Extract(out, format)
		if err != nil {
			t.Fatalf("[%s] Extract of export: %v", format, err)
		}
		// Exported header is record_id, <fields...>, submitted_at.
		if len(fields) != len(def.Fields)+2 {
			t.Fatalf("[%s] len = %d, want %d", format, len(fields), len(def.Fields)+2)
		}
		if fields[0].Name != ColRecordID || fields[len(fields)-1].Name != ColSubmittedAt {
			t.Errorf("[%s] framing columns = %q, %q", format, fields[0].Name, fields[len(fields)-1].Name)
		}
		for i, f := range def.Fields {
			if fields[i+1].Name != f.Name {
				t.Errorf("[%s] fields[%d].Name = %q, want %q", format, i+1, fields[i+1].Name, f.Name)
			}
		}
	}
}

func TestExtractXLSX(t *testing.T) {
	// Build a workbook through the encoder, then extract from it.
	def := &models.FormDefinition{
		ID:     "x",
		Fields: []models.FormField{{Name: "City", Type: models.FieldString}},
	}
	out, err := Encode(def, nil, FormatXLSX)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	fields, err := Extract(out, FormatXLSX)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(fields) != 3 || fields[1].Name != "City" {
		t.Errorf("fields = %+v", fields)
	}
}

func TestExtractXLSX_NotAWorkbook(t *testing.T) {
	_, err := Extract([]byte("plainly not a zip"), FormatXLSX)
	if !errors.Is(err, apperr.ErrFormat) {
		t.Errorf("err = %v, want ErrFormat", err)
	}
}
