package mcpserver

// RecordFormatContract describes the canonical form and record format
// that LLM consumers should follow when creating forms or submitting records.
const RecordFormatContract = `# Fehu Record Format Contract

Every form and record in Fehu follows this structure.

## Forms

A form is created from a tabular file (CSV or XLSX). The first row is the
header and becomes the form's field list, in column order:

` + "```" + `csv
Name,Email,Age
Ann,a@x.com,34
Bo,b@x.com,28
` + "```" + `

## Rules

1. **The header row is mandatory.** Every column needs a non-empty name.
2. **Field names are unique** case-insensitively (` + "`" + `Name` + "`" + ` and ` + "`" + `name` + "`" + ` clash).
3. **Field types are inferred** from up to 50 sample rows below the header:
   - ` + "`" + `integer` + "`" + ` – every non-empty sample parses as a whole number
   - ` + "`" + `number` + "`" + ` – every non-empty sample parses as a decimal number
   - ` + "`" + `boolean` + "`" + ` – every non-empty sample is one of true/false/yes/no/1/0
   - ` + "`" + `string` + "`" + ` – everything else (and columns with no samples)
4. **Once created, a form is immutable.** Upload a new file to change the schema.

## Records

Submit a record as a JSON object mapping field names to string values:

` + "```" + `json
{"Name": "Ann", "Email": "a@x.com", "Age": "34"}
` + "```" + `

- Fields absent from the object are stored as empty strings.
- Keys that are not fields of the form are silently dropped.
- All values are strings on the wire regardless of the inferred field type.
- Each accepted record gets a ` + "`" + `record_id` + "`" + `: 1 for the first record,
  then counting up with no gaps, per form.

## Exports

Exports have the columns ` + "`" + `record_id` + "`" + `, the form's fields in order, then
` + "`" + `submitted_at` + "`" + ` (RFC 3339 UTC). Rows appear in submission order.
`
