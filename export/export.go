// Package export renders workflow text output as downloadable documents.
//
// Both exporters produce data URLs (base64 payloads with a MIME prefix) so
// the result can be embedded directly in a workflow node's output without
// touching the filesystem. CSV output follows RFC 4180 quoting and carries a
// UTF-8 byte order mark so spreadsheet applications detect the encoding.
package export

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// bom is prepended to CSV payloads so Excel opens them as UTF-8.
const bom = "\ufeff"

// CSVOptions controls CSV rendering.
type CSVOptions struct {
	// Columns selects and orders the fields emitted per row. When empty the
	// keys of the first row are used; map iteration order is not stable, so
	// callers that care about column order should set this explicitly.
	Columns []string
	// ColumnMap renames columns in the header row. Keys are source field
	// names, values are the header labels to emit.
	ColumnMap map[string]string
}

// CSV renders rows as an RFC 4180 CSV document and returns it as a
// data:text/csv;base64 URL.
func CSV(rows []map[string]any, opts CSVOptions) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("no rows to export")
	}

	columns := opts.Columns
	if len(columns) == 0 {
		for key := range rows[0] {
			columns = append(columns, key)
		}
	}

	var sb strings.Builder
	sb.WriteString(bom)

	header := make([]string, len(columns))
	for i, col := range columns {
		label := col
		if mapped, ok := opts.ColumnMap[col]; ok {
			label = mapped
		}
		header[i] = escapeCSV(label)
	}
	sb.WriteString(strings.Join(header, ","))
	sb.WriteString("\n")

	for _, row := range rows {
		fields := make([]string, len(columns))
		for i, col := range columns {
			fields[i] = escapeCSV(formatCell(row[col]))
		}
		sb.WriteString(strings.Join(fields, ","))
		sb.WriteString("\n")
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(sb.String()))
	return "data:text/csv;base64," + encoded, nil
}

// escapeCSV quotes a field when it contains a comma, quote, or newline.
func escapeCSV(field string) string {
	if strings.ContainsAny(field, "\",\n\r") {
		return "\"" + strings.ReplaceAll(field, "\"", "\"\"") + "\""
	}
	return field
}

// formatCell renders a cell value as text. Nil becomes the empty string so
// sparse rows do not print "<nil>".
func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// Trim the trailing zeros JSON decoding introduces for integers.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
