// Package report renders snapshot results as CSV files in the snapshot archive.
package report

import (
	"fmt"
	"io"
	"strings"
)

// Table is a header row followed by data rows. Cells are strings or integers.
type Table struct {
	Header []any
	Rows   [][]any
}

// Encode writes t to w. Rows are separated by a newline with none after the last row.
// A cell containing a comma is wrapped in double quotes; nothing else is escaped, so
// the output matches the archive files existing tooling already reads.
func Encode(w io.Writer, t Table) error {
	var b strings.Builder
	writeRow(&b, t.Header)
	for _, row := range t.Rows {
		b.WriteByte('\n')
		writeRow(&b, row)
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func writeRow(b *strings.Builder, row []any) {
	for i, cell := range row {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(formatCell(cell))
	}
}

func formatCell(cell any) string {
	var s string
	switch v := cell.(type) {
	case string:
		s = v
	case nil:
		s = ""
	default:
		s = fmt.Sprint(v)
	}
	if strings.Contains(s, ",") {
		return `"` + s + `"`
	}
	return s
}
