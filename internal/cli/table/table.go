// Package table renders query results as aligned plain-text tables.
package table

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

const maxCellWidth = 60

// Render writes columns and rows as a tab-aligned table followed by a row
// count line. Column and row order are preserved.
func Render(w io.Writer, columns []string, rows [][]any, truncated bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(columns, "\t")); err != nil {
		return err
	}
	rules := make([]string, len(columns))
	for i, column := range columns {
		rules[i] = strings.Repeat("-", max(len(column), 3))
	}
	if _, err := fmt.Fprintln(tw, strings.Join(rules, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = FormatCell(value)
		}
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	summary := fmt.Sprintf("(%d rows)", len(rows))
	if len(rows) == 1 {
		summary = "(1 row)"
	}
	if truncated {
		summary = fmt.Sprintf("(first %d rows, result truncated)", len(rows))
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}

// FormatCell prints one value on a single line.
func FormatCell(value any) string {
	var text string
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		text = typed
	case float64:
		text = strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		text = strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case bool:
		text = strconv.FormatBool(typed)
	default:
		text = fmt.Sprint(typed)
	}
	text = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ").Replace(text)
	if runes := []rune(text); len(runes) > maxCellWidth {
		text = string(runes[:maxCellWidth-3]) + "..."
	}
	return text
}
