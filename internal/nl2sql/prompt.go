package nl2sql

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt states the task: one query in the given dialect against the
// named relation, using only the listed columns, with nothing but the query
// in the reply.
func SystemPrompt(req Request) (string, error) {
	dialect := strings.TrimSpace(req.Dialect)
	if dialect == "" {
		dialect = "SQL"
	}
	columns := make([]string, 0, len(req.Columns))
	for _, column := range req.Columns {
		if column.Type == "" {
			columns = append(columns, column.Name)
			continue
		}
		columns = append(columns, fmt.Sprintf("%s (%s)", column.Name, column.Type))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You write a single %s query against the table %s.\n", dialect, req.Table)
	fmt.Fprintf(&b, "The table has exactly these columns: %s.\n", strings.Join(columns, ", "))
	b.WriteString("Use only these column names, spelled exactly as listed.\n")
	b.WriteString("Reply with the query only. No prose, no explanation, no markdown.")

	if len(req.SampleRows) > 0 {
		samples, err := json.Marshal(req.SampleRows)
		if err != nil {
			return "", fmt.Errorf("marshal sample rows: %w", err)
		}
		fmt.Fprintf(&b, "\nSample rows (JSON): %s", samples)
	}
	return b.String(), nil
}
