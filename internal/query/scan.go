package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Querier is the subset of *sql.DB / *sql.Conn the helpers need.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Run executes sqlText and collects at most rowLimit rows (0 means no limit).
// Column order and row order are kept exactly as the engine produced them.
// normalize maps driver-specific values onto plain Go scalars.
func Run(ctx context.Context, db Querier, sqlText string, rowLimit int, normalize func(any) any) (Result, error) {
	start := time.Now()
	sqlText = StripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return Result{}, fmt.Errorf("sql is required")
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	truncated := false
	for rows.Next() {
		if rowLimit > 0 && len(resultRows) >= rowLimit {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values, normalize))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Result{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

// TableInfo reads the relation schema with PRAGMA table_info, which DuckDB and
// SQLite both answer with (cid, name, type, notnull, dflt_value, pk).
func TableInfo(ctx context.Context, db Querier) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info('"+TableName+"')")
	if err != nil {
		return nil, fmt.Errorf("read table info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]ColumnInfo, 0)
	for rows.Next() {
		var (
			cid      any
			name     string
			dataType string
			notNull  any
			dflt     any
			pk       any
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		columns = append(columns, ColumnInfo{Name: name, Type: strings.ToUpper(dataType)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist", TableName)
	}
	return columns, nil
}

func normalizeValues(values []any, normalize func(any) any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			if normalize != nil {
				normalized[i] = normalize(typed)
			} else {
				normalized[i] = typed
			}
		}
	}
	return normalized
}

// QuoteIdent quotes an identifier for both DuckDB and SQLite.
func QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
