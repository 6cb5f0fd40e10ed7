package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/marcboeker/go-duckdb/v2"

	"github.com/sheetsql/sheetsql/internal/dataset"
	"github.com/sheetsql/sheetsql/internal/query"
)

const Dialect = "DuckDB"

var typeNames = query.TypeNames{
	dataset.TypeInteger: "BIGINT",
	dataset.TypeReal:    "DOUBLE",
	dataset.TypeText:    "VARCHAR",
}

// Engine materializes every dataset into its own in-memory DuckDB database.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Dialect() string {
	return Dialect
}

func (e *Engine) Open(ctx context.Context, ds dataset.Dataset) (query.Relation, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	relation := &Relation{db: db}
	if err := relation.load(ctx, ds); err != nil {
		_ = relation.Close()
		return nil, err
	}
	return relation, nil
}

type Relation struct {
	db        *sql.DB
	closeOnce sync.Once
	closeErr  error
}

// load creates data_table, appends every row, then locks the database down so
// generated SQL cannot reach files, extensions, or settings.
func (r *Relation) load(ctx context.Context, ds dataset.Dataset) error {
	createSQL, err := query.CreateTableSQL("CREATE OR REPLACE TABLE", ds, typeNames)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %s: %w", query.TableName, err)
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire duckdb connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	err = conn.Raw(func(driverConn any) error {
		dc, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected duckdb driver connection %T", driverConn)
		}
		appender, err := duckdb.NewAppenderFromConn(dc, "", query.TableName)
		if err != nil {
			return fmt.Errorf("create appender: %w", err)
		}
		values := make([]driver.Value, len(ds.Columns))
		for i, row := range ds.Rows {
			for j := range values {
				values[j] = row[j]
			}
			if err := appender.AppendRow(values...); err != nil {
				_ = appender.Close()
				return fmt.Errorf("append row %d: %w", i+1, err)
			}
		}
		if err := appender.Close(); err != nil {
			return fmt.Errorf("flush appender: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, statement := range []string{
		"SET enable_external_access = false",
		"SET autoinstall_known_extensions = false",
		"SET autoload_known_extensions = false",
		"SET lock_configuration = true",
	} {
		if _, err := r.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("harden duckdb (%s): %w", statement, err)
		}
	}
	return nil
}

func (r *Relation) Schema(ctx context.Context) ([]query.ColumnInfo, error) {
	return query.TableInfo(ctx, r.db)
}

func (r *Relation) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	return query.Run(ctx, r.db, request.SQL, request.RowLimit, normalizeValue)
}

// Close releases the database. Repeated calls return the first result.
func (r *Relation) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.db.Close()
	})
	return r.closeErr
}

// normalizeValue maps driver values onto plain JSON-friendly Go values. MAP
// keys become strings, INTERVAL becomes text, and LIST/STRUCT/UNION contents
// are normalized recursively.
func normalizeValue(value any) any {
	switch typed := value.(type) {
	case duckdb.Decimal:
		return typed.Float64()
	case *big.Int:
		if typed.IsInt64() {
			return typed.Int64()
		}
		return typed.String()
	case int32:
		return int64(typed)
	case int16:
		return int64(typed)
	case int8:
		return int64(typed)
	case uint32:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint8:
		return int64(typed)
	case uint64:
		if typed <= math.MaxInt64 {
			return int64(typed)
		}
		return strconv.FormatUint(typed, 10)
	case float32:
		return float64(typed)
	case duckdb.Interval:
		return formatInterval(typed)
	case duckdb.Map:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[fmt.Sprint(normalizeValue(key))] = normalizeValue(item)
		}
		return out
	case duckdb.Union:
		return normalizeValue(typed.Value)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return typed
	}
}

// formatInterval renders an INTERVAL the way DuckDB prints it, for example
// "1 year 2 months 3 days 04:05:06.5".
func formatInterval(interval duckdb.Interval) string {
	var parts []string
	years, months := interval.Months/12, interval.Months%12
	parts = appendUnit(parts, int64(years), "year")
	parts = appendUnit(parts, int64(months), "month")
	parts = appendUnit(parts, int64(interval.Days), "day")

	micros := interval.Micros
	if micros != 0 || len(parts) == 0 {
		sign := ""
		if micros < 0 {
			sign = "-"
			micros = -micros
		}
		clock := fmt.Sprintf("%s%02d:%02d:%02d", sign, micros/3_600_000_000, micros/60_000_000%60, micros/1_000_000%60)
		if frac := micros % 1_000_000; frac != 0 {
			clock += strings.TrimRight(fmt.Sprintf(".%06d", frac), "0")
		}
		parts = append(parts, clock)
	}
	return strings.Join(parts, " ")
}

func appendUnit(parts []string, n int64, unit string) []string {
	switch n {
	case 0:
		return parts
	case 1, -1:
		return append(parts, fmt.Sprintf("%d %s", n, unit))
	default:
		return append(parts, fmt.Sprintf("%d %ss", n, unit))
	}
}
