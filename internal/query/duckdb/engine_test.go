package duckdb

import (
	"context"
	"reflect"
	"testing"

	"github.com/marcboeker/go-duckdb/v2"

	"github.com/sheetsql/sheetsql/internal/dataset"
	"github.com/sheetsql/sheetsql/internal/query"
)

func salesDataset() dataset.Dataset {
	return dataset.Dataset{
		Columns: []dataset.Column{
			{Name: "region", Original: "Region", Type: dataset.TypeText},
			{Name: "total_sales", Original: "Total Sales", Type: dataset.TypeReal},
			{Name: "units", Original: "Units", Type: dataset.TypeInteger},
		},
		Rows: [][]any{
			{"North", 1200.5, int64(3)},
			{"South", nil, int64(7)},
			{"North", 99.5, int64(1)},
		},
	}
}

func openRelation(t *testing.T, ds dataset.Dataset) query.Relation {
	t.Helper()
	relation, err := NewEngine().Open(context.Background(), ds)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = relation.Close() })
	return relation
}

func TestOpenLoadsEveryRow(t *testing.T) {
	relation := openRelation(t, salesDataset())

	result, err := relation.Execute(context.Background(), query.Request{SQL: "SELECT COUNT(*) AS c FROM data_table"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != int64(3) {
		t.Fatalf("count = %#v", result.Rows[0][0])
	}
}

func TestSchemaReportsNormalizedColumns(t *testing.T) {
	relation := openRelation(t, salesDataset())

	columns, err := relation.Schema(context.Background())
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	want := []query.ColumnInfo{
		{Name: "region", Type: "VARCHAR"},
		{Name: "total_sales", Type: "DOUBLE"},
		{Name: "units", Type: "BIGINT"},
	}
	if !reflect.DeepEqual(columns, want) {
		t.Fatalf("Schema() = %#v, want %#v", columns, want)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	sqlText := "SELECT region, total_sales, units FROM data_table ORDER BY units"
	first := openRelation(t, salesDataset())
	second := openRelation(t, salesDataset())

	a, err := first.Execute(context.Background(), query.Request{SQL: sqlText})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	b, err := second.Execute(context.Background(), query.Request{SQL: sqlText})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(a.Rows, b.Rows) || !reflect.DeepEqual(a.Columns, b.Columns) {
		t.Fatalf("rebuild differs: %#v vs %#v", a, b)
	}
}

func TestExecuteAggregatesWithTrailingSemicolon(t *testing.T) {
	relation := openRelation(t, salesDataset())

	result, err := relation.Execute(context.Background(), query.Request{
		SQL: "SELECT region, SUM(units) AS units FROM data_table GROUP BY region ORDER BY region;",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(result.Columns, []string{"region", "units"}) {
		t.Fatalf("columns = %#v", result.Columns)
	}
	if len(result.Rows) != 2 || result.Rows[0][0] != "North" {
		t.Fatalf("rows = %#v", result.Rows)
	}
	if sum := result.Rows[0][1]; sum != int64(4) && sum != 4.0 {
		t.Fatalf("north units = %#v", sum)
	}
}

func TestExecuteTruncatesAtRowLimit(t *testing.T) {
	relation := openRelation(t, salesDataset())

	result, err := relation.Execute(context.Background(), query.Request{SQL: "SELECT * FROM data_table", RowLimit: 2})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 || !result.Truncated {
		t.Fatalf("rows = %d truncated = %v", len(result.Rows), result.Truncated)
	}
}

func TestFailingQueryLeavesRelationUnchanged(t *testing.T) {
	relation := openRelation(t, salesDataset())

	if _, err := relation.Execute(context.Background(), query.Request{SQL: "SELECT revenue FROM data_table"}); err == nil {
		t.Fatalf("expected unknown column error")
	}
	result, err := relation.Execute(context.Background(), query.Request{SQL: "SELECT COUNT(*) FROM data_table"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows[0][0] != int64(3) {
		t.Fatalf("count after failure = %#v", result.Rows[0][0])
	}
}

func TestExternalAccessIsDisabled(t *testing.T) {
	relation := openRelation(t, salesDataset())

	if _, err := relation.Execute(context.Background(), query.Request{SQL: "SELECT * FROM read_csv('/etc/hosts')"}); err == nil {
		t.Fatalf("expected read_csv to be rejected")
	}
	if _, err := relation.Execute(context.Background(), query.Request{SQL: "SET enable_external_access = true"}); err == nil {
		t.Fatalf("expected locked configuration")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	relation, err := NewEngine().Open(context.Background(), salesDataset())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := relation.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := relation.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestNormalizeValue(t *testing.T) {
	if got := normalizeValue(int32(5)); got != int64(5) {
		t.Fatalf("normalizeValue(int32) = %#v", got)
	}
	if got := normalizeValue(float32(1.5)); got != 1.5 {
		t.Fatalf("normalizeValue(float32) = %#v", got)
	}
	if got := normalizeValue("x"); got != "x" {
		t.Fatalf("normalizeValue(string) = %#v", got)
	}
}

func TestExecuteNormalizesCompositeValues(t *testing.T) {
	relation := openRelation(t, salesDataset())

	result, err := relation.Execute(context.Background(), query.Request{SQL: "SELECT histogram(region) AS h, list(units ORDER BY units) AS l, INTERVAL 90 MINUTE AS i FROM data_table"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	row := result.Rows[0]
	if !reflect.DeepEqual(row[0], map[string]any{"North": int64(2), "South": int64(1)}) {
		t.Fatalf("histogram = %#v", row[0])
	}
	if !reflect.DeepEqual(row[1], []any{int64(1), int64(3), int64(7)}) {
		t.Fatalf("list = %#v", row[1])
	}
	if row[2] != "01:30:00" {
		t.Fatalf("interval = %#v", row[2])
	}
}

func TestFormatInterval(t *testing.T) {
	cases := map[string]duckdb.Interval{
		"00:00:00":                          {},
		"1 year 2 months 3 days 04:05:06.5": {Months: 14, Days: 3, Micros: 4*3_600_000_000 + 5*60_000_000 + 6_500_000},
		"1 day":                             {Days: 1},
		"-00:00:01":                         {Micros: -1_000_000},
	}
	for want, interval := range cases {
		if got := formatInterval(interval); got != want {
			t.Fatalf("formatInterval(%+v) = %q, want %q", interval, got, want)
		}
	}
}
