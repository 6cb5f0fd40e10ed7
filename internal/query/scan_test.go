package query

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/sheetsql/sheetsql/internal/dataset"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestRunKeepsOrderAndNormalizesBytes(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery("SELECT b, a FROM data_table").WillReturnRows(
		sqlmock.NewRows([]string{"b", "a"}).
			AddRow([]byte("x"), int64(2)).
			AddRow("y", nil),
	)

	result, err := Run(context.Background(), db, "SELECT b, a FROM data_table;;", 0, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !reflect.DeepEqual(result.Columns, []string{"b", "a"}) {
		t.Fatalf("columns = %#v", result.Columns)
	}
	want := [][]any{{"x", int64(2)}, {"y", nil}}
	if !reflect.DeepEqual(result.Rows, want) {
		t.Fatalf("rows = %#v", result.Rows)
	}
	if result.Truncated {
		t.Fatalf("unexpected truncation")
	}
	assertSQLMock(t, mock)
}

func TestRunStopsAtRowLimit(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery("SELECT n FROM data_table").WillReturnRows(
		sqlmock.NewRows([]string{"n"}).AddRow(1).AddRow(2).AddRow(3),
	)

	result, err := Run(context.Background(), db, "SELECT n FROM data_table", 2, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Rows) != 2 || !result.Truncated {
		t.Fatalf("rows = %d truncated = %v", len(result.Rows), result.Truncated)
	}
	assertSQLMock(t, mock)
}

func TestRunWrapsEngineError(t *testing.T) {
	db, mock := newSQLMock(t)
	engineErr := errors.New(`Binder Error: Referenced column "revenue" not found`)
	mock.ExpectQuery("SELECT revenue FROM data_table").WillReturnError(engineErr)

	_, err := Run(context.Background(), db, "SELECT revenue FROM data_table", 0, nil)
	if !errors.Is(err, engineErr) {
		t.Fatalf("Run() error = %v, want wrapped engine error", err)
	}
	assertSQLMock(t, mock)
}

func TestRunRejectsBlankSQL(t *testing.T) {
	db, mock := newSQLMock(t)
	if _, err := Run(context.Background(), db, " ; ", 0, nil); err == nil {
		t.Fatalf("expected error for blank sql")
	}
	assertSQLMock(t, mock)
}

func TestTableInfo(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery("PRAGMA table_info('data_table')").WillReturnRows(
		sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "region", "varchar", false, nil, false).
			AddRow(1, "units", "BIGINT", false, nil, false),
	)

	columns, err := TableInfo(context.Background(), db)
	if err != nil {
		t.Fatalf("TableInfo() error = %v", err)
	}
	want := []ColumnInfo{{Name: "region", Type: "VARCHAR"}, {Name: "units", Type: "BIGINT"}}
	if !reflect.DeepEqual(columns, want) {
		t.Fatalf("TableInfo() = %#v", columns)
	}
	assertSQLMock(t, mock)
}

func TestCreateTableSQL(t *testing.T) {
	ds := dataset.Dataset{Columns: []dataset.Column{
		{Name: "a", Type: dataset.TypeInteger},
		{Name: `we"ird`, Type: dataset.TypeText},
	}}
	got, err := CreateTableSQL("CREATE TABLE", ds, TypeNames{dataset.TypeInteger: "INTEGER", dataset.TypeText: "TEXT"})
	if err != nil {
		t.Fatalf("CreateTableSQL() error = %v", err)
	}
	if got != `CREATE TABLE "data_table" ("a" INTEGER, "we""ird" TEXT)` {
		t.Fatalf("CreateTableSQL() = %q", got)
	}
	if _, err := CreateTableSQL("CREATE TABLE", dataset.Dataset{}, nil); err == nil {
		t.Fatalf("expected error for empty dataset")
	}
	if insert := InsertSQL(ds); !strings.HasSuffix(insert, "VALUES (?, ?)") {
		t.Fatalf("InsertSQL() = %q", insert)
	}
}
