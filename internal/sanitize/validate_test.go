package sanitize

import (
	"errors"
	"testing"
)

func TestValidateAcceptsReadOnlyStatements(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM data_table":                                       "SELECT * FROM data_table",
		"select count(*) from data_table;":                               "select count(*) from data_table",
		"WITH t AS (SELECT 1 AS x) SELECT x FROM t;;":                    "WITH t AS (SELECT 1 AS x) SELECT x FROM t",
		"(SELECT 1) UNION ALL (SELECT 2)":                                "(SELECT 1) UNION ALL (SELECT 2)",
		"FROM data_table LIMIT 3":                                        "FROM data_table LIMIT 3",
		"VALUES (1)":                                                     "VALUES (1)",
		"-- top regions\nSELECT region FROM data_table":                  "SELECT region FROM data_table",
		"SELECT 'DROP TABLE x; DELETE' AS note FROM data_table":          "SELECT 'DROP TABLE x; DELETE' AS note FROM data_table",
		"SELECT \"update\" FROM data_table /* delete; drop */":           "SELECT \"update\" FROM data_table",
		"SELECT * REPLACE (units * 2 AS units) FROM data_table":          "SELECT * REPLACE (units * 2 AS units) FROM data_table",
		"SELECT name FROM data_table WHERE name = 'O''Brien'":            "SELECT name FROM data_table WHERE name = 'O''Brien'",
	}
	for input, want := range cases {
		got, err := Validate(input, []string{"region", "units", "name"})
		if err != nil {
			t.Fatalf("Validate(%q) error = %v", input, err)
		}
		if got != want {
			t.Fatalf("Validate(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestValidateRejectsUnsafeStatements(t *testing.T) {
	cases := []string{
		"SELECT 1; DROP TABLE data_table",
		"DELETE FROM data_table",
		"UPDATE data_table SET units = 0",
		"CREATE TABLE x AS SELECT 1",
		"ATTACH 'other.db'",
		"COPY data_table TO 'out.csv'",
		"PRAGMA database_list",
		"INSTALL httpfs",
		"SELECT * FROM read_csv('/etc/passwd')",
		"SELECT * FROM \"read_parquet\"('s3://bucket/x')",
		"SELECT * FROM glob('*')",
		"WITH x AS (DELETE FROM data_table RETURNING *) SELECT * FROM x",
		"SELECT load_extension('evil')",
		"SELECT 'unterminated",
		"SELECT 1 /* open",
		"EXPLAIN SELECT 1",
	}
	for _, input := range cases {
		_, err := Validate(input, []string{"region", "units"})
		var unsafe *UnsafeQueryError
		if !errors.As(err, &unsafe) {
			t.Fatalf("Validate(%q) error = %v, want *UnsafeQueryError", input, err)
		}
	}
}

func TestValidateAllowsColumnsNamedLikeKeywords(t *testing.T) {
	got, err := Validate("SELECT load, copy FROM data_table", []string{"load", "copy"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != "SELECT load, copy FROM data_table" {
		t.Fatalf("Validate() = %q", got)
	}
}

func TestValidateRefusesDeniedCallsNamedLikeColumns(t *testing.T) {
	columns := []string{"glob", "read_csv", "load_extension", "region"}
	for _, input := range []string{
		"SELECT * FROM glob('/etc/*')",
		"SELECT * FROM READ_CSV('/etc/passwd')",
		"SELECT load_extension('x.so')",
	} {
		var unsafe *UnsafeQueryError
		if _, err := Validate(input, columns); !errors.As(err, &unsafe) {
			t.Fatalf("Validate(%q) error = %v, want *UnsafeQueryError", input, err)
		}
	}

	got, err := Validate("SELECT glob, read_csv FROM data_table WHERE glob <> ''", columns)
	if err != nil {
		t.Fatalf("plain column reference rejected: %v", err)
	}
	if got != "SELECT glob, read_csv FROM data_table WHERE glob <> ''" {
		t.Fatalf("Validate() = %q", got)
	}
}

func TestValidateEmpty(t *testing.T) {
	if _, err := Validate(" ;; ", nil); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("Validate() error = %v, want ErrEmptyQuery", err)
	}
}
