// Package dataset reads an uploaded spreadsheet into a typed, immutable table
// whose column names are already normalized identifiers.
package dataset

import (
	"errors"
	"fmt"

	"github.com/sheetsql/sheetsql/internal/schema"
)

type ColumnType string

const (
	TypeText    ColumnType = "text"
	TypeInteger ColumnType = "integer"
	TypeReal    ColumnType = "real"
)

// Column describes one normalized column. Original is the header text as it
// appeared in the upload.
type Column struct {
	Name     string     `json:"name"`
	Original string     `json:"original"`
	Type     ColumnType `json:"type"`
}

// Dataset is an ordered set of columns plus rows aligned with them by index.
// Cells are nil, int64, float64 or string, matching the column type.
type Dataset struct {
	Columns []Column
	Rows    [][]any
	Mapping schema.Mapping
}

// ColumnNames returns the normalized names in column order.
func (d Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, column := range d.Columns {
		names[i] = column.Name
	}
	return names
}

// Preview returns at most n leading rows.
func (d Dataset) Preview(n int) [][]any {
	if n <= 0 || len(d.Rows) == 0 {
		return [][]any{}
	}
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	return d.Rows[:n]
}

// RowMap returns row i keyed by normalized column name.
func (d Dataset) RowMap(i int) map[string]any {
	row := d.Rows[i]
	out := make(map[string]any, len(d.Columns))
	for j, column := range d.Columns {
		out[column.Name] = row[j]
	}
	return out
}

// Validate checks the structural invariants: unique, non-empty names and rows
// that match the column count and declared types.
func (d Dataset) Validate() error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("dataset has no columns")
	}
	seen := make(map[string]bool, len(d.Columns))
	for _, column := range d.Columns {
		if column.Name == "" {
			return fmt.Errorf("dataset has an unnamed column")
		}
		if seen[column.Name] {
			return fmt.Errorf("duplicate column %q", column.Name)
		}
		seen[column.Name] = true
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i+1, len(row), len(d.Columns))
		}
		for j, value := range row {
			if !valueMatches(d.Columns[j].Type, value) {
				return fmt.Errorf("row %d column %q: value %T does not match type %s", i+1, d.Columns[j].Name, value, d.Columns[j].Type)
			}
		}
	}
	return nil
}

func valueMatches(columnType ColumnType, value any) bool {
	if value == nil {
		return true
	}
	switch columnType {
	case TypeInteger:
		_, ok := value.(int64)
		return ok
	case TypeReal:
		_, ok := value.(float64)
		return ok
	case TypeText:
		_, ok := value.(string)
		return ok
	default:
		return false
	}
}

// Error is returned for any upload that cannot be read as a table.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(reason string, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// IsError reports whether err is a dataset read failure.
func IsError(err error) bool {
	var target *Error
	return errors.As(err, &target)
}
