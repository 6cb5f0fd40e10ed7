package query

import (
	"fmt"
	"strings"

	"github.com/sheetsql/sheetsql/internal/dataset"
)

// TypeNames maps dataset column types onto an engine's SQL type names.
type TypeNames map[dataset.ColumnType]string

// CreateTableSQL renders the CREATE TABLE statement for ds. Columns keep the
// dataset's order and normalized names.
func CreateTableSQL(prefix string, ds dataset.Dataset, types TypeNames) (string, error) {
	if len(ds.Columns) == 0 {
		return "", fmt.Errorf("dataset has no columns")
	}
	defs := make([]string, 0, len(ds.Columns))
	for _, column := range ds.Columns {
		typeName, ok := types[column.Type]
		if !ok {
			return "", fmt.Errorf("column %q has unsupported type %q", column.Name, column.Type)
		}
		defs = append(defs, QuoteIdent(column.Name)+" "+typeName)
	}
	return fmt.Sprintf("%s %s (%s)", prefix, QuoteIdent(TableName), strings.Join(defs, ", ")), nil
}

// InsertSQL renders a parameterized single-row INSERT for ds.
func InsertSQL(ds dataset.Dataset) string {
	names := make([]string, 0, len(ds.Columns))
	params := make([]string, 0, len(ds.Columns))
	for _, column := range ds.Columns {
		names = append(names, QuoteIdent(column.Name))
		params = append(params, "?")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", QuoteIdent(TableName), strings.Join(names, ", "), strings.Join(params, ", "))
}
