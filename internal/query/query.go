package query

import (
	"context"
	"time"

	"github.com/sheetsql/sheetsql/internal/dataset"
)

// TableName is the single relation every upload is materialized as.
const TableName = "data_table"

type Request struct {
	SQL      string
	RowLimit int
}

type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

// ColumnInfo is one row of the relation schema as reported by the engine.
type ColumnInfo struct {
	Name string
	Type string
}

// Relation is an ephemeral, single-table database holding one Dataset. It is
// owned by one question and must be closed on every exit path.
type Relation interface {
	Schema(ctx context.Context) ([]ColumnInfo, error)
	Execute(ctx context.Context, request Request) (Result, error)
	Close() error
}

// Engine builds relations. Every Open returns a fresh, independent database.
type Engine interface {
	Open(ctx context.Context, ds dataset.Dataset) (Relation, error)
	Dialect() string
}
