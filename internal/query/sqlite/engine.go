package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/sheetsql/sheetsql/internal/dataset"
	"github.com/sheetsql/sheetsql/internal/query"
)

const Dialect = "SQLite"

var typeNames = query.TypeNames{
	dataset.TypeInteger: "INTEGER",
	dataset.TypeReal:    "REAL",
	dataset.TypeText:    "TEXT",
}

// Engine materializes every dataset into a private in-memory SQLite database.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Dialect() string {
	return Dialect
}

func (e *Engine) Open(ctx context.Context, ds dataset.Dataset) (query.Relation, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

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

func (r *Relation) load(ctx context.Context, ds dataset.Dataset) error {
	createSQL, err := query.CreateTableSQL("CREATE TABLE", ds, typeNames)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+query.QuoteIdent(query.TableName)); err != nil {
		return fmt.Errorf("drop table %s: %w", query.TableName, err)
	}
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %s: %w", query.TableName, err)
	}
	stmt, err := tx.PrepareContext(ctx, query.InsertSQL(ds))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range ds.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load transaction: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return fmt.Errorf("enable query_only: %w", err)
	}
	return nil
}

func (r *Relation) Schema(ctx context.Context) ([]query.ColumnInfo, error) {
	return query.TableInfo(ctx, r.db)
}

func (r *Relation) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	return query.Run(ctx, r.db, request.SQL, request.RowLimit, nil)
}

func (r *Relation) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.db.Close()
	})
	return r.closeErr
}
