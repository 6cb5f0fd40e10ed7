// Package pipeline answers natural-language questions about one uploaded
// spreadsheet: build relation, translate, sanitize, validate, execute.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sheetsql/sheetsql/internal/dataset"
	"github.com/sheetsql/sheetsql/internal/nl2sql"
	"github.com/sheetsql/sheetsql/internal/observability"
	"github.com/sheetsql/sheetsql/internal/query"
	"github.com/sheetsql/sheetsql/internal/sanitize"
)

const (
	defaultRowLimit        = 1000
	defaultQuestionTimeout = 60 * time.Second
)

type Service struct {
	Engine          query.Engine
	Translator      nl2sql.Translator
	Logger          *slog.Logger
	Limits          dataset.Options
	RowLimit        int
	SampleRows      int
	QuestionTimeout time.Duration
}

// Upload is an accepted dataset. It is immutable once loaded.
type Upload struct {
	Name     string
	Dataset  dataset.Dataset
	LoadedAt time.Time
}

type Table struct {
	SQL       string
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

// Outcome holds exactly one of Table or Failure.
type Outcome struct {
	Table   *Table
	Failure *Error
}

func (o Outcome) OK() bool {
	return o.Table != nil
}

func (s *Service) Load(ctx context.Context, name string, r io.Reader) (Upload, error) {
	start := time.Now()
	ds, err := dataset.Read(name, r, s.Limits)
	observability.ObserveStage("load", time.Since(start))
	if err != nil {
		observability.ObserveUpload(false, 0)
		s.logger().WarnContext(ctx, "upload_rejected",
			observability.TraceAttr(ctx),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return Upload{}, stageError(StageRead, err.Error(), err)
	}
	observability.ObserveUpload(true, len(ds.Rows))
	s.logger().InfoContext(ctx, "upload_loaded",
		observability.TraceAttr(ctx),
		slog.String("name", name),
		slog.Int("columns", len(ds.Columns)),
		slog.Int("rows", len(ds.Rows)),
	)
	return Upload{Name: name, Dataset: ds, LoadedAt: time.Now().UTC()}, nil
}

// Ask answers one question. A blank question is a no-op and reports false.
// The relation is built fresh and released before Ask returns.
func (s *Service) Ask(ctx context.Context, upload Upload, question string) (Outcome, bool) {
	if strings.TrimSpace(question) == "" {
		return Outcome{}, false
	}
	if s.Engine == nil || s.Translator == nil {
		return failure(stageError(StageExecute, "query pipeline is not configured", nil)), true
	}

	timeout := s.QuestionTimeout
	if timeout <= 0 {
		timeout = defaultQuestionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	outcome := s.answer(ctx, upload, question)

	label := "table"
	attrs := []any{
		observability.TraceAttr(ctx),
		slog.String("upload", upload.Name),
		slog.String("duration", time.Since(start).String()),
	}
	if outcome.Failure != nil {
		label = string(outcome.Failure.Stage)
		attrs = append(attrs, slog.String("stage", label), slog.String("error", outcome.Failure.Message))
		s.logger().WarnContext(ctx, "question_failed", attrs...)
	} else {
		attrs = append(attrs, slog.Int("rows", len(outcome.Table.Rows)), slog.Bool("truncated", outcome.Table.Truncated))
		s.logger().InfoContext(ctx, "question_answered", attrs...)
	}
	observability.ObserveQuestion(label, time.Since(start))
	return outcome, true
}

func (s *Service) answer(ctx context.Context, upload Upload, question string) Outcome {
	relation, err := s.Engine.Open(ctx, upload.Dataset)
	if err != nil {
		return failure(stageError(StageExecute, "build relation: "+rootCause(err).Error(), err))
	}
	defer func() {
		if err := relation.Close(); err != nil {
			s.logger().WarnContext(ctx, "relation_close_failed", slog.String("error", err.Error()))
		}
	}()

	columns, err := relation.Schema(ctx)
	if err != nil {
		return failure(stageError(StageExecute, "read relation schema: "+rootCause(err).Error(), err))
	}

	translateStart := time.Now()
	generated, err := s.Translator.Translate(ctx, s.translationRequest(upload.Dataset, columns, question))
	observability.ObserveStage("translate", time.Since(translateStart))
	if err != nil {
		return failure(stageError(StageTranslate, fmt.Sprintf("query generation failed: %v", err), err))
	}

	sanitized, err := sanitize.Sanitize(generated.Text, upload.Dataset.Mapping)
	if err != nil {
		return failure(stageError(StageExecute, err.Error(), err))
	}
	statement, err := sanitize.Validate(sanitized, upload.Dataset.ColumnNames())
	if err != nil {
		return failure(stageError(StageExecute, err.Error(), err))
	}

	rowLimit := s.RowLimit
	if rowLimit <= 0 {
		rowLimit = defaultRowLimit
	}
	executeStart := time.Now()
	result, err := relation.Execute(ctx, query.Request{SQL: statement, RowLimit: rowLimit})
	observability.ObserveStage("execute", time.Since(executeStart))
	if err != nil {
		message := rootCause(err).Error()
		if errors.Is(err, context.DeadlineExceeded) {
			message = "query timed out"
		}
		return failure(stageError(StageExecute, message, err))
	}

	return Outcome{Table: &Table{
		SQL:       statement,
		Columns:   result.Columns,
		Rows:      result.Rows,
		Truncated: result.Truncated,
		Duration:  result.Duration,
	}}
}

func (s *Service) translationRequest(ds dataset.Dataset, columns []query.ColumnInfo, question string) nl2sql.Request {
	req := nl2sql.Request{
		Question: question,
		Table:    query.TableName,
		Dialect:  s.Engine.Dialect(),
		Columns:  make([]nl2sql.Column, 0, len(columns)),
	}
	for _, column := range columns {
		req.Columns = append(req.Columns, nl2sql.Column{Name: column.Name, Type: column.Type})
	}
	samples := len(ds.Preview(s.SampleRows))
	for i := 0; i < samples; i++ {
		req.SampleRows = append(req.SampleRows, ds.RowMap(i))
	}
	return req
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return observability.DiscardLogger()
	}
	return s.Logger
}

func failure(err *Error) Outcome {
	return Outcome{Failure: err}
}
