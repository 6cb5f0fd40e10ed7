// Package shell is the interactive question loop: load one spreadsheet, then
// answer questions about it line by line.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sheetsql/sheetsql/internal/cli/table"
	"github.com/sheetsql/sheetsql/internal/pipeline"
)

const prompt = "sheetsql> "

// Asker is the part of the pipeline the shell drives.
type Asker interface {
	Load(ctx context.Context, name string, r io.Reader) (pipeline.Upload, error)
	Ask(ctx context.Context, upload pipeline.Upload, question string) (pipeline.Outcome, bool)
}

// LineReader yields one input line per call and io.EOF at the end.
type LineReader interface {
	Readline() (string, error)
}

type Shell struct {
	Pipeline Asker
	Out      io.Writer
	ShowSQL  bool

	upload pipeline.Upload
	loaded bool
}

// LoadFile reads path as the current upload, replacing any previous one.
func (s *Shell) LoadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	upload, err := s.Pipeline.Load(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	s.upload = upload
	s.loaded = true
	_, _ = fmt.Fprintf(s.Out, "loaded %s: %d rows, %d columns\n", upload.Name, len(upload.Dataset.Rows), len(upload.Dataset.Columns))
	return nil
}

// Run reads lines until EOF or .quit. Ctrl-C abandons the current line only.
func (s *Shell) Run(ctx context.Context, in LineReader) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if quit := s.Handle(ctx, line); quit {
			return nil
		}
	}
}

// Handle processes one input line and reports whether the shell should exit.
func (s *Shell) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, ".") {
		return s.command(ctx, line)
	}
	if !s.loaded {
		_, _ = fmt.Fprintln(s.Out, "no spreadsheet loaded; use .load <file>")
		return false
	}

	outcome, asked := s.Pipeline.Ask(ctx, s.upload, line)
	if !asked {
		return false
	}
	if outcome.Failure != nil {
		_, _ = fmt.Fprintf(s.Out, "error (%s): %s\n", outcome.Failure.Stage, outcome.Failure.Message)
		return false
	}
	if s.ShowSQL {
		_, _ = fmt.Fprintf(s.Out, "%s\n\n", outcome.Table.SQL)
	}
	_ = table.Render(s.Out, outcome.Table.Columns, outcome.Table.Rows, outcome.Table.Truncated)
	return false
}

func (s *Shell) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ".quit", ".exit":
		return true
	case ".help":
		s.help()
	case ".load":
		if arg == "" {
			_, _ = fmt.Fprintln(s.Out, "usage: .load <file>")
			return false
		}
		if err := s.LoadFile(ctx, arg); err != nil {
			s.printError(err)
		}
	case ".schema":
		if !s.loaded {
			_, _ = fmt.Fprintln(s.Out, "no spreadsheet loaded; use .load <file>")
			return false
		}
		rows := make([][]any, len(s.upload.Dataset.Columns))
		for i, column := range s.upload.Dataset.Columns {
			rows[i] = []any{column.Name, string(column.Type), column.Original}
		}
		_ = table.Render(s.Out, []string{"column", "type", "header"}, rows, false)
	case ".sql":
		s.ShowSQL = !s.ShowSQL
		_, _ = fmt.Fprintf(s.Out, "show sql: %t\n", s.ShowSQL)
	default:
		_, _ = fmt.Fprintf(s.Out, "unknown command %s; try .help\n", name)
	}
	return false
}

func (s *Shell) printError(err error) {
	if failure, ok := pipeline.AsError(err); ok {
		_, _ = fmt.Fprintf(s.Out, "error (%s): %s\n", failure.Stage, failure.Message)
		return
	}
	_, _ = fmt.Fprintf(s.Out, "error: %v\n", err)
}

func (s *Shell) help() {
	_, _ = fmt.Fprintln(s.Out, "type a question about the loaded spreadsheet, or:")
	_, _ = fmt.Fprintln(s.Out, "  .load <file>   load a csv, tsv, xlsx or parquet file")
	_, _ = fmt.Fprintln(s.Out, "  .schema        show columns and their original headers")
	_, _ = fmt.Fprintln(s.Out, "  .sql           toggle printing the generated query")
	_, _ = fmt.Fprintln(s.Out, "  .quit          exit")
}

// NewReadline returns a line editor with history kept in historyFile.
func NewReadline(historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		AutoComplete:    readline.NewPrefixCompleter(readline.PcItem(".load"), readline.PcItem(".schema"), readline.PcItem(".sql"), readline.PcItem(".help"), readline.PcItem(".quit")),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold: true,
	})
}

// HistoryFile is ~/.sheetsql_history, or empty when there is no home.
func HistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sheetsql_history")
}
