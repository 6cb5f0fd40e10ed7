package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sheetsql/sheetsql/internal/app"
	"github.com/sheetsql/sheetsql/internal/cli/shell"
	"github.com/sheetsql/sheetsql/internal/config"
	"github.com/sheetsql/sheetsql/internal/observability"
)

func main() {
	showSQL := flag.Bool("sql", false, "print the generated query above each result")
	flag.Usage = func() {
		_, _ = fmt.Fprintln(flag.CommandLine.Output(), "usage: sheetsql [flags] [file]")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadFromEnv("sheetsql")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	engine, err := app.NewEngine(cfg)
	if err != nil {
		logger.Error("failed to initialize query engine", slog.Any("error", err))
		os.Exit(1)
	}
	translator, err := app.NewTranslator(cfg)
	if err != nil {
		logger.Error("failed to initialize query translator", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	sh := &shell.Shell{
		Pipeline: app.NewService(cfg, engine, translator, logger),
		Out:      os.Stdout,
		ShowSQL:  *showSQL,
	}
	if flag.NArg() > 0 {
		if err := sh.LoadFile(ctx, flag.Arg(0)); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	rl, err := shell.NewReadline(shell.HistoryFile())
	if err != nil {
		logger.Error("failed to start line editor", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	if err := sh.Run(ctx, rl); err != nil {
		logger.Error("shell failed", slog.Any("error", err))
	}
}
