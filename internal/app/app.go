// Package app builds the question pipeline and its collaborators from
// configuration. The binaries share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sheetsql/sheetsql/internal/config"
	"github.com/sheetsql/sheetsql/internal/dataset"
	"github.com/sheetsql/sheetsql/internal/nl2sql"
	"github.com/sheetsql/sheetsql/internal/pipeline"
	"github.com/sheetsql/sheetsql/internal/query"
	duckdbengine "github.com/sheetsql/sheetsql/internal/query/duckdb"
	sqliteengine "github.com/sheetsql/sheetsql/internal/query/sqlite"
	"github.com/sheetsql/sheetsql/internal/session"
	"github.com/sheetsql/sheetsql/internal/storage"
	s3store "github.com/sheetsql/sheetsql/internal/storage/s3"
)

var ErrAPIKeyMissing = errors.New("generation service api key is not configured")

func NewEngine(cfg config.Config) (query.Engine, error) {
	switch cfg.Query.Engine {
	case config.EngineDuckDB:
		return duckdbengine.NewEngine(), nil
	case config.EngineSQLite:
		return sqliteengine.NewEngine(), nil
	default:
		return nil, fmt.Errorf("unknown query engine %q", cfg.Query.Engine)
	}
}

// NewTranslator returns ErrAPIKeyMissing when no key is configured.
func NewTranslator(cfg config.Config) (nl2sql.Translator, error) {
	if cfg.AI.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}
	translator, err := nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
		BaseURL:           cfg.AI.BaseURL,
		APIKey:            cfg.AI.APIKey,
		Model:             cfg.AI.Model,
		Temperature:       cfg.AI.Temperature,
		Timeout:           cfg.AI.Timeout,
		MaxRetries:        cfg.AI.MaxRetries,
		RetryBackoff:      cfg.AI.RetryBackoff,
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("init query translator: %w", err)
	}
	return translator, nil
}

// UnavailableTranslator fails every translation with err. It lets the API
// serve uploads while generation is not configured.
func UnavailableTranslator(err error) nl2sql.Translator {
	return nl2sql.TranslatorFunc(func(context.Context, nl2sql.Request) (nl2sql.Result, error) {
		return nl2sql.Result{}, err
	})
}

func NewService(cfg config.Config, engine query.Engine, translator nl2sql.Translator, logger *slog.Logger) *pipeline.Service {
	return &pipeline.Service{
		Engine:     engine,
		Translator: translator,
		Logger:     logger,
		Limits: dataset.Options{
			MaxBytes: cfg.Upload.MaxBytes,
			MaxRows:  cfg.Upload.MaxRows,
		},
		RowLimit:        cfg.Query.RowLimit,
		SampleRows:      cfg.Query.SampleRows,
		QuestionTimeout: cfg.Query.QuestionTimeout,
	}
}

func NewSessionStore(cfg config.Config, logger *slog.Logger) *session.Store {
	return session.NewStore(session.Config{
		TTL:           cfg.Session.TTL,
		SweepInterval: cfg.Session.SweepInterval,
		MaxSessions:   cfg.Session.MaxSessions,
	}, logger)
}

// NewUploadSource returns nil when object store uploads are disabled.
func NewUploadSource(cfg config.Config) (*s3store.Source, error) {
	if !cfg.ObjectStore.Enabled {
		return nil, nil
	}
	source, err := s3store.New(s3store.Config{
		Endpoint:        cfg.ObjectStore.Endpoint,
		Region:          cfg.ObjectStore.Region,
		Bucket:          cfg.ObjectStore.Bucket,
		AccessKeyID:     cfg.ObjectStore.AccessKeyID,
		SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
		UseSSL:          cfg.ObjectStore.UseSSL,
		Prefix:          cfg.ObjectStore.Prefix,
		MaxBytes:        cfg.Upload.MaxBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}
	return source, nil
}

// UploadSource adapts a possibly nil source to the interface without
// producing a non-nil interface around a nil pointer.
func UploadSource(source *s3store.Source) storage.UploadSource {
	if source == nil {
		return nil
	}
	return source
}
