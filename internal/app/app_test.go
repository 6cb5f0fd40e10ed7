package app

import (
	"context"
	"errors"
	"testing"

	"github.com/sheetsql/sheetsql/internal/config"
	"github.com/sheetsql/sheetsql/internal/nl2sql"
	duckdbengine "github.com/sheetsql/sheetsql/internal/query/duckdb"
	sqliteengine "github.com/sheetsql/sheetsql/internal/query/sqlite"
)

func loadConfig(t *testing.T, values map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load("sheetsql-test", func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	})
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestNewEngineFollowsConfig(t *testing.T) {
	engine, err := NewEngine(loadConfig(t, map[string]string{}))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if _, ok := engine.(*duckdbengine.Engine); !ok {
		t.Fatalf("default engine = %T", engine)
	}

	engine, err = NewEngine(loadConfig(t, map[string]string{"SHEETSQL_QUERY_ENGINE": "sqlite"}))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if _, ok := engine.(*sqliteengine.Engine); !ok {
		t.Fatalf("sqlite engine = %T", engine)
	}

	if _, err := NewEngine(config.Config{}); err == nil {
		t.Fatal("expected unknown engine error")
	}
}

func TestNewTranslatorRequiresAPIKey(t *testing.T) {
	if _, err := NewTranslator(loadConfig(t, map[string]string{})); !errors.Is(err, ErrAPIKeyMissing) {
		t.Fatalf("NewTranslator() error = %v", err)
	}
	translator, err := NewTranslator(loadConfig(t, map[string]string{"SHEETSQL_AI_API_KEY": "sk-test"}))
	if err != nil || translator == nil {
		t.Fatalf("NewTranslator() = %v, %v", translator, err)
	}
}

func TestUnavailableTranslatorFails(t *testing.T) {
	_, err := UnavailableTranslator(ErrAPIKeyMissing).Translate(context.Background(), nl2sql.Request{Question: "x"})
	if !errors.Is(err, ErrAPIKeyMissing) {
		t.Fatalf("Translate() error = %v", err)
	}
}

func TestNewServiceCopiesLimits(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"SHEETSQL_QUERY_ROW_LIMIT": "50"})
	svc := NewService(cfg, nil, nil, nil)
	if svc.RowLimit != 50 || svc.Limits.MaxBytes != cfg.Upload.MaxBytes || svc.QuestionTimeout != cfg.Query.QuestionTimeout {
		t.Fatalf("service = %+v", svc)
	}
}

func TestNewUploadSourceDisabled(t *testing.T) {
	source, err := NewUploadSource(loadConfig(t, map[string]string{}))
	if err != nil || source != nil {
		t.Fatalf("NewUploadSource() = %v, %v", source, err)
	}
	if UploadSource(source) != nil {
		t.Fatal("expected nil interface for a disabled source")
	}
}
