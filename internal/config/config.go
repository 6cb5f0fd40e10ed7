package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	EngineDuckDB = "duckdb"
	EngineSQLite = "sqlite"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Upload        UploadConfig
	Session       SessionConfig
	Query         QueryConfig
	AI            AIConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type UploadConfig struct {
	MaxBytes    int64
	MaxRows     int
	PreviewRows int
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxSessions   int
}

type QueryConfig struct {
	Engine          string
	RowLimit        int
	QuestionTimeout time.Duration
	SampleRows      int
}

type AIConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	Temperature       float64
	Timeout           time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestsPerMinute int
}

type ObjectStoreConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

// LoadFromEnv reads a .env file from the working directory, if present, and
// then the process environment. Variables already set are never overridden.
func LoadFromEnv(serviceName string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SHEETSQL_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SHEETSQL_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	// OPENAI_API_KEY is honored for .env files written for the OpenAI SDKs.
	if err := applyString(lookup, "OPENAI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "SHEETSQL_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "SHEETSQL_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "SHEETSQL_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "SHEETSQL_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "SHEETSQL_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyInt64(lookup, "SHEETSQL_UPLOAD_MAX_BYTES", &cfg.Upload.MaxBytes) },
		func() error { return applyInt(lookup, "SHEETSQL_UPLOAD_MAX_ROWS", &cfg.Upload.MaxRows) },
		func() error { return applyInt(lookup, "SHEETSQL_UPLOAD_PREVIEW_ROWS", &cfg.Upload.PreviewRows) },
		func() error { return applyDuration(lookup, "SHEETSQL_SESSION_TTL", &cfg.Session.TTL) },
		func() error { return applyDuration(lookup, "SHEETSQL_SESSION_SWEEP_INTERVAL", &cfg.Session.SweepInterval) },
		func() error { return applyInt(lookup, "SHEETSQL_SESSION_MAX", &cfg.Session.MaxSessions) },
		func() error { return applyString(lookup, "SHEETSQL_QUERY_ENGINE", &cfg.Query.Engine) },
		func() error { return applyInt(lookup, "SHEETSQL_QUERY_ROW_LIMIT", &cfg.Query.RowLimit) },
		func() error { return applyDuration(lookup, "SHEETSQL_QUERY_TIMEOUT", &cfg.Query.QuestionTimeout) },
		func() error { return applyInt(lookup, "SHEETSQL_QUERY_SAMPLE_ROWS", &cfg.Query.SampleRows) },
		func() error { return applyString(lookup, "SHEETSQL_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "SHEETSQL_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "SHEETSQL_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyFloat(lookup, "SHEETSQL_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyDuration(lookup, "SHEETSQL_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyInt(lookup, "SHEETSQL_AI_MAX_RETRIES", &cfg.AI.MaxRetries) },
		func() error { return applyDuration(lookup, "SHEETSQL_AI_RETRY_BACKOFF", &cfg.AI.RetryBackoff) },
		func() error { return applyInt(lookup, "SHEETSQL_AI_REQUESTS_PER_MINUTE", &cfg.AI.RequestsPerMinute) },
		func() error { return applyBool(lookup, "SHEETSQL_OBJECTSTORE_ENABLED", &cfg.ObjectStore.Enabled) },
		func() error { return applyString(lookup, "SHEETSQL_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "SHEETSQL_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "SHEETSQL_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "SHEETSQL_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error { return applyString(lookup, "SHEETSQL_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey) },
		func() error { return applyBool(lookup, "SHEETSQL_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "SHEETSQL_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error { return applyBool(lookup, "SHEETSQL_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "SHEETSQL_LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.Query.Engine = strings.ToLower(cfg.Query.Engine)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch c.Query.Engine {
	case EngineDuckDB, EngineSQLite:
	default:
		return fmt.Errorf("invalid SHEETSQL_QUERY_ENGINE: %q", c.Query.Engine)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("SHEETSQL_UPLOAD_MAX_BYTES must be positive")
	}
	if c.Upload.MaxRows <= 0 {
		return fmt.Errorf("SHEETSQL_UPLOAD_MAX_ROWS must be positive")
	}
	if c.Query.RowLimit <= 0 {
		return fmt.Errorf("SHEETSQL_QUERY_ROW_LIMIT must be positive")
	}
	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("SHEETSQL_AI_MAX_RETRIES must not be negative")
	}
	if c.ObjectStore.Enabled && (c.ObjectStore.Endpoint == "" || c.ObjectStore.Bucket == "") {
		return fmt.Errorf("object store endpoint and bucket are required when the object store is enabled")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sheetsql-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Upload: UploadConfig{
			MaxBytes:    32 << 20,
			MaxRows:     200000,
			PreviewRows: 5,
		},
		Session: SessionConfig{
			TTL:           30 * time.Minute,
			SweepInterval: time.Minute,
			MaxSessions:   100,
		},
		Query: QueryConfig{
			Engine:          EngineDuckDB,
			RowLimit:        1000,
			QuestionTimeout: 60 * time.Second,
			SampleRows:      3,
		},
		AI: AIConfig{
			BaseURL:           "https://api.openai.com",
			Model:             "gpt-4-turbo",
			Temperature:       0,
			Timeout:           30 * time.Second,
			MaxRetries:        2,
			RetryBackoff:      500 * time.Millisecond,
			RequestsPerMinute: 60,
		},
		ObjectStore: ObjectStoreConfig{
			Enabled:         false,
			Endpoint:        "localhost:9000",
			Region:          "us-east-1",
			Bucket:          "sheetsql-uploads",
			AccessKeyID:     "minio",
			SecretAccessKey: "miniostorage",
			UseSSL:          false,
			Prefix:          "",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.AI.MaxRetries = 0
		cfg.AI.RequestsPerMinute = 0
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.ObjectStore.UseSSL = true
		cfg.Query.SampleRows = 0
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
