package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sheetsql/sheetsql/internal/config"
	"github.com/sheetsql/sheetsql/internal/observability"
	"github.com/sheetsql/sheetsql/internal/pipeline"
	"github.com/sheetsql/sheetsql/internal/session"
	"github.com/sheetsql/sheetsql/internal/storage"
)

type ReadinessCheck func(ctx context.Context) error

// QuestionService loads uploads and answers questions about them.
type QuestionService interface {
	Load(ctx context.Context, name string, r io.Reader) (pipeline.Upload, error)
	Ask(ctx context.Context, upload pipeline.Upload, question string) (pipeline.Outcome, bool)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Pipeline          QuestionService
	Sessions          *session.Store
	Uploads           storage.UploadSource
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/uploads", func(w http.ResponseWriter, r *http.Request) {
		handleCreateUpload(cfg, deps, w, r)
	})
	mux.HandleFunc("GET /v1/uploads/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleGetUpload(cfg, deps, w, r)
	})
	mux.HandleFunc("PUT /v1/uploads/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleReplaceUpload(cfg, deps, w, r)
	})
	mux.HandleFunc("DELETE /v1/uploads/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleDeleteUpload(deps, w, r)
	})
	mux.HandleFunc("POST /v1/uploads/{id}/ask", func(w http.ResponseWriter, r *http.Request) {
		handleAsk(deps, w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckTranslatorConfig fails readiness until an API key is configured.
func CheckTranslatorConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.AI.APIKey == "" {
			return errors.New("generation service api key is not configured")
		}
		if cfg.AI.BaseURL == "" {
			return errors.New("generation service base url is not configured")
		}
		return nil
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// CheckUploadSource pings the upload bucket when the source supports it.
func CheckUploadSource(source storage.UploadSource) ReadinessCheck {
	p, ok := source.(pinger)
	if !ok {
		return nil
	}
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

// encodingFailureBody is sent when a payload cannot be encoded, so a client
// never sees a success status with an empty or partial body.
const encodingFailureBody = `{"error_code":"RESPONSE_ENCODING_FAILED","message":"response could not be encoded as JSON","retryable":false}` + "\n"

func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, encodingFailureBody)
		return
	}
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

// writeStageError reports a pipeline failure with its stage alongside the
// usual envelope fields.
func writeStageError(ctx context.Context, w http.ResponseWriter, failure *pipeline.Error) {
	status, code, retryable := stageStatus(failure.Stage)
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    failure.Message,
		"stage":      string(failure.Stage),
		"retryable":  retryable,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

func stageStatus(stage pipeline.Stage) (int, string, bool) {
	switch stage {
	case pipeline.StageRead:
		return http.StatusBadRequest, "DATASET_INVALID", false
	case pipeline.StageTranslate:
		return http.StatusBadGateway, "TRANSLATION_FAILED", true
	default:
		return http.StatusUnprocessableEntity, "EXECUTION_FAILED", false
	}
}
