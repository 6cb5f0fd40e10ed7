package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sheetsql/sheetsql/internal/config"
	"github.com/sheetsql/sheetsql/internal/dataset"
	"github.com/sheetsql/sheetsql/internal/pipeline"
	"github.com/sheetsql/sheetsql/internal/session"
	"github.com/sheetsql/sheetsql/internal/storage"
)

const (
	defaultUploadName = "upload.csv"
	multipartOverhead = 1 << 20
)

type objectUploadRequest struct {
	ObjectKey string `json:"object_key"`
}

type uploadResponse struct {
	UploadID  string           `json:"upload_id"`
	Name      string           `json:"name"`
	Columns   []dataset.Column `json:"columns"`
	RowCount  int              `json:"row_count"`
	Preview   [][]any          `json:"preview"`
	CreatedAt time.Time        `json:"created_at"`
	LoadedAt  time.Time        `json:"loaded_at"`
}

func handleCreateUpload(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil || deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "UPLOADS_NOT_CONFIGURED", "upload handling is not configured", false, nil)
		return
	}
	upload, ok := loadUpload(cfg, deps, w, r)
	if !ok {
		return
	}
	sess := deps.Sessions.Create(upload)
	writeJSON(w, http.StatusCreated, newUploadResponse(sess, upload, cfg.Upload.PreviewRows))
}

func handleGetUpload(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newUploadResponse(sess, sess.Upload(), cfg.Upload.PreviewRows))
}

// handleReplaceUpload swaps the session's dataset for a fresh upload. The
// previous dataset is kept when the new one is rejected.
func handleReplaceUpload(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "UPLOADS_NOT_CONFIGURED", "upload handling is not configured", false, nil)
		return
	}
	sess, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	upload, ok := loadUpload(cfg, deps, w, r)
	if !ok {
		return
	}
	sess.Replace(upload)
	writeJSON(w, http.StatusOK, newUploadResponse(sess, upload, cfg.Upload.PreviewRows))
}

func handleDeleteUpload(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "UPLOADS_NOT_CONFIGURED", "upload handling is not configured", false, nil)
		return
	}
	id := r.PathValue("id")
	if !deps.Sessions.Delete(id) {
		writeError(r.Context(), w, http.StatusNotFound, "UPLOAD_NOT_FOUND", "upload not found", false, map[string]any{"upload_id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func lookupSession(deps Dependencies, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "UPLOADS_NOT_CONFIGURED", "upload handling is not configured", false, nil)
		return nil, false
	}
	id := r.PathValue("id")
	sess, ok := deps.Sessions.Get(id)
	if !ok {
		writeError(r.Context(), w, http.StatusNotFound, "UPLOAD_NOT_FOUND", "upload not found", false, map[string]any{"upload_id": id})
		return nil, false
	}
	return sess, true
}

func loadUpload(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) (pipeline.Upload, bool) {
	name, body, ok := openUploadBody(cfg, deps, w, r)
	if !ok {
		return pipeline.Upload{}, false
	}
	defer func() { _ = body.Close() }()

	upload, err := deps.Pipeline.Load(r.Context(), name, body)
	if err != nil {
		if failure, ok := pipeline.AsError(err); ok {
			writeStageError(r.Context(), w, failure)
			return pipeline.Upload{}, false
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "UPLOAD_FAILED", "failed to load upload", false, map[string]any{"details": err.Error()})
		return pipeline.Upload{}, false
	}
	return upload, true
}

// openUploadBody accepts a multipart form with a "file" field, a JSON object
// key naming a bucket object, or the raw file as the request body.
func openUploadBody(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) (string, io.ReadCloser, bool) {
	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, cfg.Upload.MaxBytes+multipartOverhead)
		reader := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := reader.NextPart()
			if errors.Is(err, io.EOF) {
				writeError(r.Context(), w, http.StatusBadRequest, "FILE_REQUIRED", "multipart form has no file field", false, nil)
				return "", nil, false
			}
			if err != nil {
				writeError(r.Context(), w, http.StatusBadRequest, "INVALID_MULTIPART", "invalid multipart upload", false, map[string]any{"details": err.Error()})
				return "", nil, false
			}
			if part.FormName() == "file" {
				name := part.FileName()
				if name == "" {
					name = defaultUploadName
				}
				return name, part, true
			}
			_ = part.Close()
		}
	case "application/json":
		return openObjectUpload(deps, w, r)
	default:
		name := strings.TrimSpace(r.Header.Get("X-Filename"))
		if name == "" {
			name = defaultUploadName
		}
		return name, r.Body, true
	}
}

func openObjectUpload(deps Dependencies, w http.ResponseWriter, r *http.Request) (string, io.ReadCloser, bool) {
	var req objectUploadRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid upload request body", false, map[string]any{"details": err.Error()})
		return "", nil, false
	}
	if deps.Uploads == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "OBJECT_STORE_NOT_CONFIGURED", "object store uploads are not enabled", false, nil)
		return "", nil, false
	}

	upload, err := deps.Uploads.Fetch(r.Context(), req.ObjectKey)
	if err != nil {
		extra := map[string]any{"object_key": req.ObjectKey}
		switch {
		case errors.Is(err, storage.ErrInvalidKey):
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_OBJECT_KEY", err.Error(), false, extra)
		case errors.Is(err, storage.ErrObjectNotFound):
			writeError(r.Context(), w, http.StatusNotFound, "OBJECT_NOT_FOUND", "object not found", false, extra)
		case errors.Is(err, storage.ErrObjectTooLarge):
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", err.Error(), false, extra)
		default:
			extra["details"] = err.Error()
			writeError(r.Context(), w, http.StatusBadGateway, "OBJECT_STORE_FAILED", "failed to fetch object", true, extra)
		}
		return "", nil, false
	}
	return upload.Name, upload.Body, true
}

func newUploadResponse(sess *session.Session, upload pipeline.Upload, previewRows int) uploadResponse {
	return uploadResponse{
		UploadID:  sess.ID,
		Name:      upload.Name,
		Columns:   upload.Dataset.Columns,
		RowCount:  len(upload.Dataset.Rows),
		Preview:   upload.Dataset.Preview(previewRows),
		CreatedAt: sess.CreatedAt,
		LoadedAt:  upload.LoadedAt,
	}
}
