package api

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/sheetsql/sheetsql/internal/pipeline"
)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	SQL        string   `json:"sql"`
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	Truncated  bool     `json:"truncated"`
	DurationMS int64    `json:"duration_ms"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "UPLOADS_NOT_CONFIGURED", "upload handling is not configured", false, nil)
		return
	}
	sess, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}

	var req askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}

	var (
		outcome pipeline.Outcome
		asked   bool
	)
	sess.Use(func(upload pipeline.Upload) {
		outcome, asked = deps.Pipeline.Ask(r.Context(), upload, req.Question)
	})
	if !asked {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if outcome.Failure != nil {
		writeStageError(r.Context(), w, outcome.Failure)
		return
	}

	table := outcome.Table
	response := askResponse{
		SQL:        table.SQL,
		Columns:    table.Columns,
		Rows:       jsonSafeRows(table.Rows),
		Truncated:  table.Truncated,
		DurationMS: table.Duration.Milliseconds(),
	}
	if _, err := json.Marshal(response.Rows); err != nil {
		writeStageError(r.Context(), w, &pipeline.Error{
			Stage:   pipeline.StageExecute,
			Message: "result cannot be represented as JSON: " + err.Error(),
			Err:     err,
		})
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// jsonSafeRows replaces non-finite floats, which encoding/json rejects, with
// their text form, including inside lists and maps.
func jsonSafeRows(rows [][]any) [][]any {
	if rows == nil {
		return [][]any{}
	}
	for _, row := range rows {
		for i, value := range row {
			row[i] = jsonSafeValue(value)
		}
	}
	return rows
}

func jsonSafeValue(value any) any {
	switch typed := value.(type) {
	case float64:
		switch {
		case math.IsNaN(typed):
			return "NaN"
		case math.IsInf(typed, 1):
			return "Infinity"
		case math.IsInf(typed, -1):
			return "-Infinity"
		}
	case []any:
		for i, item := range typed {
			typed[i] = jsonSafeValue(item)
		}
	case map[string]any:
		for key, item := range typed {
			typed[key] = jsonSafeValue(item)
		}
	}
	return value
}
