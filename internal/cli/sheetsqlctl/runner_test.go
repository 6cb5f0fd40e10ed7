package sheetsqlctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunUploadSendsFileWithName(t *testing.T) {
	var gotMethod, gotPath, gotName, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotName = r.Header.Get("X-Filename")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"upload_id":"u1","name":"sales.csv","row_count":1,"columns":[{"name":"total_sales","original":"Total Sales","type":"real"}],"preview":[[12.5]]}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte("Total Sales\n12.5\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "upload", path}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/uploads" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotName != "sales.csv" || !strings.HasPrefix(gotBody, "Total Sales") {
		t.Fatalf("name=%q body=%q", gotName, gotBody)
	}
	if !strings.Contains(stdout.String(), "upload u1") || !strings.Contains(stdout.String(), "total_sales") {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunAskRendersTable(t *testing.T) {
	var gotPath string
	var gotQuestion map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotQuestion)
		_, _ = w.Write([]byte(`{"sql":"SELECT region, units FROM data_table","columns":["region","units"],"rows":[["North",4],["South",7]],"truncated":false,"duration_ms":3}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "ask", "u1", "units", "by", "region?"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/uploads/u1/ask" || gotQuestion["question"] != "units by region?" {
		t.Fatalf("path=%s question=%#v", gotPath, gotQuestion)
	}
	out := stdout.String()
	if !strings.Contains(out, "SELECT region, units") || !strings.Contains(out, "North   4") || !strings.Contains(out, "(2 rows)") {
		t.Fatalf("stdout = %s", out)
	}
}

func TestRunAskReportsStageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error_code":"EXECUTION_FAILED","stage":"execute","message":"no such column: revenue"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "ask", "u1", "revenue?"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if strings.TrimSpace(stderr.String()) != "error (execute): no such column: revenue" {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunDropCommand(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "drop", "u1"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotMethod != http.MethodDelete || gotPath != "/v1/uploads/u1" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
}

func TestRunJSONFlagPrintsRawResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","service":"sheetsql-api"}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "-json", "health"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), `"service": "sheetsql-api"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_code":"UPLOAD_NOT_FOUND"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "schema", "missing"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "http 404") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunUnknownCommandAndMissingOperands(t *testing.T) {
	for _, args := range [][]string{{"unknown"}, {"ask", "u1"}, {}} {
		var stderr bytes.Buffer
		code := Run(context.Background(), args, Options{Stderr: &stderr})
		if code != 2 {
			t.Fatalf("Run(%q) exit code = %d", args, code)
		}
		if stderr.Len() == 0 {
			t.Fatalf("Run(%q) expected usage output", args)
		}
	}
}
