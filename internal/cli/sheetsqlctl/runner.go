package sheetsqlctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sheetsql/sheetsql/internal/cli/table"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	filename    string
}

type column struct {
	Name     string `json:"name"`
	Original string `json:"original"`
	Type     string `json:"type"`
}

type uploadBody struct {
	UploadID string   `json:"upload_id"`
	Name     string   `json:"name"`
	Columns  []column `json:"columns"`
	RowCount int      `json:"row_count"`
	Preview  [][]any  `json:"preview"`
}

type askBody struct {
	SQL        string   `json:"sql"`
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	Truncated  bool     `json:"truncated"`
	DurationMS int64    `json:"duration_ms"`
}

type errorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Stage     string `json:"stage"`
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("sheetsqlctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "sheetsql API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 90*time.Second), "HTTP timeout (e.g. 90s)")
	rawJSON := fs.Bool("json", false, "print raw JSON responses instead of tables")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	operands := fs.Args()[1:]
	req, err := buildRequest(command, operands)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}
	if closer, ok := req.body.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req, endpoint)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		var failure errorBody
		if json.Unmarshal(responseBody, &failure) == nil && failure.Stage != "" {
			_, _ = fmt.Fprintf(stderr, "error (%s): %s\n", failure.Stage, failure.Message)
			return 1
		}
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}
	if code == http.StatusNoContent {
		if command == "ask" {
			_, _ = fmt.Fprintln(stdout, "(empty question, nothing asked)")
		}
		return 0
	}

	if !*rawJSON {
		if err := renderResponse(stdout, command, responseBody); err == nil {
			return 0
		}
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(command string, operands []string) (request, error) {
	need := func(n int, usage string) error {
		if len(operands) < n {
			return fmt.Errorf("usage: sheetsqlctl %s", usage)
		}
		return nil
	}

	switch command {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "upload":
		if err := need(1, "upload <file>"); err != nil {
			return request{}, err
		}
		return fileRequest(http.MethodPost, "/v1/uploads", operands[0])
	case "upload-object":
		if err := need(1, "upload-object <key>"); err != nil {
			return request{}, err
		}
		payload, err := json.Marshal(map[string]string{"object_key": operands[0]})
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: "/v1/uploads", body: bytes.NewReader(payload), contentType: "application/json"}, nil
	case "replace":
		if err := need(2, "replace <upload-id> <file>"); err != nil {
			return request{}, err
		}
		return fileRequest(http.MethodPut, uploadPath(operands[0]), operands[1])
	case "schema":
		if err := need(1, "schema <upload-id>"); err != nil {
			return request{}, err
		}
		return request{method: http.MethodGet, path: uploadPath(operands[0])}, nil
	case "ask":
		if err := need(2, "ask <upload-id> <question...>"); err != nil {
			return request{}, err
		}
		payload, err := json.Marshal(map[string]string{"question": strings.Join(operands[1:], " ")})
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: uploadPath(operands[0]) + "/ask", body: bytes.NewReader(payload), contentType: "application/json"}, nil
	case "drop":
		if err := need(1, "drop <upload-id>"); err != nil {
			return request{}, err
		}
		return request{method: http.MethodDelete, path: uploadPath(operands[0])}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

func fileRequest(method, path, filename string) (request, error) {
	f, err := os.Open(filename)
	if err != nil {
		return request{}, fmt.Errorf("open upload: %w", err)
	}
	return request{
		method:      method,
		path:        path,
		body:        f,
		contentType: "application/octet-stream",
		filename:    filepath.Base(filename),
	}, nil
}

func uploadPath(id string) string {
	return "/v1/uploads/" + url.PathEscape(strings.TrimSpace(id))
}

func doRequest(ctx context.Context, client *http.Client, r request, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, r.body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.filename != "" {
		req.Header.Set("X-Filename", r.filename)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func renderResponse(w io.Writer, command string, raw []byte) error {
	switch command {
	case "upload", "upload-object", "replace", "schema":
		var body uploadBody
		if err := json.Unmarshal(raw, &body); err != nil {
			return err
		}
		return renderUpload(w, body)
	case "ask":
		var body askBody
		if err := json.Unmarshal(raw, &body); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "%s\n\n", body.SQL)
		return table.Render(w, body.Columns, body.Rows, body.Truncated)
	default:
		return fmt.Errorf("no table view for %s", command)
	}
}

func renderUpload(w io.Writer, body uploadBody) error {
	_, _ = fmt.Fprintf(w, "upload %s (%s, %d rows)\n\n", body.UploadID, body.Name, body.RowCount)
	rows := make([][]any, len(body.Columns))
	names := make([]string, len(body.Columns))
	for i, c := range body.Columns {
		rows[i] = []any{c.Name, c.Type, c.Original}
		names[i] = c.Name
	}
	if err := table.Render(w, []string{"column", "type", "header"}, rows, false); err != nil {
		return err
	}
	if len(body.Preview) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(w)
	return table.Render(w, names, body.Preview, false)
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: sheetsqlctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                      GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                       GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  upload <file>               POST /v1/uploads")
	_, _ = fmt.Fprintln(w, "  upload-object <key>         POST /v1/uploads from the object store")
	_, _ = fmt.Fprintln(w, "  replace <id> <file>         PUT /v1/uploads/{id}")
	_, _ = fmt.Fprintln(w, "  schema <id>                 GET /v1/uploads/{id}")
	_, _ = fmt.Fprintln(w, "  ask <id> <question...>      POST /v1/uploads/{id}/ask")
	_, _ = fmt.Fprintln(w, "  drop <id>                   DELETE /v1/uploads/{id}")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
