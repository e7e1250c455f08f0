package nlsqlctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

func newServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Query = r.URL.RawQuery
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &captured.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), args, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	return code, stdout.String(), stderr.String()
}

func TestRunHealthCommand(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"status":"ok","service":"nlsql-api"}`)

	code, stdout, stderr := run(t, "--base-url", srv.URL, "health")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if got.Method != http.MethodGet || got.Path != "/v1/health" {
		t.Fatalf("request = %s %s", got.Method, got.Path)
	}
	if !strings.Contains(stdout, `"status": "ok"`) {
		t.Fatalf("expected pretty json, got %q", stdout)
	}
}

func TestRunAskCommand(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"sql":"SELECT name FROM customers;","columns":["name"],"rows":[{"name":"Ada"},{"name":"Linus"}],"row_count":2}`)

	code, stdout, stderr := run(t, "--base-url", srv.URL, "-o", "table", "ask", "who", "are", "my", "customers", "--url", "sqlite:///shop.db")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if got.Method != http.MethodPost || got.Path != "/v1/query" {
		t.Fatalf("request = %s %s", got.Method, got.Path)
	}
	if got.Body["question"] != "who are my customers" || got.Body["connection_url"] != "sqlite:///shop.db" {
		t.Fatalf("unexpected body: %#v", got.Body)
	}
	for _, want := range []string{"SELECT name FROM customers;", "NAME", "Ada", "Linus", "(2 rows)"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestRunAskRequiresURL(t *testing.T) {
	code, _, stderr := run(t, "ask", "anything")
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr, "url") {
		t.Fatalf("expected missing flag message, got %q", stderr)
	}
}

func TestRunHistoryCommands(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `[{"id":2,"status":"ok","dialect":"sqlite","row_count":3,"created_at":"2024-05-01T09:00:00Z","question":"count orders"}]`)

	code, stdout, stderr := run(t, "--base-url", srv.URL, "--output", "table", "history", "--limit", "5")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if got.Path != "/v1/history" || got.Query != "limit=5" {
		t.Fatalf("request = %s?%s", got.Path, got.Query)
	}
	if !strings.Contains(stdout, "QUESTION") || !strings.Contains(stdout, "count orders") {
		t.Fatalf("unexpected table:\n%s", stdout)
	}

	code, _, stderr = run(t, "--base-url", srv.URL, "history", "get", "2")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if got.Path != "/v1/history/2" {
		t.Fatalf("path = %s", got.Path)
	}

	if code, _, _ := run(t, "--base-url", srv.URL, "history", "get", "abc"); code != 2 {
		t.Fatalf("expected usage error for invalid id, got %d", code)
	}
}

func TestRunExploreCommands(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"dot":"digraph ER {\n}\n"}`)

	code, stdout, stderr := run(t, "--base-url", srv.URL, "-o", "table", "diagram", "--url", "sqlite:///shop.db")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if got.Path != "/v1/explore/diagram" || got.Body["connection_url"] != "sqlite:///shop.db" {
		t.Fatalf("unexpected request %s %#v", got.Path, got.Body)
	}
	if stdout != "digraph ER {\n}\n" {
		t.Fatalf("stdout = %q", stdout)
	}

	code, _, stderr = run(t, "--base-url", srv.URL, "explain", "SELECT 1", "--url", "sqlite:///shop.db", "--analyze")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if got.Path != "/v1/explore/explain" || got.Body["sql"] != "SELECT 1" || got.Body["analyze"] != true {
		t.Fatalf("unexpected request %s %#v", got.Path, got.Body)
	}
}

func TestRunSchemaTable(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"tables":[{"name":"orders","columns":[{"name":"id","type":"INTEGER","nullable":false}]}]}`)

	code, stdout, stderr := run(t, "--base-url", srv.URL, "-o", "table", "schema", "--url", "sqlite:///shop.db")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if !strings.Contains(stdout, "orders") || !strings.Contains(stdout, "INTEGER") || !strings.Contains(stdout, "false") {
		t.Fatalf("unexpected schema table:\n%s", stdout)
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv, _ := newServer(t, http.StatusServiceUnavailable, `{"error_code":"TRANSLATOR_NOT_CONFIGURED"}`)

	code, _, stderr := run(t, "--base-url", srv.URL, "ready")
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if !strings.Contains(stderr, "http 503") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRunReturnsErrorWhenServerUnreachable(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{}`)
	address := srv.URL
	srv.Close()

	code, _, stderr := run(t, "--base-url", address, "health")
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr, "request failed") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRunUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"unknown"},
		{"--output", "yaml", "health"},
		{"--timeout", "soon", "health"},
	} {
		code, _, stderr := run(t, args...)
		if code != 2 {
			t.Fatalf("Run(%v) exit code = %d", args, code)
		}
		if stderr == "" {
			t.Fatalf("Run(%v) expected usage output", args)
		}
	}
}
