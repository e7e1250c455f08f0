package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tigel-agm/NL-SQL/internal/nl2sql"
)

func seededHandler(t *testing.T) http.Handler {
	t.Helper()
	svc, _ := newTestRelay(&fakeTranslator{result: nl2sql.Result{Query: customersSQL}})
	svc.Archiver = &memoryArchiver{}
	svc.Replay = &staticEngine{}
	h := NewHandler(testConfig(nil), Dependencies{Relay: svc})
	if rr := postJSON(h, "/v1/query", `{"question":"customers","connection_url":"sqlite:///shop.db"}`); rr.Code != http.StatusOK {
		t.Fatalf("seed query status = %d, body=%s", rr.Code, rr.Body.String())
	}
	return h
}

func TestHistoryList(t *testing.T) {
	h := seededHandler(t)

	for _, path := range []string{"/v1/history", "/history?limit=5"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, rr.Code)
		}
		var entries []map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("entries = %d", len(entries))
		}
		entry := entries[0]
		if entry["question"] != "customers" || entry["sql"] != customersSQL || entry["status"] != "ok" {
			t.Fatalf("unexpected entry: %#v", entry)
		}
		if entry["created_at"] != "2024-05-01T09:00:00Z" {
			t.Fatalf("created_at = %v", entry["created_at"])
		}
		if columns, _ := entry["columns"].([]any); len(columns) != 2 || columns[0] != "name" || columns[1] != "country" {
			t.Fatalf("columns = %#v", entry["columns"])
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history?limit=abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid limit status = %d", rr.Code)
	}
}

func TestHistoryGet(t *testing.T) {
	h := seededHandler(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history/1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["row_count"] != float64(2) {
		t.Fatalf("unexpected entry: %#v", body)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history/42", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing entry status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "HISTORY_NOT_FOUND" {
		t.Fatalf("unexpected body: %#v", body)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history/zero", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d", rr.Code)
	}
}

func TestHistoryEntryExport(t *testing.T) {
	h := seededHandler(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history/1/export?format=csv", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="history-1.csv"` {
		t.Fatalf("Content-Disposition = %q", got)
	}
	records, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	// Columns keep the order of the SELECT list, not the alphabetical order.
	if len(records) != 3 || strings.Join(records[0], ",") != "name,country" || strings.Join(records[1], ",") != "Ada,UK" {
		t.Fatalf("unexpected csv: %#v", records)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history/1/export?format=json", nil))
	var rows []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &rows); err != nil || len(rows) != 2 {
		t.Fatalf("json export = %s, err=%v", rr.Body.String(), err)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history/1/export?format=xlsx", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid format status = %d", rr.Code)
	}
}

func TestHistoryFullExport(t *testing.T) {
	h := seededHandler(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history/export", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	records, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}
	if strings.Join(records[0], ",") != "id,question,sql,status,row_count,dialect,error,created_at" {
		t.Fatalf("header = %v", records[0])
	}
	if records[1][0] != "1" || records[1][2] != customersSQL || records[1][4] != "2" {
		t.Fatalf("row = %v", records[1])
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history/export?format=json", nil))
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Disposition") != `attachment; filename="history.json"` {
		t.Fatalf("json export status = %d headers=%v", rr.Code, rr.Header())
	}
}

func TestHistoryReplay(t *testing.T) {
	h := seededHandler(t)

	rr := postJSON(h, "/v1/history/1/query", `{"sql":"SELECT COUNT(*) AS c FROM result"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	rows := body["rows"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["c"] != float64(2) {
		t.Fatalf("unexpected replay body: %#v", body)
	}

	rr = postJSON(h, "/v1/history/9/query", `{"sql":"SELECT 1"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing entry status = %d", rr.Code)
	}
}

func TestHistoryReplayWithoutArchive(t *testing.T) {
	svc, _ := newTestRelay(&fakeTranslator{result: nl2sql.Result{Query: customersSQL}})
	h := NewHandler(testConfig(nil), Dependencies{Relay: svc})
	postJSON(h, "/v1/query", `{"question":"customers","connection_url":"sqlite:///shop.db"}`)

	rr := postJSON(h, "/v1/history/1/query", `{"sql":"SELECT 1"}`)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "ARCHIVE_NOT_CONFIGURED" {
		t.Fatalf("unexpected body: %#v", body)
	}
}

func TestHistoryWithoutStoreReportsHistoryNotConfigured(t *testing.T) {
	svc, _ := newTestRelay(&fakeTranslator{result: nl2sql.Result{Query: customersSQL}})
	svc.History = nil
	h := NewHandler(testConfig(nil), Dependencies{Relay: svc})

	for _, path := range []string{"/v1/history", "/v1/history/1", "/v1/history/1/export?format=csv"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("GET %s status = %d", path, rr.Code)
		}
		if body := decodeBody(t, rr); body["error_code"] != "HISTORY_NOT_CONFIGURED" {
			t.Fatalf("GET %s body = %#v", path, body)
		}
	}
}
