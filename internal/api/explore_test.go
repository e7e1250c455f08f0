package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExploreOperations(t *testing.T) {
	svc, _ := newTestRelay(nil)
	h := NewHandler(testConfig(nil), Dependencies{Relay: svc})

	tests := []struct {
		op   string
		body string
		key  string
	}{
		{op: "tables", body: `{"connection_url":"sqlite:///shop.db"}`, key: "rows"},
		{op: "schema", body: `{"connection_url":"sqlite:///shop.db"}`, key: "tables"},
		{op: "diagram", body: `{"connection_url":"sqlite:///shop.db"}`, key: "dot"},
		{op: "preview", body: `{"connection_url":"sqlite:///shop.db","table":"customers","rows":3}`, key: "rows"},
		{op: "profile", body: `{"connection_url":"sqlite:///shop.db","table":"customers"}`, key: "columns"},
		{op: "explain", body: `{"connection_url":"sqlite:///shop.db","sql":"SELECT 1","analyze":false}`, key: "rows"},
		{op: "databases", body: `{"connection_url":"sqlite:///shop.db"}`, key: "rows"},
		{op: "collections", body: `{"connection_url":"mongodb://localhost/inventory"}`, key: "rows"},
	}
	for _, tc := range tests {
		rr := postJSON(h, "/v1/explore/"+tc.op, tc.body)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d, body=%s", tc.op, rr.Code, rr.Body.String())
		}
		body := decodeBody(t, rr)
		if _, ok := body[tc.key]; !ok {
			t.Fatalf("%s response missing %q: %#v", tc.op, tc.key, body)
		}
	}

	rr := postJSON(h, "/v1/explore/diagram", `{"connection_url":"sqlite:///shop.db"}`)
	if dot := decodeBody(t, rr)["dot"].(string); !strings.HasPrefix(dot, "digraph ER {") {
		t.Fatalf("dot = %q", dot)
	}
}

func TestExploreErrors(t *testing.T) {
	svc, _ := newTestRelay(nil)
	h := NewHandler(testConfig(nil), Dependencies{Relay: svc})

	if rr := postJSON(h, "/v1/explore/vacuum", `{"connection_url":"sqlite://"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown op status = %d", rr.Code)
	}
	if rr := postJSON(h, "/v1/explore/collections", `{"connection_url":"sqlite://"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("collections on sqlite status = %d", rr.Code)
	}
	if rr := postJSON(h, "/v1/explore/tables", `{"connection_url":"sqlite://","bogus":true}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rr.Code)
	}
	if rr := postJSON(h, "/v1/explore/profile", `{"connection_url":"mongodb://localhost/inventory","table":"products"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("profile on mongo status = %d", rr.Code)
	}
}

func TestBuildConnection(t *testing.T) {
	h := NewHandler(testConfig(nil), Dependencies{})

	rr := postJSON(h, "/v1/connections/build", `{"dialect":"postgres","host":"db","user":"u","password":"secret","database":"app"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["connection_url"] != "postgresql://u:secret@db:5432/app" {
		t.Fatalf("connection_url = %v", body["connection_url"])
	}
	if strings.Contains(body["redacted"].(string), "secret") {
		t.Fatalf("redacted url leaks password: %v", body["redacted"])
	}

	if rr := postJSON(h, "/v1/connections/build", `{"dialect":"sqlite"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing path status = %d", rr.Code)
	}
}

func TestPresets(t *testing.T) {
	h := NewHandler(testConfig(nil), Dependencies{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/presets", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	presets, ok := decodeBody(t, rr)["presets"].([]any)
	if !ok || len(presets) != 6 {
		t.Fatalf("presets = %#v", presets)
	}

	rr = postJSON(h, "/v1/presets/render", `{"preset":"Count rows","table":"orders","column":""}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("render status = %d", rr.Code)
	}
	if q := decodeBody(t, rr)["question"]; q != "Count the number of rows in the orders table." {
		t.Fatalf("question = %v", q)
	}

	rr = postJSON(h, "/v1/presets/render", `{"preset":"Count rows","table":"","column":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing table status = %d", rr.Code)
	}
}
