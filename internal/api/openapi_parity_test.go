package api

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestOpenAPIContainsImplementedPaths(t *testing.T) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	openAPIPath := filepath.Join(repoRoot, "api", "openapi.yaml")

	content, err := os.ReadFile(openAPIPath)
	if err != nil {
		t.Fatalf("read openapi file error = %v", err)
	}
	text := string(content)

	requiredPaths := []string{
		"/v1/health:",
		"/v1/ready:",
		"/v1/metrics:",
		"/v1/query:",
		"/v1/history:",
		"/v1/history/export:",
		"/v1/history/{id}:",
		"/v1/history/{id}/export:",
		"/v1/history/{id}/query:",
		"/v1/explore/{op}:",
		"/v1/connections/build:",
		"/v1/presets:",
		"/v1/presets/render:",
	}
	for _, path := range requiredPaths {
		if !strings.Contains(text, path) {
			t.Fatalf("openapi missing path %s", path)
		}
	}

	for _, op := range []string{"tables", "schema", "diagram", "preview", "profile", "explain", "databases", "collections"} {
		if !strings.Contains(text, " "+op+",") && !strings.Contains(text, " "+op+"]") {
			t.Fatalf("openapi explore enum missing %q", op)
		}
	}
}
