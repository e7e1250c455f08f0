package api

import (
	"net/http"

	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/relay"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

type exploreRequest struct {
	ConnectionURL string `json:"connection_url"`
	Table         string `json:"table,omitempty"`
	Rows          int    `json:"rows,omitempty"`
	SQL           string `json:"sql,omitempty"`
	Analyze       bool   `json:"analyze,omitempty"`
	Database      string `json:"database,omitempty"`
}

type presetRenderRequest struct {
	Preset string `json:"preset"`
	Table  string `json:"table"`
	Column string `json:"column"`
}

func handleExplore(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Relay == nil {
		relayNotConfigured(r.Context(), w)
		return
	}
	op := r.PathValue("op")

	var request exploreRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid explore request body", false, map[string]any{"details": err.Error()})
		return
	}

	ctx := r.Context()
	svc := deps.Relay
	var (
		payload any
		result  query.Result
		err     error
	)
	switch op {
	case "tables":
		result, err = svc.Tables(ctx, request.ConnectionURL)
		payload = newResultResponse(result)
	case "schema":
		var tables []query.Table
		tables, err = svc.Schema(ctx, request.ConnectionURL)
		payload = map[string]any{"tables": tables}
	case "diagram":
		var dot string
		dot, err = svc.Diagram(ctx, request.ConnectionURL)
		payload = map[string]any{"dot": dot}
	case "preview":
		result, err = svc.Preview(ctx, request.ConnectionURL, request.Table, request.Rows)
		payload = newResultResponse(result)
	case "profile":
		profiles, profileErr := svc.Profile(ctx, request.ConnectionURL, request.Table)
		err = profileErr
		payload = map[string]any{"table": request.Table, "columns": profiles}
	case "explain":
		result, err = svc.Explain(ctx, request.ConnectionURL, request.SQL, request.Analyze)
		payload = newResultResponse(result)
	case "databases":
		result, err = svc.Databases(ctx, request.ConnectionURL)
		payload = newResultResponse(result)
	case "collections":
		result, err = svc.Collections(ctx, request.ConnectionURL, request.Database)
		payload = newResultResponse(result)
	default:
		writeError(ctx, w, http.StatusNotFound, "UNKNOWN_OPERATION", "unknown explore operation", false, map[string]any{"operation": op})
		return
	}
	if err != nil {
		writeRelayError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func handleBuildConnection(w http.ResponseWriter, r *http.Request) {
	var params target.ConnectionParams
	if err := decodeJSON(w, r, &params); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid connection request body", false, map[string]any{"details": err.Error()})
		return
	}
	connectionURL, err := target.Build(params)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connection_url": connectionURL,
		"redacted":       target.Redact(connectionURL),
	})
}

func handleRenderPreset(w http.ResponseWriter, r *http.Request) {
	var request presetRenderRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid preset request body", false, map[string]any{"details": err.Error()})
		return
	}
	question, err := relay.RenderPreset(request.Preset, request.Table, request.Column)
	if err != nil {
		writeRelayError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"question": question})
}
