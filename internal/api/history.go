package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tigel-agm/NL-SQL/internal/history"
)

type historyResponse struct {
	ID         int64            `json:"id"`
	Question   string           `json:"question"`
	SQL        string           `json:"sql"`
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	CreatedAt  time.Time        `json:"created_at"`
	Status     string           `json:"status"`
	RowCount   int              `json:"row_count"`
	Dialect    string           `json:"dialect"`
	Error      string           `json:"error,omitempty"`
	ArchiveKey string           `json:"archive_key,omitempty"`
}

type replayRequest struct {
	SQL string `json:"sql"`
}

func newHistoryResponse(entry history.Entry) historyResponse {
	rows := entry.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	return historyResponse{
		ID:         entry.ID,
		Question:   entry.Question,
		SQL:        entry.Query,
		Columns:    entry.OrderedColumns(),
		Rows:       rows,
		CreatedAt:  entry.CreatedAt,
		Status:     entry.Status,
		RowCount:   entry.RowCount,
		Dialect:    entry.Dialect,
		Error:      entry.Error,
		ArchiveKey: entry.ArchiveKey,
	}
}

func handleListHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Relay == nil {
		relayNotConfigured(r.Context(), w)
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := deps.Relay.ListHistory(r.Context(), limit)
	if err != nil {
		writeRelayError(r.Context(), w, err)
		return
	}
	response := make([]historyResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, newHistoryResponse(entry))
	}
	writeJSON(w, http.StatusOK, response)
}

func handleGetHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Relay == nil {
		relayNotConfigured(r.Context(), w)
		return
	}
	id, ok := parseHistoryID(w, r)
	if !ok {
		return
	}
	entry, err := deps.Relay.GetHistory(r.Context(), id)
	if err != nil {
		writeRelayError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newHistoryResponse(entry))
}

func handleReplay(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Relay == nil {
		relayNotConfigured(r.Context(), w)
		return
	}
	id, ok := parseHistoryID(w, r)
	if !ok {
		return
	}
	var request replayRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid replay request body", false, map[string]any{"details": err.Error()})
		return
	}
	result, err := deps.Relay.ReplayArchived(r.Context(), id, request.SQL)
	if err != nil {
		writeRelayError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultResponse(result))
}

func parseHistoryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_HISTORY_ID", "history id must be a positive integer", false, map[string]any{"id": r.PathValue("id")})
		return 0, false
	}
	return id, true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return history.DefaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer", false, map[string]any{"limit": raw})
		return 0, false
	}
	return limit, true
}
