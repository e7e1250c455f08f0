package api

import (
	"log/slog"
	"net/http"

	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/relay"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

type queryRequest struct {
	Question      string `json:"question"`
	ConnectionURL string `json:"connection_url"`
}

type queryResponse struct {
	SQL        string           `json:"sql"`
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	Dialect    string           `json:"dialect"`
	RowCount   int              `json:"row_count"`
	Truncated  bool             `json:"truncated"`
	HistoryID  int64            `json:"history_id,omitempty"`
	ArchiveKey string           `json:"archive_key,omitempty"`
	DurationMs int64            `json:"duration_ms"`
	Provider   string           `json:"provider,omitempty"`
	Model      string           `json:"model,omitempty"`
}

type resultResponse struct {
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	RowCount   int              `json:"row_count"`
	Truncated  bool             `json:"truncated"`
	DurationMs int64            `json:"duration_ms"`
}

func newResultResponse(result query.Result) resultResponse {
	columns := result.Columns
	if columns == nil {
		columns = []string{}
	}
	return resultResponse{
		Columns:    columns,
		Rows:       result.Records(),
		RowCount:   len(result.Rows),
		Truncated:  result.Truncated,
		DurationMs: result.Duration.Milliseconds(),
	}
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Relay == nil {
		relayNotConfigured(r.Context(), w)
		return
	}

	var request queryRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}

	answer, err := deps.Relay.Ask(r.Context(), relay.AskRequest{
		Question:      request.Question,
		ConnectionURL: request.ConnectionURL,
	})
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.WarnContext(r.Context(), "query failed",
				slog.String("target", target.Redact(request.ConnectionURL)),
				slog.String("kind", relay.KindOf(err).String()),
				slog.Any("error", err),
			)
		}
		writeRelayError(r.Context(), w, err)
		return
	}

	columns := answer.Columns
	if columns == nil {
		columns = []string{}
	}
	writeJSON(w, http.StatusOK, queryResponse{
		SQL:        answer.Query,
		Columns:    columns,
		Rows:       answer.Records(),
		Dialect:    string(answer.Dialect),
		RowCount:   len(answer.Rows),
		Truncated:  answer.Truncated,
		HistoryID:  answer.HistoryID,
		ArchiveKey: answer.ArchiveKey,
		DurationMs: answer.Duration.Milliseconds(),
		Provider:   answer.Provider,
		Model:      answer.Model,
	})
}
