package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tigel-agm/NL-SQL/internal/history"
	"github.com/tigel-agm/NL-SQL/internal/relay"
)

func statusForKind(kind relay.Kind) (int, string) {
	switch kind {
	case relay.KindInvalidInput:
		return http.StatusBadRequest, "INVALID_REQUEST"
	case relay.KindUnsupported:
		return http.StatusBadRequest, "UNSUPPORTED_DATABASE"
	case relay.KindGeneration:
		return http.StatusInternalServerError, "GENERATION_FAILED"
	case relay.KindExecution:
		return http.StatusBadRequest, "EXECUTION_FAILED"
	case relay.KindNotConfigured:
		return http.StatusNotImplemented, "TRANSLATOR_NOT_CONFIGURED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func writeRelayError(ctx context.Context, w http.ResponseWriter, err error) {
	var relayErr *relay.Error
	switch {
	case errors.As(err, &relayErr):
		status, code := statusForKind(relayErr.Kind)
		writeError(ctx, w, status, code, relayErr.Message, relayErr.Kind == relay.KindGeneration, nil)
	case errors.Is(err, history.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "HISTORY_NOT_FOUND", "history entry was not found", false, nil)
	case errors.Is(err, relay.ErrHistoryDisabled):
		writeError(ctx, w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", err.Error(), false, nil)
	case errors.Is(err, relay.ErrArchiveDisabled):
		writeError(ctx, w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", err.Error(), false, nil)
	case errors.Is(err, relay.ErrNoArchive):
		writeError(ctx, w, http.StatusNotFound, "ARCHIVE_NOT_FOUND", err.Error(), false, nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(ctx, w, http.StatusGatewayTimeout, "TIMEOUT", err.Error(), true, nil)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), true, nil)
	}
}

func relayNotConfigured(ctx context.Context, w http.ResponseWriter) {
	writeError(ctx, w, http.StatusNotImplemented, "RELAY_NOT_CONFIGURED", "query relay is not configured", false, nil)
}
