package observability

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/tigel-agm/NL-SQL/internal/config"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

const redactedValue = "[REDACTED]"

// NewLogger builds the service logger. Connection URLs logged under "target" or
// "connection_url" lose their password, and secret-looking keys are masked outright.
func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	options := &slog.HandlerOptions{
		Level:       cfg.Observability.LogLevel,
		ReplaceAttr: redactAttr,
	}
	var handler slog.Handler
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, options)
	} else {
		handler = slog.NewTextHandler(writer, options)
	}
	return slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	)
}

func redactAttr(_ []string, attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString {
		return attr
	}
	key := strings.ToLower(attr.Key)
	switch {
	case key == "target" || key == "connection_url":
		return slog.String(attr.Key, target.Redact(attr.Value.String()))
	case strings.Contains(key, "api_key") || strings.Contains(key, "password") || strings.Contains(key, "secret"):
		return slog.String(attr.Key, redactedValue)
	}
	return attr
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(traceIDKey).(string)
	if !ok {
		return ""
	}
	return value
}
