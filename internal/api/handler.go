package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tigel-agm/NL-SQL/internal/config"
	"github.com/tigel-agm/NL-SQL/internal/observability"
	"github.com/tigel-agm/NL-SQL/internal/relay"
)

const maxRequestBodyBytes = 1 << 20

var errTranslatorNotConfigured = errors.New("no LLM provider is configured")

type ReadinessCheck func(ctx context.Context) error

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Relay             *relay.Service
	// UI serves the dashboard routes; nil leaves them unregistered.
	UI http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	limit := rateLimit(cfg.RateLimit)

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			code := "NOT_READY"
			if errors.Is(err, errTranslatorNotConfigured) {
				code = "TRANSLATOR_NOT_CONFIGURED"
			}
			writeError(r.Context(), w, http.StatusServiceUnavailable, code, err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	queryHandler := limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleQuery(deps, w, r)
	}))
	mux.Handle("POST /v1/query", queryHandler)
	mux.Handle("POST /query", queryHandler)

	historyHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleListHistory(deps, w, r)
	})
	mux.Handle("GET /v1/history", historyHandler)
	mux.Handle("GET /history", historyHandler)
	mux.HandleFunc("GET /v1/history/export", func(w http.ResponseWriter, r *http.Request) {
		handleExportHistory(deps, w, r)
	})
	mux.HandleFunc("GET /v1/history/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleGetHistory(deps, w, r)
	})
	mux.HandleFunc("GET /v1/history/{id}/export", func(w http.ResponseWriter, r *http.Request) {
		handleExportEntry(deps, w, r)
	})
	mux.HandleFunc("POST /v1/history/{id}/query", func(w http.ResponseWriter, r *http.Request) {
		handleReplay(deps, w, r)
	})

	mux.HandleFunc("POST /v1/explore/{op}", func(w http.ResponseWriter, r *http.Request) {
		handleExplore(deps, w, r)
	})
	mux.HandleFunc("POST /v1/connections/build", func(w http.ResponseWriter, r *http.Request) {
		handleBuildConnection(w, r)
	})
	mux.HandleFunc("GET /v1/presets", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"presets": relay.Presets()})
	})
	mux.HandleFunc("POST /v1/presets/render", func(w http.ResponseWriter, r *http.Request) {
		handleRenderPreset(w, r)
	})

	if deps.UI != nil {
		mux.Handle("GET /{$}", deps.UI)
		mux.Handle("GET /ui", deps.UI)
		mux.Handle("POST /ui/ask", limit(deps.UI))
		mux.Handle("GET /ui/history", deps.UI)
		mux.Handle("GET /ui/explore", deps.UI)
		mux.Handle("POST /ui/explore", deps.UI)
		mux.Handle("GET /ui/static/{file}", deps.UI)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	middlewares = append(middlewares, cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Trace-ID"},
		ExposedHeaders: []string{"X-Trace-ID", "Retry-After"},
		MaxAge:         300,
	}))
	return chain(mux, middlewares...)
}

// CheckHistory reports whether the history store answers.
func CheckHistory(svc *relay.Service) ReadinessCheck {
	return func(ctx context.Context) error {
		if svc == nil {
			return errors.New("relay is not configured")
		}
		return svc.HealthCheck(ctx)
	}
}

func CheckTranslator(svc *relay.Service) ReadinessCheck {
	return func(_ context.Context) error {
		if svc == nil || !svc.TranslatorConfigured() {
			return errTranslatorNotConfigured
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError emits the error envelope. detail repeats message for clients that read
// the FastAPI-style field.
func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"detail":     message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
