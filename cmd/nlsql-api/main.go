package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tigel-agm/NL-SQL/internal/api"
	"github.com/tigel-agm/NL-SQL/internal/archive"
	"github.com/tigel-agm/NL-SQL/internal/config"
	"github.com/tigel-agm/NL-SQL/internal/history/sqlstore"
	"github.com/tigel-agm/NL-SQL/internal/migrations"
	"github.com/tigel-agm/NL-SQL/internal/nl2sql"
	"github.com/tigel-agm/NL-SQL/internal/observability"
	duckdbengine "github.com/tigel-agm/NL-SQL/internal/query/duckdb"
	"github.com/tigel-agm/NL-SQL/internal/query/mongo"
	"github.com/tigel-agm/NL-SQL/internal/query/sqldb"
	"github.com/tigel-agm/NL-SQL/internal/relay"
	"github.com/tigel-agm/NL-SQL/internal/secrets/paramstore"
	s3store "github.com/tigel-agm/NL-SQL/internal/storage/s3"
	"github.com/tigel-agm/NL-SQL/internal/ui"
)

func main() {
	// A missing .env file is not an error; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("nlsql-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	historyDB, err := sqlstore.Open(ctx, sqlstore.DBConfig{
		Driver:          cfg.History.Driver,
		DSN:             cfg.History.DSN,
		MaxOpenConns:    cfg.History.MaxOpenConns,
		MaxIdleConns:    cfg.History.MaxIdleConns,
		ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.History.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open history db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = historyDB.Close() }()

	if cfg.History.AutoMigrate {
		runner, err := migrations.NewRunner(cfg.History.Driver)
		if err != nil {
			logger.Error("failed to load history migrations", slog.Any("error", err))
			os.Exit(1)
		}
		applied, err := runner.Up(ctx, historyDB, 0)
		if err != nil {
			logger.Error("history migration failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("history schema ready", slog.String("driver", cfg.History.Driver), slog.Int("applied", applied))
	}

	service := &relay.Service{
		SQL: sqldb.New(sqldb.Options{
			MaxRows:            cfg.Query.MaxRows,
			Timeout:            cfg.Query.Timeout,
			ProfileParallelism: cfg.Query.ProfileParallelism,
		}),
		Mongo: mongo.New(mongo.Options{
			MaxRows: cfg.Query.MaxRows,
			Timeout: cfg.Query.Timeout,
		}),
		History: sqlstore.NewRepository(historyDB),
		Config: relay.Config{
			PreviewRows:    cfg.Query.PreviewRows,
			ReplayRowLimit: cfg.Query.MaxRows,
		},
		Logger: logger,
	}

	translator, err := newTranslator(ctx, cfg.LLM)
	switch {
	case errors.Is(err, nl2sql.ErrNotConfigured):
		logger.Warn("no LLM provider configured; questions other than table listings will be rejected")
	case err != nil:
		logger.Error("failed to initialize query translator", slog.Any("error", err))
		os.Exit(1)
	default:
		defer func() { _ = translator.Close() }()
		service.Translator = translator
		logger.Info("query translator ready", slog.String("provider", cfg.LLM.ResolveProvider()))
	}

	if cfg.Archive.Enabled {
		objectStore, err := s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		archiver, err := archive.NewArchiver(objectStore)
		if err != nil {
			logger.Error("failed to initialize result archive", slog.Any("error", err))
			os.Exit(1)
		}
		service.Archiver = archiver
		service.Replay = duckdbengine.NewEngine(objectStore)
		logger.Info("result archive enabled", slog.String("bucket", cfg.ObjectStore.Bucket))
	}

	deps := api.Dependencies{
		Logger: logger,
		Relay:  service,
		UI:     ui.NewHandler(service, logger),
		Readiness: api.CombineReadinessChecks(
			api.CheckHistory(service),
			api.CheckTranslator(service),
		),
		DependencyTimeout: 2 * time.Second,
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.EffectiveWriteTimeout(),
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

// newTranslator resolves the LLM key from SSM Parameter Store only when a parameter
// name is configured and no literal key is set.
func newTranslator(ctx context.Context, cfg config.LLMConfig) (*nl2sql.Service, error) {
	var keys nl2sql.KeyResolver
	if cfg.APIKey == "" && cfg.APIKeyParam != "" {
		client, err := paramstore.NewFromEnvironment(ctx)
		if err != nil {
			return nil, err
		}
		keys = client
	}
	return nl2sql.NewFromConfig(ctx, cfg, keys)
}
