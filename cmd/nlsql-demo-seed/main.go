package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tigel-agm/NL-SQL/internal/demo/seed"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("failed to load demo seed config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, t, err := seed.Open(ctx, cfg.TargetURL)
	if err != nil {
		logger.Error("failed to open demo database", slog.String("target", target.Redact(cfg.TargetURL)), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	seeder, err := seed.NewSeeder(db, t.Dialect, logger)
	if err != nil {
		logger.Error("failed to initialize demo seeder", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("seeding demo database",
		slog.String("target", t.String()),
		slog.Int64("seed", cfg.Seed),
		slog.Bool("reset", cfg.Reset),
	)
	data := seed.NewGenerator(cfg.Seed).Generate(cfg.Customers, cfg.Products, cfg.Orders)
	if _, err := seeder.Load(ctx, data, cfg.Reset); err != nil {
		logger.Error("demo seed failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("demo seed complete")
}
