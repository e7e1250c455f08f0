package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type DBConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func driverName(driver string) (string, error) {
	switch driver {
	case "sqlite":
		return "sqlite3", nil
	case "postgres":
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported history driver %q", driver)
	}
}

func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history dsn is required")
	}
	name, err := driverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}

	return db, nil
}
