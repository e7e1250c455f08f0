package seed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tigel-agm/NL-SQL/internal/target"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	TargetURL string
	Customers int
	Products  int
	Orders    int
	Seed      int64
	// Reset drops the demo tables before loading.
	Reset bool
}

func DefaultConfig() Config {
	return Config{
		TargetURL: "sqlite:///example.db",
		Customers: 50,
		Products:  20,
		Orders:    500,
		Seed:      42,
		Reset:     true,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "NLSQL_DEMO_URL", &cfg.TargetURL); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "NLSQL_DEMO_CUSTOMERS", &cfg.Customers); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "NLSQL_DEMO_PRODUCTS", &cfg.Products); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "NLSQL_DEMO_ORDERS", &cfg.Orders); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "NLSQL_DEMO_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "NLSQL_DEMO_RESET", &cfg.Reset); err != nil {
		return Config{}, err
	}

	if cfg.TargetURL == "" {
		return Config{}, fmt.Errorf("NLSQL_DEMO_URL is required")
	}
	t, err := target.Parse(cfg.TargetURL)
	if err != nil {
		return Config{}, fmt.Errorf("invalid NLSQL_DEMO_URL: %w", err)
	}
	if t.Dialect != target.DialectSQLite && t.Dialect != target.DialectDuckDB {
		return Config{}, fmt.Errorf("NLSQL_DEMO_URL must be a sqlite or duckdb url, got %s", t.Dialect)
	}
	if cfg.Customers <= 0 {
		return Config{}, fmt.Errorf("NLSQL_DEMO_CUSTOMERS must be > 0")
	}
	if cfg.Products <= 0 {
		return Config{}, fmt.Errorf("NLSQL_DEMO_PRODUCTS must be > 0")
	}
	if cfg.Orders < 0 {
		return Config{}, fmt.Errorf("NLSQL_DEMO_ORDERS must be >= 0")
	}
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
