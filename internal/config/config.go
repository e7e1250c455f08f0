package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	ProviderAuto   = "auto"
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderGemini = "gemini"
	ProviderNone   = ""
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	History       HistoryConfig
	ObjectStore   ObjectStoreConfig
	Archive       ArchiveConfig
	LLM           LLMConfig
	Query         QueryConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// writeTimeoutMargin covers schema inspection, history writes and encoding on top
// of the translate and execute budgets.
const writeTimeoutMargin = 10 * time.Second

// EffectiveWriteTimeout is the configured HTTP write timeout, raised when needed so
// that an ask request can use its whole LLM and query budgets before the server
// gives up on the response.
func (c Config) EffectiveWriteTimeout() time.Duration {
	needed := c.LLM.Timeout + c.Query.Timeout + writeTimeoutMargin
	if c.HTTP.WriteTimeout > needed {
		return c.HTTP.WriteTimeout
	}
	return needed
}

type HistoryConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ArchiveConfig struct {
	Enabled bool
}

type LLMConfig struct {
	Provider        string
	BaseURL         string
	APIKey          string
	APIKeyParam     string
	Model           string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureDeployment string
	AzureAPIVersion string
	GeminiAPIKey    string
	Temperature     float64
	MaxTokens       int
	Timeout         time.Duration
}

type QueryConfig struct {
	MaxRows            int
	Timeout            time.Duration
	PreviewRows        int
	ProfileParallelism int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("NLSQL_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid NLSQL_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "NLSQL_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLSQL_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "NLSQL_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "NLSQL_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "NLSQL_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLSQL_HISTORY_DRIVER", &cfg.History.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLSQL_HISTORY_DSN", &cfg.History.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "NLSQL_HISTORY_MAX_OPEN_CONNS", &cfg.History.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "NLSQL_HISTORY_MAX_IDLE_CONNS", &cfg.History.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "NLSQL_HISTORY_CONN_MAX_IDLE_TIME", &cfg.History.ConnMaxIdleTime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "NLSQL_HISTORY_CONN_MAX_LIFETIME", &cfg.History.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "NLSQL_HISTORY_AUTO_MIGRATE", &cfg.History.AutoMigrate); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLSQL_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLSQL_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLSQL_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLSQL_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLSQL_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "NLSQL_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLSQL_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "NLSQL_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "NLSQL_ARCHIVE_ENABLED", &cfg.Archive.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyLLM(lookup, &cfg.LLM); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "NLSQL_QUERY_MAX_ROWS", &cfg.Query.MaxRows); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "NLSQL_QUERY_TIMEOUT", &cfg.Query.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "NLSQL_QUERY_PREVIEW_ROWS", &cfg.Query.PreviewRows); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "NLSQL_QUERY_PROFILE_PARALLELISM", &cfg.Query.ProfileParallelism); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "NLSQL_RATE_LIMIT_RPS", &cfg.RateLimit.RequestsPerSecond); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "NLSQL_RATE_LIMIT_BURST", &cfg.RateLimit.Burst); err != nil {
		return Config{}, err
	}
	if err := applyList(lookup, "NLSQL_CORS_ALLOWED_ORIGINS", &cfg.CORS.AllowedOrigins); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "NLSQL_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "NLSQL_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	switch cfg.History.Driver {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("invalid NLSQL_HISTORY_DRIVER: %q", cfg.History.Driver)
	}
	if cfg.LLM.MaxTokens <= 0 {
		return Config{}, fmt.Errorf("invalid NLSQL_LLM_MAX_TOKENS: must be > 0")
	}
	return cfg, nil
}

// applyLLM reads the prefixed LLM keys and falls back to the OPENAI_*, AZURE_OPENAI_*
// and GEMINI_API_KEY variables that existing .env files already carry.
func applyLLM(lookup LookupFunc, dst *LLMConfig) error {
	if err := applyString(lookup, "NLSQL_LLM_PROVIDER", &dst.Provider); err != nil {
		return err
	}
	dst.Provider = strings.ToLower(dst.Provider)
	switch dst.Provider {
	case ProviderAuto, ProviderOpenAI, ProviderAzure, ProviderGemini:
	default:
		return fmt.Errorf("invalid NLSQL_LLM_PROVIDER: %q", dst.Provider)
	}

	applyWithFallback(lookup, "NLSQL_LLM_BASE_URL", "OPENAI_BASE_URL", &dst.BaseURL)
	applyWithFallback(lookup, "NLSQL_LLM_API_KEY", "OPENAI_API_KEY", &dst.APIKey)
	applyWithFallback(lookup, "NLSQL_LLM_API_KEY_PARAM", "", &dst.APIKeyParam)
	applyWithFallback(lookup, "NLSQL_LLM_MODEL", "OPENAI_MODEL", &dst.Model)
	applyWithFallback(lookup, "NLSQL_LLM_AZURE_ENDPOINT", "AZURE_OPENAI_API_BASE", &dst.AzureEndpoint)
	applyWithFallback(lookup, "NLSQL_LLM_AZURE_API_KEY", "AZURE_OPENAI_API_KEY", &dst.AzureAPIKey)
	applyWithFallback(lookup, "NLSQL_LLM_AZURE_DEPLOYMENT", "AZURE_OPENAI_DEPLOYMENT_NAME", &dst.AzureDeployment)
	applyWithFallback(lookup, "NLSQL_LLM_AZURE_API_VERSION", "AZURE_OPENAI_API_VERSION", &dst.AzureAPIVersion)
	applyWithFallback(lookup, "NLSQL_LLM_GEMINI_API_KEY", "GEMINI_API_KEY", &dst.GeminiAPIKey)

	if err := applyFloat(lookup, "NLSQL_LLM_TEMPERATURE", &dst.Temperature); err != nil {
		return err
	}
	if err := applyInt(lookup, "NLSQL_LLM_MAX_TOKENS", &dst.MaxTokens); err != nil {
		return err
	}
	if err := applyDuration(lookup, "NLSQL_LLM_TIMEOUT", &dst.Timeout); err != nil {
		return err
	}
	return nil
}

// ResolveProvider picks the provider in auto mode: an OpenAI key wins, then an Azure
// endpoint plus key, then a Gemini key. ProviderNone means nothing is configured.
func (c LLMConfig) ResolveProvider() string {
	if c.Provider != ProviderAuto && c.Provider != "" {
		return c.Provider
	}
	switch {
	case c.APIKey != "" || c.APIKeyParam != "":
		return ProviderOpenAI
	case c.AzureEndpoint != "" && c.AzureAPIKey != "":
		return ProviderAzure
	case c.GeminiAPIKey != "":
		return ProviderGemini
	default:
		return ProviderNone
	}
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "nlsql-api"},
		HTTP: HTTPConfig{
			Address:      ":8001",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		History: HistoryConfig{
			Driver:          "sqlite",
			DSN:             "file:history.db?_foreign_keys=on",
			MaxOpenConns:    4,
			MaxIdleConns:    4,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "nlsql",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Archive: ArchiveConfig{Enabled: false},
		LLM: LLMConfig{
			Provider:    ProviderAuto,
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-4o",
			Temperature: 0,
			MaxTokens:   512,
			Timeout:     30 * time.Second,
		},
		Query: QueryConfig{
			MaxRows:            10000,
			Timeout:            30 * time.Second,
			PreviewRows:        5,
			ProfileParallelism: 4,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18001"
		cfg.History.DSN = "file::memory:?cache=shared"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.RateLimit.RequestsPerSecond = 0
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
		cfg.History.AutoMigrate = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyWithFallback(lookup LookupFunc, key, fallback string, dst *string) {
	if raw, ok := lookup(key); ok {
		*dst = strings.TrimSpace(raw)
		return
	}
	if fallback == "" {
		return
	}
	if raw, ok := lookup(fallback); ok {
		*dst = strings.TrimSpace(raw)
	}
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	values := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	*dst = values
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
