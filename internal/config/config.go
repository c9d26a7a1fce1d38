// Package config builds the FraudGuard configuration from tier defaults and
// environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// Load reads an optional .env file, picks the tier defaults and applies
// environment overrides. Malformed values are errors, not silently ignored.
func Load() (*domain.Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	if strings.EqualFold(os.Getenv("FRAUDGUARD_TIER"), string(domain.TierPro)) {
		cfg = domain.ProConfig()
	}

	e := &envReader{}

	// Server
	cfg.Server.Host = e.str("FRAUDGUARD_HOST", cfg.Server.Host)
	cfg.Server.Port = e.int("FRAUDGUARD_PORT", cfg.Server.Port)

	// Scoring
	cfg.Scoring.Threshold = e.float("FRAUDGUARD_THRESHOLD", cfg.Scoring.Threshold)
	cfg.Scoring.MaxMonetaryValue = e.float("FRAUDGUARD_MAX_MONETARY_VALUE", cfg.Scoring.MaxMonetaryValue)
	if raw := os.Getenv("FRAUDGUARD_TYPE_ENCODING"); raw != "" {
		table, err := ParseTypeEncoding(raw)
		if err != nil {
			e.fail("FRAUDGUARD_TYPE_ENCODING", err)
		} else {
			cfg.Scoring.TypeEncoding = table
		}
	}

	// Model
	cfg.Model.HFRepo = e.strAllowEmpty("HF_MODEL_REPO", cfg.Model.HFRepo)
	cfg.Model.HFBaseURL = e.str("HF_ENDPOINT", cfg.Model.HFBaseURL)
	cfg.Model.Filename = e.str("FRAUDGUARD_MODEL_FILE", cfg.Model.Filename)
	cfg.Model.LocalPath = e.str("FRAUDGUARD_MODEL_PATH", cfg.Model.LocalPath)
	cfg.Model.RemoteAttempts = e.int("FRAUDGUARD_MODEL_ATTEMPTS", cfg.Model.RemoteAttempts)
	cfg.Model.FetchTimeout = e.duration("FRAUDGUARD_MODEL_TIMEOUT", cfg.Model.FetchTimeout)

	// Repository
	cfg.Repository.Driver = e.str("FRAUDGUARD_DB_DRIVER", cfg.Repository.Driver)
	cfg.Repository.SQLitePath = e.str("FRAUDGUARD_SQLITE_PATH", cfg.Repository.SQLitePath)
	cfg.Repository.PostgresHost = e.str("FRAUDGUARD_POSTGRES_HOST", cfg.Repository.PostgresHost)
	cfg.Repository.PostgresPort = e.int("FRAUDGUARD_POSTGRES_PORT", cfg.Repository.PostgresPort)
	cfg.Repository.PostgresUser = e.str("FRAUDGUARD_POSTGRES_USER", cfg.Repository.PostgresUser)
	cfg.Repository.PostgresPassword = e.str("FRAUDGUARD_POSTGRES_PASSWORD", cfg.Repository.PostgresPassword)
	cfg.Repository.PostgresDB = e.str("FRAUDGUARD_POSTGRES_DB", cfg.Repository.PostgresDB)
	cfg.Repository.PostgresSSLMode = e.str("FRAUDGUARD_POSTGRES_SSLMODE", cfg.Repository.PostgresSSLMode)

	// Cache
	cfg.Cache.Type = e.str("FRAUDGUARD_CACHE", cfg.Cache.Type)
	cfg.Cache.RedisAddr = e.str("FRAUDGUARD_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = e.str("FRAUDGUARD_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.AssessmentTTL = e.duration("FRAUDGUARD_ASSESSMENT_TTL", cfg.Cache.AssessmentTTL)

	// Event bus
	cfg.EventBus.Type = e.str("FRAUDGUARD_EVENTBUS", cfg.EventBus.Type)
	cfg.EventBus.NATSUrl = e.str("FRAUDGUARD_NATS_URL", cfg.EventBus.NATSUrl)
	cfg.EventBus.NATSToken = e.str("FRAUDGUARD_NATS_TOKEN", cfg.EventBus.NATSToken)

	// Observability
	cfg.Logging.Level = e.str("FRAUDGUARD_LOG_LEVEL", cfg.Logging.Level)
	if e.bool("FRAUDGUARD_DEBUG", false) {
		cfg.Logging.Level = "debug"
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = endpoint
	}
	cfg.Tracing.Enabled = e.bool("FRAUDGUARD_TRACING", cfg.Tracing.Enabled)

	if len(e.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(e.errs, "; "))
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func Validate(cfg *domain.Config) error {
	th := cfg.Scoring.Threshold
	if math.IsNaN(th) || th < 0 || th > 1 {
		return fmt.Errorf("threshold must be within [0,1], got %v", th)
	}
	if cfg.Scoring.MaxMonetaryValue <= 0 {
		return fmt.Errorf("max monetary value must be positive, got %v", cfg.Scoring.MaxMonetaryValue)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Server.Port)
	}
	if cfg.Model.HFRepo == "" && cfg.Model.LocalPath == "" {
		return fmt.Errorf("no model source: set HF_MODEL_REPO or FRAUDGUARD_MODEL_PATH")
	}
	return nil
}

// ParseTypeEncoding parses "CASH_IN=0,CASH_OUT=1,..." into a type table.
// Bijectivity is checked when the encoder is built.
func ParseTypeEncoding(raw string) (domain.TypeEncoding, error) {
	table := make(domain.TypeEncoding)
	for _, pair := range strings.Split(raw, ",") {
		name, code, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("malformed entry %q", pair)
		}
		t := domain.TxType(strings.TrimSpace(name))
		if !t.Valid() {
			return nil, fmt.Errorf("unknown transaction type %q", name)
		}
		n, err := strconv.Atoi(strings.TrimSpace(code))
		if err != nil {
			return nil, fmt.Errorf("code for %s: %w", t, err)
		}
		table[t] = n
	}
	return table, nil
}

// envReader collects parse errors so every bad variable is reported at once.
type envReader struct {
	errs []string
}

func (e *envReader) fail(key string, err error) {
	e.errs = append(e.errs, fmt.Sprintf("%s: %v", key, err))
}

func (e *envReader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// strAllowEmpty lets an explicitly empty variable clear the default.
func (e *envReader) strAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e *envReader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return f
}

func (e *envReader) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}
