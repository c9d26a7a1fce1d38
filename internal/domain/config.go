package domain

import "time"

// Config holds the complete FraudGuard configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Scoring core settings
	Scoring ScoringConfig `json:"scoring"`

	// Model repository settings
	Model ModelConfig `json:"model"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ScoringConfig holds the options recognized by the scoring core.
type ScoringConfig struct {
	// Threshold is the probability at or above which a transaction is FRAUD.
	// Kept low to favour recall over precision.
	Threshold float64 `json:"threshold"`

	// TypeEncoding overrides the type table. Only change it to match a
	// classifier trained with a different encoding.
	TypeEncoding TypeEncoding `json:"typeEncoding,omitempty"`

	// MaxMonetaryValue is the upper bound the API accepts for amounts and
	// balances.
	MaxMonetaryValue float64 `json:"maxMonetaryValue"`
}

// ModelConfig describes where the classifier artifact comes from.
type ModelConfig struct {
	// HFRepo is the Hugging Face model repository ("user/repo").
	// Empty disables the remote source.
	HFRepo string `json:"hfRepo"`

	// HFBaseURL is the hub endpoint; overridable for mirrors and tests.
	HFBaseURL string `json:"hfBaseUrl"`

	// Filename is the artifact name inside the remote repository.
	Filename string `json:"filename"`

	// LocalPath is the fallback artifact on disk.
	LocalPath string `json:"localPath"`

	// Remote retry policy
	RemoteAttempts int           `json:"remoteAttempts"`
	RetryDelay     time.Duration `json:"retryDelay"`
	FetchTimeout   time.Duration `json:"fetchTimeout"`

	// CacheTTL controls how long a downloaded artifact stays in the cache.
	CacheTTL time.Duration `json:"cacheTtl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"` // OTLP gRPC endpoint
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs with SQLite + channels + in-process cache
	TierCommunity Tier = "community"

	// TierPro runs with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultThreshold biases the policy toward recall.
const DefaultThreshold = 0.3

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Scoring: ScoringConfig{
			Threshold:        DefaultThreshold,
			TypeEncoding:     DefaultTypeEncoding(),
			MaxMonetaryValue: 10_000_000,
		},
		Model: ModelConfig{
			HFRepo:         "rahulmauryaa/Fraud-detection-model",
			HFBaseURL:      "https://huggingface.co",
			Filename:       "fraud_model.json",
			LocalPath:      "model/fraud_model.json",
			RemoteAttempts: 3,
			RetryDelay:     500 * time.Millisecond,
			FetchTimeout:   20 * time.Second,
			CacheTTL:       24 * time.Hour,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./fraudguard.db",
		},
		Cache: CacheConfig{
			Type:          "memory",
			LocalMaxSize:  10000,
			LocalTTL:      5 * time.Minute,
			AssessmentTTL: 10 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "fraudguard",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "fraudguard",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
		AssessmentTTL:  10 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "fraudguard-workers",
	}
	cfg.Tracing.Enabled = true
	cfg.Tracing.Endpoint = "localhost:4317"
	return cfg
}
