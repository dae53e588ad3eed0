// Package config provides application configuration.
package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Field names map directly to environment variables. Nested structs use
// an underscore delimiter (e.g., EMBEDDING_ENDPOINT_BASE_URL).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.archie
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/archie.db
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// SkipProviderValidation skips provider requirement validation at startup.
	// Env: SKIP_PROVIDER_VALIDATION (default: false)
	// WARNING: For testing only. Archie requires providers for full functionality.
	SkipProviderValidation bool `envconfig:"SKIP_PROVIDER_VALIDATION" default:"false"`

	// APIKeys is a comma-separated list of valid API keys.
	// Env: API_KEYS
	APIKeys string `envconfig:"API_KEYS"`

	// EmbeddingEndpoint configures the embedding AI service.
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// CompletionEndpoint configures the completion AI service.
	CompletionEndpoint EndpointEnv `envconfig:"COMPLETION_ENDPOINT"`

	// GitHost configures access to the hosted git provider.
	GitHost GitHostEnv `envconfig:"GITHOST"`

	// Ingest configures the ingestion pipeline.
	Ingest IngestEnv `envconfig:"INGEST"`

	// PeriodicSync configures periodic repository syncing.
	PeriodicSync PeriodicSyncEnv `envconfig:"PERIODIC_SYNC"`

	// WorkerCount is the number of background workers.
	// Env: WORKER_COUNT (default: 1)
	WorkerCount int `envconfig:"WORKER_COUNT" default:"1"`

	// SearchLimit is the default search result limit.
	// Env: SEARCH_LIMIT (default: 10)
	SearchLimit int `envconfig:"SEARCH_LIMIT" default:"10"`
}

// EndpointEnv holds environment configuration for an AI endpoint.
type EndpointEnv struct {
	// BaseURL is the base URL for the endpoint.
	// Env: *_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the model identifier (e.g., text-embedding-3-small).
	// Env: *_MODEL
	Model string `envconfig:"MODEL"`

	// APIKey is the API key for authentication.
	// Env: *_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// NumParallelTasks is the number of parallel tasks.
	// Env: *_NUM_PARALLEL_TASKS (default: 1)
	NumParallelTasks int `envconfig:"NUM_PARALLEL_TASKS" default:"1"`

	// Timeout is the request timeout in seconds.
	// Env: *_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the maximum number of retries.
	// Env: *_MAX_RETRIES (default: 5)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: *_INITIAL_DELAY (default: 1.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"1.0"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: *_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`

	// MaxTokens is the maximum token limit.
	// Env: *_MAX_TOKENS (default: 4000)
	MaxTokens int `envconfig:"MAX_TOKENS" default:"4000"`
}

// GitHostEnv holds environment configuration for the git provider.
type GitHostEnv struct {
	// Token is the access token for the hosted git API.
	// Env: GITHOST_TOKEN
	Token string `envconfig:"TOKEN"`

	// BaseURL is the API base URL, for enterprise installations.
	// Env: GITHOST_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// RateLimitBuffer is how many permits below the published limit to stay.
	// Env: GITHOST_RATE_LIMIT_BUFFER (default: 100)
	RateLimitBuffer int `envconfig:"RATE_LIMIT_BUFFER" default:"100"`
}

// IngestEnv holds environment configuration for the ingestion pipeline.
type IngestEnv struct {
	// TimeBudgetSeconds is the per-run ingestion time budget in seconds.
	// Env: INGEST_TIME_BUDGET_SECONDS (default: 1800)
	TimeBudgetSeconds float64 `envconfig:"TIME_BUDGET_SECONDS" default:"1800"`

	// FetchConcurrency is the maximum concurrent content fetches.
	// Env: INGEST_FETCH_CONCURRENCY (default: 16)
	FetchConcurrency int `envconfig:"FETCH_CONCURRENCY" default:"16"`

	// EmbedConcurrency is the maximum concurrent embedding batches.
	// Env: INGEST_EMBED_CONCURRENCY (default: 8)
	EmbedConcurrency int `envconfig:"EMBED_CONCURRENCY" default:"8"`

	// MaxFileBytes is the per-file size cap in bytes.
	// Env: INGEST_MAX_FILE_BYTES (default: 1048576)
	MaxFileBytes int64 `envconfig:"MAX_FILE_BYTES" default:"1048576"`

	// ChunkTokens is the chunk window target in tokens.
	// Env: INGEST_CHUNK_TOKENS (default: 800)
	ChunkTokens int `envconfig:"CHUNK_TOKENS" default:"800"`

	// ChunkOverlap is the chunk overlap in tokens.
	// Env: INGEST_CHUNK_OVERLAP (default: 100)
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"100"`

	// UpsertBatchSize is the document upsert batch size.
	// Env: INGEST_UPSERT_BATCH_SIZE (default: 50)
	UpsertBatchSize int `envconfig:"UPSERT_BATCH_SIZE" default:"50"`

	// FilterFile is the path of an optional YAML filter override file.
	// Env: INGEST_FILTER_FILE
	FilterFile string `envconfig:"FILTER_FILE"`
}

// PeriodicSyncEnv holds environment configuration for periodic sync.
type PeriodicSyncEnv struct {
	// Enabled controls whether periodic sync is enabled.
	// Env: PERIODIC_SYNC_ENABLED (default: true)
	Enabled bool `envconfig:"ENABLED" default:"true"`

	// IntervalSeconds is the sync interval in seconds.
	// Env: PERIODIC_SYNC_INTERVAL_SECONDS (default: 1800)
	IntervalSeconds float64 `envconfig:"INTERVAL_SECONDS" default:"1800"`

	// RetryAttempts is the number of retry attempts.
	// Env: PERIODIC_SYNC_RETRY_ATTEMPTS (default: 3)
	RetryAttempts int `envconfig:"RETRY_ATTEMPTS" default:"3"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "ARCHIE" would require ARCHIE_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	// Apply overrides from environment
	if e.Host != "" {
		cfg = applyOption(cfg, WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = applyOption(cfg, WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	cfg = applyOption(cfg, WithSkipProviderValidation(e.SkipProviderValidation))

	if e.APIKeys != "" {
		cfg = applyOption(cfg, WithAPIKeys(ParseAPIKeys(e.APIKeys)))
	}

	// Embedding endpoint
	if e.EmbeddingEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint()))
	}

	// Completion endpoint
	if e.CompletionEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithCompletionEndpoint(e.CompletionEndpoint.ToEndpoint()))
	}

	// Git provider config
	cfg = applyOption(cfg, WithGitHostConfig(e.GitHost.ToGitHostConfig()))

	// Ingestion config
	cfg = applyOption(cfg, WithIngestConfig(e.Ingest.ToIngestConfig()))

	// Periodic sync config
	cfg = applyOption(cfg, WithPeriodicSyncConfig(e.PeriodicSync.ToPeriodicSyncConfig()))

	// Worker count
	if e.WorkerCount > 0 {
		cfg = applyOption(cfg, WithWorkerCount(e.WorkerCount))
	}

	// Search limit
	if e.SearchLimit > 0 {
		cfg = applyOption(cfg, WithSearchLimit(e.SearchLimit))
	}

	return cfg
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// IsConfigured returns true if the endpoint has a model configured.
func (e EndpointEnv) IsConfigured() bool {
	return e.Model != ""
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	opts := []EndpointOption{
		WithModel(e.Model),
		WithNumParallelTasks(e.NumParallelTasks),
		WithTimeout(time.Duration(e.Timeout * float64(time.Second))),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(time.Duration(e.InitialDelay * float64(time.Second))),
		WithBackoffFactor(e.BackoffFactor),
		WithMaxTokens(e.MaxTokens),
	}

	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}

	return NewEndpointWithOptions(opts...)
}

// ToGitHostConfig converts GitHostEnv to GitHostConfig.
func (g GitHostEnv) ToGitHostConfig() GitHostConfig {
	cfg := NewGitHostConfig().WithRateLimitBuffer(g.RateLimitBuffer)
	if g.Token != "" {
		cfg = cfg.WithToken(g.Token)
	}
	if g.BaseURL != "" {
		cfg = cfg.WithGitHostBaseURL(g.BaseURL)
	}
	return cfg
}

// ToIngestConfig converts IngestEnv to IngestConfig.
func (i IngestEnv) ToIngestConfig() IngestConfig {
	return NewIngestConfig().
		WithTimeBudget(time.Duration(i.TimeBudgetSeconds * float64(time.Second))).
		WithFetchConcurrency(i.FetchConcurrency).
		WithEmbedConcurrency(i.EmbedConcurrency).
		WithMaxFileBytes(i.MaxFileBytes).
		WithChunkTokens(i.ChunkTokens).
		WithChunkOverlap(i.ChunkOverlap).
		WithUpsertBatchSize(i.UpsertBatchSize).
		WithFilterFile(i.FilterFile)
}

// ToPeriodicSyncConfig converts PeriodicSyncEnv to PeriodicSyncConfig.
func (p PeriodicSyncEnv) ToPeriodicSyncConfig() PeriodicSyncConfig {
	return NewPeriodicSyncConfig().
		WithEnabled(p.Enabled).
		WithIntervalSeconds(p.IntervalSeconds).
		WithRetryAttempts(p.RetryAttempts)
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
