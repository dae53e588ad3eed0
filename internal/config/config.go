// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8080
	DefaultLogLevel              = "INFO"
	DefaultWorkerCount           = 1
	DefaultSearchLimit           = 10
	DefaultEndpointParallelTasks = 1
	DefaultEndpointTimeout       = 60 * time.Second
	DefaultEndpointMaxRetries    = 5
	DefaultEndpointInitialDelay  = 1 * time.Second
	DefaultEndpointBackoffFactor = 2.0
	DefaultEndpointMaxDelay      = 30 * time.Second
	DefaultEndpointMaxTokens     = 4000
	DefaultPeriodicSyncInterval  = 1800.0 // seconds
	DefaultPeriodicSyncRetries   = 3

	DefaultIngestTimeBudget    = 30 * time.Minute
	DefaultFetchConcurrency    = 16
	DefaultEmbedConcurrency    = 8
	DefaultMaxFileBytes        = 1 << 20 // 1 MiB
	DefaultChunkTokens         = 800
	DefaultChunkOverlapTokens  = 100
	DefaultUpsertBatchSize     = 50
	DefaultGitHostRateBuffer   = 100
	DefaultGitHostAbuseBackoff = 60 * time.Second
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Endpoint configures an AI service endpoint (embedding or completion).
type Endpoint struct {
	baseURL          string
	model            string
	apiKey           string
	numParallelTasks int
	timeout          time.Duration
	maxRetries       int
	initialDelay     time.Duration
	backoffFactor    float64
	maxTokens        int
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		numParallelTasks: DefaultEndpointParallelTasks,
		timeout:          DefaultEndpointTimeout,
		maxRetries:       DefaultEndpointMaxRetries,
		initialDelay:     DefaultEndpointInitialDelay,
		backoffFactor:    DefaultEndpointBackoffFactor,
		maxTokens:        DefaultEndpointMaxTokens,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// NumParallelTasks returns the number of parallel tasks.
func (e Endpoint) NumParallelTasks() int { return e.numParallelTasks }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// MaxTokens returns the maximum token limit.
func (e Endpoint) MaxTokens() int { return e.maxTokens }

// IsConfigured returns true if the endpoint has required configuration.
func (e Endpoint) IsConfigured() bool {
	return e.model != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithNumParallelTasks sets the parallel task count.
func WithNumParallelTasks(n int) EndpointOption {
	return func(e *Endpoint) { e.numParallelTasks = n }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// WithMaxTokens sets the maximum token limit.
func WithMaxTokens(n int) EndpointOption {
	return func(e *Endpoint) { e.maxTokens = n }
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// GitHostConfig configures access to the hosted git provider.
type GitHostConfig struct {
	token           string
	baseURL         string
	rateLimitBuffer int
	abuseBackoff    time.Duration
}

// NewGitHostConfig creates a new GitHostConfig with defaults.
func NewGitHostConfig() GitHostConfig {
	return GitHostConfig{
		rateLimitBuffer: DefaultGitHostRateBuffer,
		abuseBackoff:    DefaultGitHostAbuseBackoff,
	}
}

// Token returns the access token (may be empty for public repositories).
func (g GitHostConfig) Token() string { return g.token }

// BaseURL returns the API base URL (empty for the public host).
func (g GitHostConfig) BaseURL() string { return g.baseURL }

// RateLimitBuffer returns how many permits below the published rate limit to stay.
func (g GitHostConfig) RateLimitBuffer() int { return g.rateLimitBuffer }

// AbuseBackoff returns the fixed wait applied on abuse-detection signals.
func (g GitHostConfig) AbuseBackoff() time.Duration { return g.abuseBackoff }

// WithToken returns a new config with the given access token.
func (g GitHostConfig) WithToken(token string) GitHostConfig {
	g.token = token
	return g
}

// WithGitHostBaseURL returns a new config with the given API base URL.
func (g GitHostConfig) WithGitHostBaseURL(url string) GitHostConfig {
	g.baseURL = url
	return g
}

// WithRateLimitBuffer returns a new config with the given buffer size.
func (g GitHostConfig) WithRateLimitBuffer(n int) GitHostConfig {
	if n > 0 {
		g.rateLimitBuffer = n
	}
	return g
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	timeBudget       time.Duration
	fetchConcurrency int
	embedConcurrency int
	maxFileBytes     int64
	chunkTokens      int
	chunkOverlap     int
	upsertBatchSize  int
	filterFile       string
}

// NewIngestConfig creates a new IngestConfig with defaults.
func NewIngestConfig() IngestConfig {
	return IngestConfig{
		timeBudget:       DefaultIngestTimeBudget,
		fetchConcurrency: DefaultFetchConcurrency,
		embedConcurrency: DefaultEmbedConcurrency,
		maxFileBytes:     DefaultMaxFileBytes,
		chunkTokens:      DefaultChunkTokens,
		chunkOverlap:     DefaultChunkOverlapTokens,
		upsertBatchSize:  DefaultUpsertBatchSize,
	}
}

// TimeBudget returns the per-run ingestion time budget.
func (i IngestConfig) TimeBudget() time.Duration { return i.timeBudget }

// FetchConcurrency returns the maximum concurrent content fetches.
func (i IngestConfig) FetchConcurrency() int { return i.fetchConcurrency }

// EmbedConcurrency returns the maximum concurrent embedding batches.
func (i IngestConfig) EmbedConcurrency() int { return i.embedConcurrency }

// MaxFileBytes returns the per-file size cap.
func (i IngestConfig) MaxFileBytes() int64 { return i.maxFileBytes }

// ChunkTokens returns the chunk window target in tokens.
func (i IngestConfig) ChunkTokens() int { return i.chunkTokens }

// ChunkOverlap returns the chunk overlap in tokens.
func (i IngestConfig) ChunkOverlap() int { return i.chunkOverlap }

// UpsertBatchSize returns the document upsert batch size.
func (i IngestConfig) UpsertBatchSize() int { return i.upsertBatchSize }

// FilterFile returns the path of the optional YAML filter override file.
func (i IngestConfig) FilterFile() string { return i.filterFile }

// WithTimeBudget returns a new config with the given time budget.
func (i IngestConfig) WithTimeBudget(d time.Duration) IngestConfig {
	if d > 0 {
		i.timeBudget = d
	}
	return i
}

// WithFetchConcurrency returns a new config with the given fetch concurrency.
func (i IngestConfig) WithFetchConcurrency(n int) IngestConfig {
	if n > 0 {
		i.fetchConcurrency = n
	}
	return i
}

// WithEmbedConcurrency returns a new config with the given embed concurrency.
func (i IngestConfig) WithEmbedConcurrency(n int) IngestConfig {
	if n > 0 {
		i.embedConcurrency = n
	}
	return i
}

// WithMaxFileBytes returns a new config with the given per-file size cap.
func (i IngestConfig) WithMaxFileBytes(n int64) IngestConfig {
	if n > 0 {
		i.maxFileBytes = n
	}
	return i
}

// WithChunkTokens returns a new config with the given chunk window size.
func (i IngestConfig) WithChunkTokens(n int) IngestConfig {
	if n > 0 {
		i.chunkTokens = n
	}
	return i
}

// WithChunkOverlap returns a new config with the given chunk overlap.
func (i IngestConfig) WithChunkOverlap(n int) IngestConfig {
	if n >= 0 {
		i.chunkOverlap = n
	}
	return i
}

// WithUpsertBatchSize returns a new config with the given upsert batch size.
func (i IngestConfig) WithUpsertBatchSize(n int) IngestConfig {
	if n > 0 {
		i.upsertBatchSize = n
	}
	return i
}

// WithFilterFile returns a new config with the given YAML filter file path.
func (i IngestConfig) WithFilterFile(path string) IngestConfig {
	i.filterFile = path
	return i
}

// PeriodicSyncConfig configures periodic repository re-indexing.
type PeriodicSyncConfig struct {
	enabled         bool
	intervalSeconds float64
	retryAttempts   int
}

// NewPeriodicSyncConfig creates a new PeriodicSyncConfig with defaults.
func NewPeriodicSyncConfig() PeriodicSyncConfig {
	return PeriodicSyncConfig{
		enabled:         true,
		intervalSeconds: DefaultPeriodicSyncInterval,
		retryAttempts:   DefaultPeriodicSyncRetries,
	}
}

// Enabled returns whether periodic sync is enabled.
func (p PeriodicSyncConfig) Enabled() bool { return p.enabled }

// Interval returns the sync interval as a duration.
func (p PeriodicSyncConfig) Interval() time.Duration {
	return time.Duration(p.intervalSeconds * float64(time.Second))
}

// RetryAttempts returns the retry count.
func (p PeriodicSyncConfig) RetryAttempts() int { return p.retryAttempts }

// WithEnabled returns a new config with the specified enabled state.
func (p PeriodicSyncConfig) WithEnabled(enabled bool) PeriodicSyncConfig {
	p.enabled = enabled
	return p
}

// WithIntervalSeconds returns a new config with the specified interval.
func (p PeriodicSyncConfig) WithIntervalSeconds(seconds float64) PeriodicSyncConfig {
	if seconds > 0 {
		p.intervalSeconds = seconds
	}
	return p
}

// WithRetryAttempts returns a new config with the specified retry count.
func (p PeriodicSyncConfig) WithRetryAttempts(attempts int) PeriodicSyncConfig {
	if attempts >= 0 {
		p.retryAttempts = attempts
	}
	return p
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host                   string
	port                   int
	dataDir                string
	dbURL                  string
	logLevel               string
	logFormat              LogFormat
	skipProviderValidation bool
	embeddingEndpoint      *Endpoint
	completionEndpoint     *Endpoint
	githost                GitHostConfig
	ingest                 IngestConfig
	periodicSync           PeriodicSyncConfig
	apiKeys                []string
	workerCount            int
	searchLimit            int
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".archie"
	}
	return filepath.Join(home, ".archie")
}

// DefaultLogger returns the default slog logger for library consumers.
func DefaultLogger() *slog.Logger {
	return slog.Default()
}

// PrepareDataDir creates the data directory if it does not exist and returns it.
func PrepareDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:         DefaultHost,
		port:         DefaultPort,
		dataDir:      dataDir,
		dbURL:        "sqlite:///" + filepath.Join(dataDir, "archie.db"),
		logLevel:     DefaultLogLevel,
		logFormat:    LogFormatPretty,
		githost:      NewGitHostConfig(),
		ingest:       NewIngestConfig(),
		periodicSync: NewPeriodicSyncConfig(),
		apiKeys:      []string{},
		workerCount:  DefaultWorkerCount,
		searchLimit:  DefaultSearchLimit,
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// SkipProviderValidation returns whether to skip provider validation at startup.
// This is intended for testing only.
func (c AppConfig) SkipProviderValidation() bool { return c.skipProviderValidation }

// EmbeddingEndpoint returns the embedding endpoint config.
func (c AppConfig) EmbeddingEndpoint() *Endpoint { return c.embeddingEndpoint }

// CompletionEndpoint returns the completion endpoint config.
func (c AppConfig) CompletionEndpoint() *Endpoint { return c.completionEndpoint }

// GitHost returns the git provider config.
func (c AppConfig) GitHost() GitHostConfig { return c.githost }

// Ingest returns the ingestion pipeline config.
func (c AppConfig) Ingest() IngestConfig { return c.ingest }

// PeriodicSync returns the periodic sync config.
func (c AppConfig) PeriodicSync() PeriodicSyncConfig { return c.periodicSync }

// APIKeys returns the configured API keys.
func (c AppConfig) APIKeys() []string {
	keys := make([]string, len(c.apiKeys))
	copy(keys, c.apiKeys)
	return keys
}

// WorkerCount returns the number of background workers.
func (c AppConfig) WorkerCount() int { return c.workerCount }

// SearchLimit returns the default search result limit.
func (c AppConfig) SearchLimit() int { return c.searchLimit }

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		if c.dbURL == "" || strings.Contains(c.dbURL, "archie.db") {
			c.dbURL = "sqlite:///" + filepath.Join(dir, "archie.db")
		}
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithSkipProviderValidation sets whether to skip provider validation.
func WithSkipProviderValidation(skip bool) AppConfigOption {
	return func(c *AppConfig) { c.skipProviderValidation = skip }
}

// WithEmbeddingEndpoint sets the embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = &e }
}

// WithCompletionEndpoint sets the completion endpoint.
func WithCompletionEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.completionEndpoint = &e }
}

// WithGitHostConfig sets the git provider config.
func WithGitHostConfig(g GitHostConfig) AppConfigOption {
	return func(c *AppConfig) { c.githost = g }
}

// WithIngestConfig sets the ingestion pipeline config.
func WithIngestConfig(i IngestConfig) AppConfigOption {
	return func(c *AppConfig) { c.ingest = i }
}

// WithPeriodicSyncConfig sets the periodic sync config.
func WithPeriodicSyncConfig(p PeriodicSyncConfig) AppConfigOption {
	return func(c *AppConfig) { c.periodicSync = p }
}

// WithAPIKeys sets the API keys.
func WithAPIKeys(keys []string) AppConfigOption {
	return func(c *AppConfig) {
		c.apiKeys = make([]string, len(keys))
		copy(c.apiKeys, keys)
	}
}

// WithWorkerCount sets the number of background workers.
func WithWorkerCount(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.workerCount = n
		}
	}
}

// WithSearchLimit sets the default search result limit.
func WithSearchLimit(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.searchLimit = n
		}
	}
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Sensitive values like API keys and tokens are masked or shown as counts.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("embedding_model", c.endpointModel(c.embeddingEndpoint)),
		slog.String("completion_model", c.endpointModel(c.completionEndpoint)),
		slog.Bool("githost_token_set", c.githost.Token() != ""),
		slog.Int("api_keys_count", len(c.apiKeys)),
		slog.Bool("skip_provider_validation", c.skipProviderValidation),
		slog.Bool("periodic_sync_enabled", c.periodicSync.Enabled()),
		slog.Duration("periodic_sync_interval", c.periodicSync.Interval()),
		slog.Duration("ingest_time_budget", c.ingest.TimeBudget()),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(default)"
	}
	if strings.HasPrefix(c.dbURL, "sqlite:") {
		return c.dbURL
	}
	return "postgres://***@***"
}

func (c AppConfig) endpointModel(e *Endpoint) string {
	if e == nil {
		return "(not configured)"
	}
	return e.Model()
}

// ParseAPIKeys parses a comma-separated string of API keys.
func ParseAPIKeys(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}
