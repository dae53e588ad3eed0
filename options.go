package archie

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/archielabs/archie/domain/githost"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/infrastructure/provider"
	"github.com/archielabs/archie/internal/config"
)

// ErrNoDatabase indicates no database was configured.
// Use WithSQLite or WithPostgres.
var ErrNoDatabase = errors.New("archie: no database configured")

// databaseType identifies the database.
type databaseType int

const (
	databaseUnset databaseType = iota
	databaseSQLite
	databasePostgres
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	database               databaseType
	dbPath                 string
	dbDSN                  string
	dataDir                string
	modelDir               string
	githost                config.GitHostConfig
	ingest                 config.IngestConfig
	periodicSync           config.PeriodicSyncConfig
	gitProvider            githost.Provider
	textProvider           provider.TextGenerator
	embeddingProvider      provider.Embedder
	embeddingBudget        search.TokenBudget
	logger                 *slog.Logger
	apiKeys                []string
	workerPollPeriod       time.Duration
	skipProviderValidation bool
	closers                []io.Closer
}

// newClientConfig creates a clientConfig with defaults from internal/config.
// This ensures all defaults come from the single source of truth.
func newClientConfig() *clientConfig {
	return &clientConfig{
		dataDir:         config.DefaultDataDir(),
		githost:         config.NewGitHostConfig(),
		ingest:          config.NewIngestConfig(),
		periodicSync:    config.NewPeriodicSyncConfig(),
		embeddingBudget: search.DefaultTokenBudget(),
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite configures SQLite as the database.
// Keyword search uses FTS5, vectors are stored as JSON.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.database = databaseSQLite
		c.dbPath = path
	}
}

// WithPostgres configures PostgreSQL as the database.
// Keyword search uses tsvector, vectors use the pgvector extension.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.database = databasePostgres
		c.dbDSN = dsn
	}
}

// WithOpenAI sets OpenAI as the AI provider (completions + embeddings).
func WithOpenAI(apiKey string) Option {
	return func(c *clientConfig) {
		p := provider.NewOpenAIProvider(apiKey)
		c.textProvider = p
		c.embeddingProvider = p
	}
}

// WithOpenAIConfig sets OpenAI with custom configuration.
func WithOpenAIConfig(cfg provider.OpenAIConfig) Option {
	return func(c *clientConfig) {
		p := provider.NewOpenAIProviderFromConfig(cfg)
		c.textProvider = p
		c.embeddingProvider = p
	}
}

// WithAnthropic sets Anthropic Claude as the completion provider.
// Requires a separate embedding provider since Anthropic doesn't provide
// embeddings; without one, indexing runs keyword-only.
func WithAnthropic(apiKey string) Option {
	return func(c *clientConfig) {
		c.textProvider = provider.NewAnthropicProvider(apiKey)
	}
}

// WithAnthropicConfig sets Anthropic Claude with custom configuration.
func WithAnthropicConfig(cfg provider.AnthropicConfig) Option {
	return func(c *clientConfig) {
		c.textProvider = provider.NewAnthropicProviderFromConfig(cfg)
	}
}

// WithTextProvider sets a custom completion provider.
func WithTextProvider(p provider.TextGenerator) Option {
	return func(c *clientConfig) {
		c.textProvider = p
	}
}

// WithEmbeddingProvider sets a custom embedding provider.
func WithEmbeddingProvider(p provider.Embedder) Option {
	return func(c *clientConfig) {
		c.embeddingProvider = p
	}
}

// WithEmbeddingBudget sets the token budget for embedding batches.
func WithEmbeddingBudget(b search.TokenBudget) Option {
	return func(c *clientConfig) {
		c.embeddingBudget = b
	}
}

// WithGitHubToken sets the access token for the GitHub API.
// Without a token, only public repositories are reachable and the
// unauthenticated rate limit applies.
func WithGitHubToken(token string) Option {
	return func(c *clientConfig) {
		c.githost = c.githost.WithToken(token)
	}
}

// WithGitHostConfig sets the full git host configuration, including
// base URL for GitHub Enterprise and rate limit tuning.
func WithGitHostConfig(cfg config.GitHostConfig) Option {
	return func(c *clientConfig) {
		c.githost = cfg
	}
}

// WithGitHostProvider sets a custom git host provider, bypassing the
// GitHub API client. Intended for tests and alternative hosts.
func WithGitHostProvider(p githost.Provider) Option {
	return func(c *clientConfig) {
		c.gitProvider = p
	}
}

// WithIngestConfig sets the ingestion pipeline configuration.
func WithIngestConfig(cfg config.IngestConfig) Option {
	return func(c *clientConfig) {
		c.ingest = cfg
	}
}

// WithDataDir sets the data directory for the database and model files.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithModelDir sets the directory where built-in model files are stored.
// Defaults to {dataDir}/models if not specified.
func WithModelDir(dir string) Option {
	return func(c *clientConfig) {
		c.modelDir = dir
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithAPIKeys sets the API keys for HTTP API authentication.
func WithAPIKeys(keys ...string) Option {
	return func(c *clientConfig) {
		c.apiKeys = keys
	}
}

// WithWorkerPollPeriod sets how often the background worker checks for new tasks.
// Defaults to 1 second. Lower values speed up task processing at the cost of
// more frequent polling — useful in tests.
func WithWorkerPollPeriod(d time.Duration) Option {
	return func(c *clientConfig) {
		c.workerPollPeriod = d
	}
}

// WithSkipProviderValidation skips the handler coverage validation at
// startup. This is intended for testing only.
func WithSkipProviderValidation() Option {
	return func(c *clientConfig) {
		c.skipProviderValidation = true
	}
}

// WithPeriodicSyncConfig sets the periodic sync configuration.
func WithPeriodicSyncConfig(cfg config.PeriodicSyncConfig) Option {
	return func(c *clientConfig) {
		c.periodicSync = cfg
	}
}

// WithCloser registers a resource to be closed when the Client shuts down.
func WithCloser(c io.Closer) Option {
	return func(cfg *clientConfig) {
		cfg.closers = append(cfg.closers, c)
	}
}

// buildDatabaseURL constructs the database URL from configuration.
func buildDatabaseURL(cfg *clientConfig) (string, error) {
	switch cfg.database {
	case databaseSQLite:
		return "sqlite:///" + cfg.dbPath, nil
	case databasePostgres:
		return cfg.dbDSN, nil
	default:
		return "", ErrNoDatabase
	}
}
