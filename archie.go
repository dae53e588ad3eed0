// Package archie provides a library for indexing hosted Git repositories
// and asking questions about their code.
//
// Archie fetches repository content through the host's API (no clone),
// chunks it into documents, indexes them for hybrid search (keyword +
// vector embeddings), builds a lightweight knowledge graph from the
// source, and answers conversational queries grounded on retrieved
// documents.
//
// Basic usage:
//
//	client, err := archie.New(
//	    archie.WithSQLite(".archie/data.db"),
//	    archie.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	    archie.WithGitHubToken(os.Getenv("GITHUB_TOKEN")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Connect and index a repository
//	repo, err := client.Repositories.Add(ctx, "https://github.com/acme/widgets")
//	status, err := client.Ingestion.IndexRepository(ctx, repo.ID(), false)
//
//	// Hybrid search
//	results, err := client.Search.Query(ctx, "rate limiter",
//	    service.WithLimit(10),
//	)
//
//	// Ask a question
//	conv, err := client.Conversations.Start(ctx, "user-1", []uuid.UUID{repo.ID()}, "")
//	answer, err := client.Query.ProcessQuery(ctx, service.ProcessQueryParams{
//	    UserID:         "user-1",
//	    ConversationID: conv.ID(),
//	    Query:          "how does retry backoff work?",
//	})
package archie

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/archielabs/archie/application/handler"
	"github.com/archielabs/archie/application/service"
	"github.com/archielabs/archie/domain/event"
	"github.com/archielabs/archie/domain/githost"
	"github.com/archielabs/archie/domain/llm"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/infrastructure/bus"
	"github.com/archielabs/archie/infrastructure/extract"
	"github.com/archielabs/archie/infrastructure/extract/lang"
	ghprovider "github.com/archielabs/archie/infrastructure/githost"
	"github.com/archielabs/archie/infrastructure/patterns"
	"github.com/archielabs/archie/infrastructure/persistence"
	"github.com/archielabs/archie/infrastructure/provider"
	searchstore "github.com/archielabs/archie/infrastructure/search"
	"github.com/archielabs/archie/infrastructure/tracking"
	"github.com/archielabs/archie/internal/config"
	"github.com/archielabs/archie/internal/database"
)

// Client is the main entry point for the archie library.
// The background worker starts automatically on creation.
//
// Access resources via struct fields:
//
//	client.Repositories.Find(ctx)
//	client.Search.Query(ctx, "query")
//	client.Query.ProcessQuery(ctx, params)
type Client struct {
	// Public resource fields (direct service access)
	Repositories  *service.Repository
	Ingestion     *service.Ingestion
	Graph         *service.Graph
	Search        *service.Search
	Query         *service.Query
	Conversations *service.Conversation
	Tasks         *service.Queue
	Tracking      *service.Tracking

	db database.Database

	// Stores shared between services and task handlers
	repoStore       persistence.RepositoryStore
	documentStore   persistence.DocumentStore
	indexStatuses   persistence.IndexStatusStore
	graphStore      persistence.GraphStore
	taskStore       persistence.TaskStore
	taskStatusStore persistence.StatusStore

	// Search backends
	keyword  search.KeywordStore
	vector   search.VectorStore
	embedder search.Embedder

	// Providers
	gitProvider githost.Provider
	llmProvider llm.Provider

	// Application services (internal only)
	queue        *service.Queue
	worker       *service.Worker
	periodicSync *service.PeriodicSync
	registry     *service.Registry

	// Graph construction (internal)
	extractor       *extract.Extractor
	patternRegistry *patterns.Registry

	eventBus       event.Bus
	trackerFactory handler.TrackerFactory
	hugotEmbedding *provider.HugotEmbedding
	closers        []io.Closer

	logger          *slog.Logger
	dataDir         string
	apiKeys         []string
	ingestCfg       config.IngestConfig
	ingestFilter    config.IngestFilter
	embeddingBudget search.TokenBudget
	prescribedOps   task.PrescribedOperations
	closed          atomic.Bool
	mu              sync.Mutex
}

// New creates a new Client with the given options.
// The background worker is started automatically.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.database == databaseUnset {
		return nil, ErrNoDatabase
	}

	// Set up logger
	logger := cfg.logger
	if logger == nil {
		logger = config.DefaultLogger()
	}

	// Set up data directory
	dataDir, err := config.PrepareDataDir(cfg.dataDir)
	if err != nil {
		return nil, err
	}

	// Fall back to the built-in embedding model when no external
	// embedding provider is configured. Without either, the client runs
	// keyword-only: the embed step is excluded from prescribed
	// operations and vector search is unavailable.
	var hugotEmbedding *provider.HugotEmbedding
	if cfg.embeddingProvider == nil {
		modelDir := cfg.modelDir
		if modelDir == "" {
			modelDir = filepath.Join(dataDir, "models")
		}
		hugotEmbedding = provider.NewHugotEmbedding(modelDir)
		if hugotEmbedding.Available() {
			cfg.embeddingProvider = hugotEmbedding
			logger.Info("built-in embedding provider enabled", slog.String("model_dir", modelDir))
		} else {
			hugotEmbedding = nil
			logger.Info("no embedding provider configured, indexing keyword-only")
		}
	}

	// Open database
	ctx := context.Background()
	dbURL, err := buildDatabaseURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("build database url: %w", err)
	}

	db, err := database.NewDatabase(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Run auto migration
	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}

	// Validate schema matches GORM models
	if err := persistence.ValidateSchema(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("validate schema: %w", err), errClose)
	}

	// Create stores
	repoStore := persistence.NewRepositoryStore(db)
	documentStore := persistence.NewDocumentStore(db)
	indexStatuses := persistence.NewIndexStatusStore(db)
	graphStore := persistence.NewGraphStore(db)
	conversationStore := persistence.NewConversationStore(db)
	taskStore := persistence.NewTaskStore(db)
	taskStatusStore := persistence.NewStatusStore(db)

	// Create search stores based on storage type
	keyword, vector, err := buildSearchStores(cfg, db, logger)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("search stores: %w", err), errClose)
	}

	// Create domain embedder from infrastructure provider
	var embedder search.Embedder
	if cfg.embeddingProvider != nil {
		embedder = provider.NewSearchEmbedder(cfg.embeddingProvider)
	}

	// Create LLM provider for conversational answers
	var llmProvider llm.Provider
	if cfg.textProvider != nil {
		llmProvider = provider.NewLLM(cfg.textProvider, logger)
	}

	// Create git host provider
	gitProvider := cfg.gitProvider
	if gitProvider == nil {
		gh, err := ghprovider.NewGitHub(cfg.githost, logger)
		if err != nil {
			errClose := db.Close()
			return nil, errors.Join(fmt.Errorf("git host provider: %w", err), errClose)
		}
		gitProvider = gh
	}

	// Create application services
	eventBus := bus.New(logger)
	registry := service.NewRegistry()
	queue := service.NewQueue(taskStore, logger)
	trackingSvc := service.NewTracking(taskStatusStore, taskStore)

	// Create graph construction infrastructure
	extractor := extract.NewExtractor(lang.NewFactory())
	patternRegistry := patterns.NewRegistry(logger)

	// Create tracker factory for progress reporting.
	// Wrap reporters in cooldowns to limit database writes and log output
	// to at most once per second per status ID during high-frequency updates.
	dbCooldown := tracking.NewCooldown(tracking.NewStatusReporter(taskStatusStore), time.Second)
	logCooldown := tracking.NewCooldown(tracking.NewLoggingReporter(logger), time.Second)
	trackerFactory := &trackerFactoryImpl{
		reporters: []tracking.Reporter{dbCooldown, logCooldown},
		logger:    logger,
	}

	worker := service.NewWorker(taskStore, registry, &workerTrackerAdapter{trackerFactory}, logger)
	if cfg.workerPollPeriod > 0 {
		worker.WithPollPeriod(cfg.workerPollPeriod)
	}
	prescribedOps := task.NewPrescribedOperations(embedder != nil)
	periodicSync := service.NewPeriodicSync(cfg.periodicSync, repoStore, queue, prescribedOps, logger)

	// Resolve the ingestion filter, applying the YAML override if set
	ingestFilter := config.DefaultIngestFilter(cfg.ingest.MaxFileBytes())
	if path := cfg.ingest.FilterFile(); path != "" {
		ingestFilter, err = config.LoadIngestFilter(path, cfg.ingest.MaxFileBytes())
		if err != nil {
			errClose := db.Close()
			return nil, errors.Join(fmt.Errorf("load ingest filter: %w", err), errClose)
		}
	}

	// Register cooldowns for cleanup on close so pending statuses are flushed.
	cfg.closers = append(cfg.closers, dbCooldown, logCooldown)

	client := &Client{
		db:              db,
		repoStore:       repoStore,
		documentStore:   documentStore,
		indexStatuses:   indexStatuses,
		graphStore:      graphStore,
		taskStore:       taskStore,
		taskStatusStore: taskStatusStore,
		keyword:         keyword,
		vector:          vector,
		embedder:        embedder,
		gitProvider:     gitProvider,
		llmProvider:     llmProvider,
		queue:           queue,
		worker:          worker,
		periodicSync:    periodicSync,
		registry:        registry,
		extractor:       extractor,
		patternRegistry: patternRegistry,
		eventBus:        eventBus,
		trackerFactory:  trackerFactory,
		hugotEmbedding:  hugotEmbedding,
		closers:         cfg.closers,
		logger:          logger,
		dataDir:         dataDir,
		apiKeys:         cfg.apiKeys,
		ingestCfg:       cfg.ingest,
		ingestFilter:    ingestFilter,
		embeddingBudget: cfg.embeddingBudget,
		prescribedOps:   prescribedOps,
	}

	// Initialize service fields directly
	client.Repositories = service.NewRepository(repoStore, gitProvider, queue, prescribedOps, eventBus, logger)
	client.Ingestion = service.NewIngestion(repoStore, documentStore, indexStatuses, keyword, vector, queue, prescribedOps, eventBus, logger)
	client.Graph = service.NewGraph(repoStore, graphStore, patternRegistry, queue, logger)
	client.Search = service.NewSearch(keyword, vector, embedder, documentStore, &client.closed, logger)
	client.Query = service.NewQuery(conversationStore, client.Search, llmProvider, eventBus, logger)
	client.Conversations = service.NewConversation(conversationStore, repoStore, eventBus, logger)
	client.Tasks = queue
	client.Tracking = trackingSvc

	// Register task handlers
	client.registerHandlers()

	// Validate all prescribed operations have handlers
	if !cfg.skipProviderValidation {
		if err := client.validateHandlers(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	// Start the background worker and periodic sync
	worker.Start(ctx)
	periodicSync.Start(ctx)

	return client, nil
}

// Close releases all resources and stops the background worker.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return service.ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Stop the periodic sync and worker
	c.periodicSync.Stop()
	c.worker.Stop()

	// Close built-in embedding provider
	if c.hugotEmbedding != nil {
		if err := c.hugotEmbedding.Close(); err != nil {
			c.logger.Error("failed to close hugot embedding", slog.Any("error", err))
		}
	}

	// Close registered resources (e.g. caching transports)
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	// Close the database
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("archie client closed")
	return nil
}

// WorkerIdle reports whether the background worker has no in-flight tasks.
func (c *Client) WorkerIdle() bool {
	return !c.worker.Busy()
}

// VectorAvailable reports whether an embedding provider is configured.
func (c *Client) VectorAvailable() bool {
	return c.embedder != nil
}

// Bus returns the client's event bus for subscribing to domain events.
func (c *Client) Bus() event.Bus {
	return c.eventBus
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// APIKeys returns the API keys configured via WithAPIKeys.
func (c *Client) APIKeys() []string {
	keys := make([]string, len(c.apiKeys))
	copy(keys, c.apiKeys)
	return keys
}

// buildSearchStores creates the keyword and vector stores for the
// configured database. Keyword search uses SQLite FTS5 or Postgres
// tsvector; vectors live in a JSON column on SQLite and in pgvector on
// Postgres.
func buildSearchStores(cfg *clientConfig, db database.Database, logger *slog.Logger) (search.KeywordStore, search.VectorStore, error) {
	switch cfg.database {
	case databaseSQLite:
		return searchstore.NewSQLiteKeywordStore(db.GORM(), logger),
			searchstore.NewSQLiteVectorStore(db, logger),
			nil
	case databasePostgres:
		return searchstore.NewPostgresKeywordStore(db.GORM(), logger),
			searchstore.NewPgvectorStore(db, logger),
			nil
	default:
		return nil, nil, ErrNoDatabase
	}
}
