package main

import (
	"fmt"
	"strings"

	"github.com/archielabs/archie"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/infrastructure/provider"
	"github.com/archielabs/archie/internal/config"
)

// clientOptions returns the archie.Option slice derived from the shared parts
// of AppConfig: database storage, git host access, ingestion tuning, the
// embedding provider, and the completion provider. Callers append
// entrypoint-specific options (API keys, logger, etc.) before passing the
// full slice to archie.New.
func clientOptions(cfg config.AppConfig) ([]archie.Option, error) {
	opts := storageOptions(cfg)

	opts = append(opts,
		archie.WithGitHostConfig(cfg.GitHost()),
		archie.WithIngestConfig(cfg.Ingest()),
		archie.WithPeriodicSyncConfig(cfg.PeriodicSync()),
	)

	embOpts, err := embeddingOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding config: %w", err)
	}
	opts = append(opts, embOpts...)

	txtOpts := completionOptions(cfg)
	opts = append(opts, txtOpts...)

	return opts, nil
}

// storageOptions returns the archie.Option for the configured database backend.
func storageOptions(cfg config.AppConfig) []archie.Option {
	dbURL := cfg.DBURL()

	if dbURL != "" && !isSQLite(dbURL) {
		return []archie.Option{archie.WithPostgres(dbURL)}
	}

	dbPath := cfg.DataDir() + "/archie.db"
	if dbURL != "" && isSQLite(dbURL) {
		dbPath = strings.TrimPrefix(dbURL, "sqlite:///")
		if dbPath == dbURL {
			dbPath = strings.TrimPrefix(dbURL, "sqlite:")
		}
	}

	return []archie.Option{archie.WithSQLite(dbPath)}
}

// embeddingOptions returns archie.Options for the embedding provider when
// the embedding endpoint is configured, or an empty slice otherwise. An
// unconfigured endpoint falls back to the built-in model, or keyword-only
// search when no model files are present.
func embeddingOptions(cfg config.AppConfig) ([]archie.Option, error) {
	endpoint := cfg.EmbeddingEndpoint()
	if endpoint == nil || !endpoint.IsConfigured() {
		return nil, nil
	}

	p := provider.NewOpenAIProviderFromConfig(provider.OpenAIConfig{
		APIKey:         endpoint.APIKey(),
		BaseURL:        endpoint.BaseURL(),
		EmbeddingModel: endpoint.Model(),
		Timeout:        endpoint.Timeout(),
		MaxRetries:     endpoint.MaxRetries(),
		InitialDelay:   endpoint.InitialDelay(),
		BackoffFactor:  endpoint.BackoffFactor(),
	})

	// ~3 chars per token keeps batches under the model's context window.
	budget, err := search.NewTokenBudget(endpoint.MaxTokens() * 3)
	if err != nil {
		return nil, fmt.Errorf("max tokens: %w", err)
	}

	return []archie.Option{
		archie.WithEmbeddingProvider(p),
		archie.WithEmbeddingBudget(budget),
	}, nil
}

// completionOptions returns an archie.Option for the completion provider
// when the completion endpoint is configured, or an empty slice otherwise.
// Claude models route to the Anthropic provider; everything else goes
// through the OpenAI-compatible client.
func completionOptions(cfg config.AppConfig) []archie.Option {
	endpoint := cfg.CompletionEndpoint()
	if endpoint == nil || !endpoint.IsConfigured() {
		return nil
	}

	if strings.HasPrefix(endpoint.Model(), "claude") {
		return []archie.Option{archie.WithAnthropicConfig(provider.AnthropicConfig{
			APIKey:        endpoint.APIKey(),
			BaseURL:       endpoint.BaseURL(),
			Model:         endpoint.Model(),
			Timeout:       endpoint.Timeout(),
			MaxRetries:    endpoint.MaxRetries(),
			InitialDelay:  endpoint.InitialDelay(),
			BackoffFactor: endpoint.BackoffFactor(),
		})}
	}

	p := provider.NewOpenAIProviderFromConfig(provider.OpenAIConfig{
		APIKey:        endpoint.APIKey(),
		BaseURL:       endpoint.BaseURL(),
		ChatModel:     endpoint.Model(),
		Timeout:       endpoint.Timeout(),
		MaxRetries:    endpoint.MaxRetries(),
		InitialDelay:  endpoint.InitialDelay(),
		BackoffFactor: endpoint.BackoffFactor(),
	})

	return []archie.Option{archie.WithTextProvider(p)}
}

// isSQLite checks if the database URL is for SQLite.
func isSQLite(url string) bool {
	return strings.HasPrefix(url, "sqlite:")
}
