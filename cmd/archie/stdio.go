package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/archielabs/archie"
	"github.com/archielabs/archie/internal/log"
	"github.com/archielabs/archie/internal/mcp"
)

func stdioCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This lets AI assistants use Archie for code search, question answering, and
knowledge graph traversal. Configuration is loaded from environment variables
and the .env file. Logs go to stderr; stdout carries the MCP protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func runStdio(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Log to stderr — stdout is the MCP transport.
	slogger := log.NewLoggerWithWriter(os.Stderr, cfg.LogFormat(), cfg.LogLevel()).Slog()

	slogger.Info("starting MCP server",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir()),
	)

	opts, err := clientOptions(cfg)
	if err != nil {
		return err
	}
	opts = append(opts,
		archie.WithDataDir(cfg.DataDir()),
		archie.WithLogger(slogger),
	)

	client, err := archie.New(opts...)
	if err != nil {
		return fmt.Errorf("create archie client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close archie client", slog.Any("error", err))
		}
	}()

	mcpServer := mcp.NewServer(client.Search, client.Conversations, client.Query, client.Graph, version, slogger)

	return mcpServer.ServeStdio()
}
