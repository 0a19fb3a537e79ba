package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matthewloh/pragmadic/db"
	"github.com/matthewloh/pragmadic/internal/chat"
	"github.com/matthewloh/pragmadic/internal/config"
	"github.com/matthewloh/pragmadic/internal/conversation"
	"github.com/matthewloh/pragmadic/internal/knowledge"
	"github.com/matthewloh/pragmadic/internal/provider"
	"github.com/matthewloh/pragmadic/internal/tools"
)

// app bundles the wired application components behind the CLI commands.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	pool         *pgxpool.Pool
	store        *conversation.PostgresStore
	pipeline     *knowledge.Pipeline
	retriever    *knowledge.Retriever
	orchestrator *chat.Orchestrator
}

// newApp migrates the database and wires the full component graph.
// The returned cleanup closes the connection pool.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, func(), error) {
	pool, err := newDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := pool.Close

	gemini, err := provider.NewGemini(ctx, provider.GeminiConfig{
		APIKey:     cfg.GeminiAPIKey(),
		Model:      cfg.ModelName,
		EmbedModel: cfg.EmbedderModel,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating gemini provider: %w", err)
	}

	store, err := conversation.NewPostgresStore(pool, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	chunkStore, err := knowledge.NewPostgresChunkStore(pool, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	pipeline, err := knowledge.NewPipeline(gemini, chunkStore, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	retriever, err := knowledge.NewRetriever(gemini, chunkStore, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	ingestTool, err := tools.NewIngestTool(pipeline, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	retrieveTool, err := tools.NewRetrieveTool(retriever, cfg.SimilarityThreshold, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	registry, err := tools.NewRegistry(ingestTool, retrieveTool)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	executor, err := tools.NewExecutor(registry, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	orchestrator, err := chat.New(chat.Config{
		Store:         store,
		Completion:    gemini,
		Registry:      registry,
		Executor:      executor,
		Logger:        logger,
		SystemPrompt:  cfg.SystemPrompt,
		MaxToolRounds: cfg.MaxToolRounds,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &app{
		cfg:          cfg,
		logger:       logger,
		pool:         pool,
		store:        store,
		pipeline:     pipeline,
		retriever:    retriever,
		orchestrator: orchestrator,
	}, cleanup, nil
}

// newDBPool runs migrations and opens the pgx connection pool.
func newDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Fail fast when the database is unreachable.
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
