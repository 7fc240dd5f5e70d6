// Llmsearch serves text embeddings and vector similarity search over HTTP.
//
// Configuration comes from built-in defaults, an optional YAML file, a .env
// file and the environment. See internal/config for the variable names.
//
// Usage:
//
//	# Start the API with defaults (English bge-base model via fastembed)
//	llmsearch
//
//	# Configure via environment
//	SERVER_PORT=9090 VECTORDB_API_ENDPOINT=http://qdrant:6334 llmsearch serve
//
//	# Query the camembert-indexed fr_site collection through TEI
//	EMBEDDING_PROVIDER=tei EMBEDDING_BASE_URL=http://tei:8080 \
//	  MODEL_NAME=dangvantuan/sentence-camembert-base llmsearch serve
//
// Query vectors must come from the model the collection was indexed with.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/llmsearch/internal/auth"
	"github.com/fyrsmithlabs/llmsearch/internal/config"
	"github.com/fyrsmithlabs/llmsearch/internal/docs"
	"github.com/fyrsmithlabs/llmsearch/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/llmsearch/internal/http"
	"github.com/fyrsmithlabs/llmsearch/internal/logging"
	"github.com/fyrsmithlabs/llmsearch/internal/search"
	"github.com/fyrsmithlabs/llmsearch/internal/telemetry"
	"github.com/fyrsmithlabs/llmsearch/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const instrumentationName = "github.com/fyrsmithlabs/llmsearch"

//go:generate swag init -g main.go -d ./,../../internal/http --instanceName llmsearch -o ../../internal/docs --outputTypes go

// @title						LLM Search API
// @version					dev
// @description				Text embeddings and vector similarity search over indexed sites.
// @BasePath					/
// @securityDefinitions.apikey	BearerToken
// @in							header
// @name						Authorization
// @description				Bearer <token>. Without it, search results are anonymized.
// @securityDefinitions.apikey	PostToken
// @in							query
// @name						post_token
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	}

	root := &cobra.Command{
		Use:   "llmsearch",
		Short: "Embedding and vector search API",
		Long: `llmsearch embeds text and searches a vector database for the closest
indexed records. Results are masked unless the caller presents the
configured token.`,
		SilenceUsage: true,
		RunE:         serve,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (mode 0600)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "llmsearch by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	})
	return root
}

// run starts the API and blocks until ctx is cancelled or the listener
// fails.
//
// Startup never fails on an unreachable model or vector database: the
// affected endpoints answer 500 or 503 until the dependency is fixed and
// the daemon restarted.
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetry.ConfigFromSettings(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	logCfg, err := logging.ConfigFromSettings(cfg.Logging, tel.IsEnabled())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()
	logger := appLogger.Underlying()

	logger.Info("starting llmsearch",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("embedding_provider", cfg.Embeddings.Provider),
		zap.String("model", cfg.Embeddings.Model),
		zap.String("vectordb_provider", cfg.VectorDB.Provider),
		zap.Bool("telemetry", tel.IsEnabled()),
	)

	deps, err := initDependencies(ctx, cfg, tel, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	searchMetrics, err := search.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register search metrics: %w", err)
	}
	searcher := search.NewService(deps.embedder, deps.store,
		search.WithMetrics(searchMetrics),
		search.WithLogger(logger),
	)

	docs.SwaggerInfo.Version = version
	srv, err := httpserver.NewServer(
		deps.embedder,
		searcher,
		auth.NewVerifier(cfg.Auth.ExpectedToken, logger),
		logger,
		&httpserver.Config{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			DefaultLimit: cfg.VectorDB.DefaultLimit,
		},
		httpserver.WithHTTPMetrics(httpserver.NewHTTPMetrics(tel.Meter(instrumentationName), logger)),
		httpserver.WithTracer(tel.Tracer(instrumentationName)),
	)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server shutdown complete")
	return nil
}

// dependencies holds the model and the vector store.
type dependencies struct {
	embedder *embeddings.Service
	store    vectorstore.Store
	logger   *zap.Logger
}

// Close releases the model and the store connection.
func (d *dependencies) Close() {
	if d.embedder != nil {
		if err := d.embedder.Close(); err != nil {
			d.logger.Warn("closing embedding model", zap.Error(err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("closing vector store", zap.Error(err))
		}
	}
}

// initDependencies loads the model and connects the vector store. A failure
// of either installs a stand-in that reports the dependency as unavailable.
// Only programming errors, such as an invalid dimension, are returned.
func initDependencies(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry, logger *zap.Logger) (*dependencies, error) {
	provider := loadProvider(ctx, cfg.Embeddings, logger)

	embedder, err := embeddings.NewService(provider, cfg.VectorDB.Dimension,
		embeddings.WithMetrics(embeddings.NewMetrics(tel.Meter(instrumentationName), logger)),
		embeddings.WithLogger(logger),
	)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}

	vsMetrics, err := vectorstore.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to register vector store metrics: %w", err)
	}
	store, err := vectorstore.NewStore(ctx, cfg.VectorDB,
		vectorstore.WithLogger(logger),
		vectorstore.WithMetrics(vsMetrics),
	)
	if err != nil {
		logger.Error("vector store unavailable, search endpoints will answer 503",
			zap.String("provider", cfg.VectorDB.Provider),
			zap.Error(err),
		)
		store = vectorstore.Unavailable(err)
	} else {
		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := store.Health(healthCtx); err != nil {
			logger.Warn("vector store health check failed",
				zap.String("provider", cfg.VectorDB.Provider),
				zap.String("collection", cfg.VectorDB.Collection),
				zap.Error(err),
			)
		} else {
			logger.Info("vector store ready",
				zap.String("provider", cfg.VectorDB.Provider),
				zap.String("collection", cfg.VectorDB.Collection),
			)
		}
		cancel()
	}

	return &dependencies{embedder: embedder, store: store, logger: logger}, nil
}

// loadProvider returns the configured embedding provider, or an
// unavailable one when it cannot be loaded.
func loadProvider(ctx context.Context, cfg config.EmbeddingsConfig, logger *zap.Logger) embeddings.Provider {
	if cfg.Provider == config.EmbeddingProviderFastEmbed {
		if _, err := embeddings.EnsureONNXRuntime(ctx, logger); err != nil {
			logger.Error("onnx runtime unavailable, embedding endpoints will answer 500", zap.Error(err))
			return embeddings.Unavailable(cfg.Model, err)
		}
	}

	provider, err := embeddings.NewProvider(embeddings.ProviderConfigFrom(cfg), logger)
	if err != nil {
		logger.Error("embedding model unavailable, embedding endpoints will answer 500",
			zap.String("provider", cfg.Provider),
			zap.String("model", cfg.Model),
			zap.Error(err),
		)
		return embeddings.Unavailable(cfg.Model, err)
	}
	logger.Info("embedding model loaded",
		zap.String("provider", cfg.Provider),
		zap.String("model", provider.Model()),
		zap.Int("dimension", provider.Dimension()),
	)
	return provider
}
