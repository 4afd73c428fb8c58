// Command tarsy-orchestrator boots the orchestration engine: the HTTP
// ingress, the background worker pool that drives the Orchestrator to
// completion for each queued job, and every service each worker depends
// on, with the graceful-shutdown handling the worker pool's "never
// abandon a claimed job" contract requires.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/agentexec"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/api"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/config"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/definitions"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/executionlog"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/llm"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/manager"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/masking"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/orchestrator"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/queue"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/registry"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/store"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/tools"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/vectormemory"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy"),
		"Path to configuration directory")
	flag.Parse()

	config.LoadEnvFile(filepath.Join(*configDir, ".env"))

	httpPort := getEnv("HTTP_PORT", "8080")
	podID := getEnv("POD_ID", "tarsy-orchestrator-0")

	slog.Info("starting tarsy-orchestrator", "config_dir", *configDir, "http_port", httpPort, "pod_id", podID)

	appCfg, err := config.LoadAppConfig()
	if err != nil {
		slog.Error("failed to load application configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient := mustOpenStore(ctx)
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to database")

	if err := seedCatalog(ctx, dbClient, appCfg.CatalogSeedPath); err != nil {
		slog.Error("failed to seed catalog", "error", err)
		os.Exit(1)
	}

	masker := masking.NewService()

	templates, err := llm.LoadTemplateSet(appCfg.PromptDir)
	if err != nil {
		slog.Error("failed to load prompt templates", "error", err)
		os.Exit(1)
	}
	adapter := llm.NewOpenAIAdapter(appCfg.LLMAPIKey, appCfg.LLMModel, templates, 30*time.Second)

	memoryStore, err := newMemoryStore(appCfg, *configDir)
	if err != nil {
		slog.Error("failed to initialize long-term memory store", "error", err)
		os.Exit(1)
	}

	reg := registry.NewWithTools(
		tools.NewAPITool(masker),
		tools.NewPromptTool(adapter),
		tools.ListCapabilities{},
		tools.NewSearchLongTermMemory(memoryStore, 0),
	)

	agentExecutor := agentexec.New(reg)
	execLogger := executionlog.New(dbClient, masker)
	managerExecutor := manager.New(adapter, agentExecutor, execLogger, manager.DefaultMaxReactCycles)
	loader := definitions.New(dbClient)
	orch := orchestrator.New(loader, adapter, managerExecutor, dbClient, execLogger, orchestrator.DefaultMaxCycles)

	queueCfg := queue.DefaultConfig()
	jobExecutor := queue.NewOrchestratorExecutor(orch)
	pool := queue.NewWorkerPool(podID, dbClient, queueCfg, jobExecutor, http.DefaultClient)
	if err := pool.Start(ctx); err != nil {
		slog.Error("failed to start worker pool", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(dbClient, pool, appCfg.AppName, appCfg.APIVersion)
	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received, draining in-flight jobs")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}

	pool.Stop()
	slog.Info("shutdown complete")
}

func mustOpenStore(ctx context.Context) *store.Client {
	dbCfg, err := store.LoadConfigFromEnv()
	if err != nil {
		slog.Error("failed to load database configuration", "error", err)
		os.Exit(1)
	}
	dbClient, err := store.NewClient(ctx, dbCfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	return dbClient
}

// seedCatalog applies the YAML-defined manager/agent/tool seed found under
// seedPath, if any. A missing directory is not an error — operators may
// manage the catalog entirely through direct store writes instead.
func seedCatalog(ctx context.Context, dbClient *store.Client, seedPath string) error {
	seeds, err := config.LoadCatalogSeeds(seedPath)
	if err != nil {
		return err
	}
	if err := config.ApplyCatalogSeeds(ctx, dbClient, seeds); err != nil {
		return err
	}
	slog.Info("applied catalog seed files", "count", len(seeds))
	return nil
}

// newMemoryStore builds the long-term-memory vector store backed by an
// OpenAI embedding model, persisted under the config directory so it
// survives restarts.
func newMemoryStore(appCfg config.AppConfig, configDir string) (*vectormemory.Store, error) {
	embedder := vectormemory.NewOpenAIEmbedder(appCfg.LLMAPIKey, openai.EmbeddingModel("text-embedding-3-small"))
	return vectormemory.New(embedder, filepath.Join(configDir, "vector-memory.gob"))
}
