// Relay gateway server. Terminates chat and webhook ingress, manages the
// work-item queue and invoker pool, and runs outbound delivery and
// conversation export.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/revops-ai/relay/pkg/agent"
	"github.com/revops-ai/relay/pkg/api"
	"github.com/revops-ai/relay/pkg/classify"
	"github.com/revops-ai/relay/pkg/config"
	"github.com/revops-ai/relay/pkg/database"
	"github.com/revops-ai/relay/pkg/delivery"
	"github.com/revops-ai/relay/pkg/masking"
	"github.com/revops-ai/relay/pkg/queue"
	"github.com/revops-ai/relay/pkg/recorder"
	"github.com/revops-ai/relay/pkg/slack"
	"github.com/revops-ai/relay/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolvePodID determines the pod identifier for multi-replica coordination.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	podID := resolvePodID()

	slog.Info("Starting relay",
		"http_port", httpPort,
		"pod_id", podID,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	st := store.New(dbClient)

	// 3. One-time startup orphan cleanup
	if err := queue.CleanupStartupOrphans(ctx, st, podID); err != nil {
		slog.Error("Failed to cleanup startup orphans", "error", err)
		// Non-fatal — continue
	}

	// 4. Masking and conversation export
	maskingService, err := masking.NewService(cfg.Masking.PatternGroup)
	if err != nil {
		slog.Error("Failed to initialize masking service", "error", err)
		os.Exit(1)
	}

	objectStore, err := recorder.NewS3Store(ctx, cfg.ObjectStore)
	if err != nil {
		slog.Error("Failed to initialize object store", "error", err)
		os.Exit(1)
	}
	exporter := recorder.NewExporter(objectStore, cfg.ObjectStore, maskingService, slog.Default())
	slog.Info("Conversation exporter initialized", "bucket", cfg.ObjectStore.Bucket)

	// 5. Agent runtime and chat client
	runtime, err := agent.NewBedrockRuntime(ctx, cfg.Agent)
	if err != nil {
		slog.Error("Failed to initialize agent runtime", "error", err)
		os.Exit(1)
	}
	slog.Info("Agent runtime initialized",
		"agent_id", cfg.Agent.AgentID,
		"region", cfg.Agent.Region)

	chatClient := slack.NewClient(cfg.Slack.BotToken, cfg.Slack.APITimeout)

	// 6. Outbound delivery engine
	deliveryMetrics := delivery.NewMetrics(prometheus.DefaultRegisterer)
	dispatcher := delivery.NewQueue(st, cfg.Delivery)
	engine := delivery.NewEngine(st, cfg.Delivery, deliveryMetrics)
	engine.Start(ctx)
	slog.Info("Delivery engine started", "workers", cfg.Delivery.WorkerCount)

	// 7. Invoker pool (before HTTP server)
	invoker := agent.NewInvoker(runtime, cfg.Agent, cfg.Slack, chatClient,
		classify.Classify, dispatcher, exporter)
	workerPool := queue.NewWorkerPool(podID, st, cfg.Queue, invoker)
	if err := workerPool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	// 8. HTTP server (non-blocking)
	verifier := slack.NewVerifier(cfg.Slack.SigningSecret, cfg.Slack.ReplayWindow)
	httpServer := api.NewServer(st, dbClient.DB(), workerPool, verifier, chatClient,
		cfg.Slack, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + httpPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Relay started successfully",
		"pod_id", podID,
		"workers", cfg.Queue.WorkerCount)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: workers first so in-flight sessions finish,
	// then delivery, then the HTTP listener.
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Queue.GracefulShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded, incomplete sessions will be orphan-recovered")
	}

	engine.Stop()
	slog.Info("Delivery engine stopped")

	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
