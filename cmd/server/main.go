// Agentchat - multi-agent research chatbot server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ashureev/agentchat/internal/adminlog"
	"github.com/ashureev/agentchat/internal/agent"
	"github.com/ashureev/agentchat/internal/api"
	"github.com/ashureev/agentchat/internal/config"
	"github.com/ashureev/agentchat/internal/health"
	"github.com/ashureev/agentchat/internal/identity"
	"github.com/ashureev/agentchat/internal/llm"
	"github.com/ashureev/agentchat/internal/middleware"
	"github.com/ashureev/agentchat/internal/registry"
	"github.com/ashureev/agentchat/internal/store"
	"github.com/ashureev/agentchat/internal/tools"
	"github.com/ashureev/agentchat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// "healthcheck" probes a running server's gRPC health endpoint, for container HEALTHCHECK use.
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheck(cfg))
	}

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "llm", cfg.LLM.Provider)

	// Agent registry.
	reg := registry.Load(cfg.AgentsPath)
	if seeded, err := reg.EnsureDefault(cfg.DefaultAgent); err != nil {
		slog.Warn("Failed to persist default agent", "agent", cfg.DefaultAgent, "error", err)
	} else if seeded {
		slog.Info("Default agent seeded", "agent", cfg.DefaultAgent)
	}
	slog.Info("Agent registry loaded", "path", cfg.AgentsPath, "agents", reg.Len())

	// Session history.
	repo, err := store.New(cfg.Session)
	if err != nil {
		return fmt.Errorf("initialize session store: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()
	if err := repo.Ping(context.Background()); err != nil {
		return fmt.Errorf("session store health check: %w", err)
	}
	slog.Info("Session store ready", "backend", cfg.Session.Store)

	// Admin log.
	logs, err := adminlog.Open(adminlog.Config{
		Path:        cfg.AdminLog.Path,
		MemoryLimit: cfg.AdminLog.MemoryLimit,
		QueueSize:   cfg.AdminLog.QueueSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("open admin log: %w", err)
	}
	defer func() {
		if closeErr := logs.Close(); closeErr != nil {
			slog.Error("Failed to close admin log", "error", closeErr)
		}
	}()

	// Agents.
	factory, err := agent.NewFactory(agent.FactoryConfig{
		Registry:      reg,
		BindModel:     func() (llm.ChatModel, error) { return llm.New(cfg.LLM) },
		Tools:         tools.NewDefaultRegistry(cfg.Tools),
		DefaultAgent:  cfg.DefaultAgent,
		MaxIterations: cfg.LLM.MaxIterations,
		Structured:    cfg.LLM.StructuredOutput,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("initialize agent factory: %w", err)
	}
	svc, err := agent.NewService(agent.ServiceConfig{
		Registry:    reg,
		Factory:     factory,
		History:     repo,
		Logs:        logs,
		AdminWindow: cfg.AdminLog.Window,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("initialize agent service: %w", err)
	}
	slog.Info("Active agent ready", "agent", svc.ActiveAgent())

	// Handlers.
	hub := agent.NewHub()
	agentHandler := agent.NewHandler(svc, hub, cfg)
	defer agentHandler.Close()
	wsHandler := agent.NewWebSocketHandler(agentHandler, cfg.AllowedOrigins, cfg.IsDevelopment(), cfg.LLM.Timeout*time.Duration(cfg.LLM.MaxIterations))
	healthHandler := api.NewHealthHandler(repo, svc.ActiveAgent, 5*time.Second)
	healthHandler.SetAgentCount(reg.Len)

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware)

	healthHandler.RegisterHealth(r)
	agentHandler.RegisterRoutes(r)
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Chat turns can run several model and tool round trips, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartTTLWorker(ctx, repo, cfg.Session.TTL, cfg.Session.SweepInterval, func(removed int64) {
		slog.Info("Expired chat sessions removed", "count", removed)
	})
	slog.Info("TTL worker started", "session_ttl", cfg.Session.TTL)

	var grpcHealth *health.Server
	if cfg.GRPCHealthAddr != "" {
		grpcHealth, err = health.Listen(cfg.GRPCHealthAddr, logger)
		if err != nil {
			return fmt.Errorf("start gRPC health server: %w", err)
		}
		go func() {
			if err := grpcHealth.Serve(); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
		grpcHealth.SetServing(true)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	stop()

	slog.Info("Shutting down gracefully...")
	if grpcHealth != nil {
		grpcHealth.Stop()
	}
	hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server stopped successfully")
	return nil
}

func runHealthcheck(cfg *config.Config) int {
	if cfg.GRPCHealthAddr == "" {
		slog.Error("GRPC_HEALTH_ADDR is not set")
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	status, err := health.Probe(ctx, cfg.GRPCHealthAddr, health.ChatService)
	if err != nil {
		slog.Error("Health probe failed", "error", err)
		return 1
	}
	if status != healthpb.HealthCheckResponse_SERVING {
		slog.Error("Server not serving", "status", status.String())
		return 1
	}
	return 0
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
