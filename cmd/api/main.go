// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/livechat-platform/internal/completion"
	"github.com/capitalize-ai/livechat-platform/internal/config"
	"github.com/capitalize-ai/livechat-platform/internal/flow"
	"github.com/capitalize-ai/livechat-platform/internal/handler"
	"github.com/capitalize-ai/livechat-platform/internal/llm"
	"github.com/capitalize-ai/livechat-platform/internal/middleware"
	natsclient "github.com/capitalize-ai/livechat-platform/internal/nats"
	"github.com/capitalize-ai/livechat-platform/internal/persona"
	"github.com/capitalize-ai/livechat-platform/internal/router"
	"github.com/capitalize-ai/livechat-platform/internal/routing"
	"github.com/capitalize-ai/livechat-platform/internal/session"
	"github.com/capitalize-ai/livechat-platform/internal/state"
	"github.com/capitalize-ai/livechat-platform/pkg/logger"
	"github.com/capitalize-ai/livechat-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "livechat-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing")
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	// Ensure the event stream exists
	eventBus := natsclient.NewEventBus(natsClient)
	if err := eventBus.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure event stream", "error", err)
		os.Exit(1)
	}

	// Conversation state backend
	var store state.Store
	switch cfg.StateBackend {
	case "nats":
		store, err = state.NewNATSStore(ctx, natsClient.JetStream(), cfg.StateBucket)
		if err != nil {
			log.Error("failed to create NATS state store", "error", err)
			os.Exit(1)
		}
	default:
		store = state.NewMemoryStore()
	}
	log.Info("state backend ready", "backend", cfg.StateBackend)

	// Initialize LLM client
	var llmClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		llmClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			log.Warn("failed to create Anthropic client, LLM features disabled")
		}
	} else if cfg.OpenAIAPIKey != "" {
		llmClient, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Warn("failed to create OpenAI client, LLM features disabled")
		}
	}

	// Personas and keyword routing
	registry := persona.NewRegistry(log)
	keywords := routing.NewKeywordRouter(routing.DefaultRules(), cfg.TransferThreshold, registry)

	// Completion gateway
	gateway := completion.NewGateway(llmClient, registry, nil, completion.Options{
		PromptWindow: cfg.PromptWindow,
		Timeout:      cfg.CompletionTimeout,
		MaxTokens:    cfg.CompletionMaxTokens,
	}, log)
	if !gateway.Ready() {
		log.Warn("no completion provider configured, AI replies will fall back to human handoff")
	}

	// Optional flow script
	var engine *flow.Engine
	if cfg.FlowScriptPath != "" {
		script, err := flow.LoadScript(cfg.FlowScriptPath)
		if err != nil {
			log.Error("failed to load flow script", "path", cfg.FlowScriptPath, "error", err)
			os.Exit(1)
		}
		if script.Enabled {
			engine, err = flow.NewEngine(script, log)
			if err != nil {
				log.Error("invalid flow script", "path", cfg.FlowScriptPath, "error", err)
				os.Exit(1)
			}
			log.Info("flow script loaded", "name", script.Name, "steps", len(script.Steps))
		} else {
			log.Info("flow script disabled", "name", script.Name)
		}
	}

	// Conversation router and session lifecycle share one guard so a
	// sweep never races an in-flight message.
	guard := router.NewGuard()
	conversationRouter := router.New(store, registry, keywords, gateway, engine, eventBus, guard, router.Config{
		TransferThreshold:   cfg.TransferThreshold,
		SuggestThreshold:    cfg.SuggestThreshold,
		SpecialistThreshold: cfg.SpecialistThreshold,
		HistoryLimit:        cfg.HistoryLimit,
	}, log)

	sessions := session.NewManager(store, registry, engine, eventBus, guard, session.Options{
		IdleAge:       cfg.SessionIdleAge,
		SweepInterval: cfg.SweepInterval,
		HistoryLimit:  cfg.HistoryLimit,
	}, log)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.Run(sweepCtx)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	chatHandler := handler.NewChatHandler(sessions, conversationRouter, store, log)
	personaHandler := handler.NewPersonaHandler(registry, log)
	eventsHandler := handler.NewEventsHandler(eventBus, store, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/chat", func(r chi.Router) {
			r.Post("/sessions", chatHandler.StartSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", chatHandler.Get)
				r.Delete("/", chatHandler.Close)

				r.Post("/messages", chatHandler.SendMessage)
				r.Post("/choice", chatHandler.SelectChoice)
				r.Post("/rating", chatHandler.SubmitRating)

				r.Get("/events", eventsHandler.Stream)
			})
		})

		r.Route("/personas", func(r chi.Router) {
			r.Get("/", personaHandler.List)
			r.With(middleware.RequireScope("personas:write")).Put("/{department}", personaHandler.Upsert)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
