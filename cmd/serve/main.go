// Command serve runs the chat API server.
//
// Configuration is via environment variables (a .env file is honored):
//
//	PORT                 - Server port (default: 8000)
//	LOG_LEVEL            - debug, info, warn, or error (default: info)
//	CORS_ORIGINS         - Comma-separated allowed origins (default: *)
//	PROVIDER             - openai, anthropic, or google (default: openai)
//	MODEL                - Model override (optional, uses provider default)
//	OPENAI_API_KEY       - API key for the openai provider
//	OPENAI_BASE_URL      - OpenAI-compatible endpoint override (e.g. Groq)
//	ANTHROPIC_API_KEY    - API key for the anthropic provider
//	GOOGLE_API_KEY       - API key for the google provider
//	TAVILY_API_KEY       - Enables the web search tool
//	MCP_URL              - Enables the Google Trends tool
//	DATABASE_URL         - Postgres DSN; omit for in-memory storage
//	JWT_SECRET           - HS256 secret for bearer tokens (required)
//	AGENT_MAX_ITERATIONS - Reasoning loop cap (default: 10)
//	AGENT_TIMEOUT        - Per-completion timeout (default: 30s)
//	HISTORY_LIMIT        - Recent turns replayed per message (default: 10)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulsechat/pulsechat/agent"
	"github.com/pulsechat/pulsechat/auth"
	"github.com/pulsechat/pulsechat/completion"
	"github.com/pulsechat/pulsechat/server"
	"github.com/pulsechat/pulsechat/store"
	"github.com/pulsechat/pulsechat/tool"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := newCompletionClient(ctx, cfg)
	if err != nil {
		logger.Error("creating completion client", "error", err)
		os.Exit(1)
	}

	st, cleanup, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("creating store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	registry := tool.NewRegistry()
	serverOpts := []server.Option{
		server.WithLogger(logger),
		server.WithCORSOrigins(cfg.CORSOrigins),
		server.WithAgentOptions(
			agent.WithMaxIterations(cfg.MaxIterations),
			agent.WithGenerationTimeout(cfg.GenerationTimeout),
			agent.WithHistoryLimit(cfg.HistoryLimit),
		),
	}

	if cfg.TavilyAPIKey != "" {
		registry.MustRegister(tool.NewTavily(cfg.TavilyAPIKey))
		logger.Info("web search tool enabled")
	}
	if cfg.TrendsMCPURL != "" {
		trends := tool.NewTrends(cfg.TrendsMCPURL)
		defer trends.Close()
		registry.MustRegister(trends)
		serverOpts = append(serverOpts, server.WithHealthChecker("trends", trends))
		logger.Info("trends tool enabled", "url", cfg.TrendsMCPURL)
	}

	a := agent.New(client, registry, st, agent.WithLogger(logger))
	srv := server.New(a, st, auth.NewVerifier(cfg.JWTSecret), serverOpts...)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE needs no write timeout
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("server starting",
		"port", cfg.Port,
		"provider", cfg.Provider,
		"tools", registry.Names(),
	)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("server", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

func newCompletionClient(ctx context.Context, cfg *Config) (completion.Client, error) {
	switch cfg.Provider {
	case "openai":
		var opts []completion.OpenAIOption
		if cfg.Model != "" {
			opts = append(opts, completion.WithOpenAIModel(cfg.Model))
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, completion.WithOpenAIBaseURL(cfg.OpenAIBaseURL))
		}
		return completion.NewOpenAI(cfg.OpenAIKey, opts...), nil
	case "anthropic":
		var opts []completion.AnthropicOption
		if cfg.Model != "" {
			opts = append(opts, completion.WithAnthropicModel(cfg.Model))
		}
		return completion.NewAnthropic(cfg.AnthropicKey, opts...), nil
	case "google":
		var opts []completion.GoogleOption
		if cfg.Model != "" {
			opts = append(opts, completion.WithGoogleModel(cfg.Model))
		}
		return completion.NewGoogle(ctx, cfg.GoogleKey, opts...)
	}
	return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
}

func newStore(ctx context.Context, cfg *Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		return store.NewMemory(), func() {}, nil
	}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	logger.Info("connected to postgres")
	return pg, pg.Close, nil
}
