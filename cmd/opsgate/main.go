// Package main is the entry point for the opsgate server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"opsgate/config"
	"opsgate/internal/gateway"
	"opsgate/internal/server"
	"opsgate/internal/store"
	"opsgate/internal/team"

	// Import provider packages to trigger their init() registration
	_ "opsgate/internal/providers/anthropic"
	_ "opsgate/internal/providers/azure"
	_ "opsgate/internal/providers/fallback"
	_ "opsgate/internal/providers/gemini"
	_ "opsgate/internal/providers/huggingface"
	_ "opsgate/internal/providers/ollama"
	_ "opsgate/internal/providers/openai"
)

// Set via -ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("opsgate %s (commit %s, built %s)\n", version, commit, date)
		os.Exit(0)
	}

	setupLogging()

	slog.Info("starting opsgate", "version", version, "commit", commit)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.Storage.SQLitePath)
	if err != nil {
		slog.Error("failed to open database", "error", err, "path", cfg.Storage.SQLitePath)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	svc := gateway.New(gateway.Settings{
		DefaultProvider: cfg.AI.DefaultProvider,
		UseFallback:     cfg.AI.UseFallback,
		OllamaURL:       cfg.Ollama.URL,
		OpenAIKey:       cfg.OpenAI.APIKey,
		AnthropicKey:    cfg.Anthropic.APIKey,
		GeminiKey:       cfg.Gemini.APIKey,
		AzureKey:        cfg.Azure.APIKey,
		AzureEndpoint:   cfg.Azure.Endpoint,
		AzureAPIVersion: cfg.Azure.APIVersion,
		HuggingFaceKey:  cfg.HuggingFace.APIKey,
	})
	slog.Info("providers registered",
		"providers", svc.Names(),
		"default", svc.DefaultProvider(),
		"fallback_enabled", cfg.AI.UseFallback,
	)

	srv := server.New(svc, team.New(svc), st, &server.Config{
		MetricsEnabled: cfg.Metrics.Enabled,
	})

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	slog.Info("starting server", "address", addr)
	if err := srv.Start(addr); err != nil {
		slog.Error("server stopped", "error", err)
	}
}

// setupLogging uses a colorized handler on interactive terminals and JSON
// everywhere else so log collectors get structured output
func setupLogging() {
	var handler slog.Handler
	if term.IsTerminal(int(os.Stdout.Fd())) {
		handler = tint.NewHandler(os.Stdout, &tint.Options{TimeFormat: time.TimeOnly})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))
}
