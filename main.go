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

	"github.com/xiaot623/gogo/persona/internal/character"
	"github.com/xiaot623/gogo/persona/internal/config"
	"github.com/xiaot623/gogo/persona/internal/policy"
	"github.com/xiaot623/gogo/persona/internal/provider"
	"github.com/xiaot623/gogo/persona/internal/repository"
	"github.com/xiaot623/gogo/persona/internal/service"
	handler "github.com/xiaot623/gogo/persona/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	slog.Info("starting persona server",
		"port", cfg.HTTPPort,
		"database", cfg.DatabaseURL,
		"character_store", cfg.CharacterStore,
		"mode", cfg.Mode,
	)

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to initialize store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize characters
	var characterStore character.Store = db
	if cfg.CharacterStore == "file" {
		fileStore, err := character.NewFileStore(cfg.CharactersDir)
		if err != nil {
			slog.Error("failed to initialize character store", "err", err)
			os.Exit(1)
		}
		characterStore = fileStore
	}
	characters := character.NewManager(characterStore)

	// Initialize providers
	providers, err := provider.NewFromConfig(cfg)
	if err != nil {
		slog.Error("failed to initialize providers", "err", err)
		os.Exit(1)
	}
	slog.Info("providers registered", "providers", providers.Names())

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PolicyPath)
	if err != nil {
		slog.Error("failed to initialize policy engine", "err", err)
		os.Exit(1)
	}

	// Initialize service
	svc := service.New(characters, nil, db, policyEngine, cfg.MaxInputChars)

	server := handler.NewServer(svc, characters, providers)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "err", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down persona server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server gracefully", "err", err)
	}

	slog.Info("persona server stopped")
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}
