// Package main provides the entry point for the Lumo server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sarvesh-official/lumo/internal/chat"
	"github.com/sarvesh-official/lumo/internal/config"
	"github.com/sarvesh-official/lumo/internal/event"
	"github.com/sarvesh-official/lumo/internal/identity"
	"github.com/sarvesh-official/lumo/internal/logging"
	"github.com/sarvesh-official/lumo/internal/provider"
	"github.com/sarvesh-official/lumo/internal/server"
	"github.com/sarvesh-official/lumo/internal/storage"
	"github.com/sarvesh-official/lumo/internal/tool"
)

var (
	port      = flag.Int("port", 0, "Server port (overrides config)")
	directory = flag.String("directory", "", "Working directory")
	version   = flag.Bool("version", false, "Print version and exit")
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("lumo-server %s (%s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// A local .env is convenient in development; absence is fine.
	_ = godotenv.Load()

	workDir := *directory
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get working directory: %v\n", err)
			os.Exit(1)
		}
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data directories: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Pretty: cfg.PrettyLogs,
	})
	logging.Info().Str("version", Version).Int("port", cfg.Port).Msg("starting lumo server")

	if cfg.APIKey == "" {
		logging.Fatal().Msg("no API key configured; set OPENAI_API_KEY or apiKey in lumo.json")
	}

	store := storage.New(cfg.DataDir)
	bus := event.NewBus()
	defer bus.Close()

	registry := provider.NewRegistry(func() (provider.Provider, error) {
		return provider.NewOpenAI(provider.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
		}), nil
	})

	tools := tool.NewRegistry()
	flashcards, err := tool.NewFlashcards(store, bus)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build flashcards tool")
	}
	tools.Register(flashcards)

	var verifier identity.Verifier
	if cfg.AuthSecret != "" {
		verifier = identity.NewHMACVerifier(cfg.AuthSecret)
	} else {
		logging.Warn().Msg("no auth secret configured, using development secret")
		verifier = identity.NewHMACVerifier("lumo-dev-secret")
	}

	sessions := chat.NewService(store, bus)

	serverConfig := server.DefaultConfig()
	serverConfig.Port = cfg.Port
	srv := server.New(serverConfig, server.Deps{
		Verifier:     verifier,
		Sessions:     sessions,
		Orchestrator: chat.NewOrchestrator(sessions, registry, tools, bus, cfg.Model, cfg.MaxSteps),
		Titles:       chat.NewSynthesizer(registry, cfg.TitleModel),
		Store:        store,
		Bus:          bus,
	})

	go func() {
		logging.Info().Msgf("server listening on http://localhost:%d", cfg.Port)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("server stopped")
}
