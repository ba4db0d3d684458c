package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/existflow/quizdesk/internal/cli"
	"github.com/existflow/quizdesk/internal/config"
	"github.com/existflow/quizdesk/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}
	os.Exit(run(context.Background()))
}

// run serves the gate until shutdown and returns the process exit code. The
// logger is closed before it returns.
func run(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	addr := cfg.Gate.Addr
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	if err := logger.Init(logger.Config{
		Level:    logger.ParseLevel(cfg.LogLevel),
		FilePath: cfg.LogFile,
		Console:  true,
	}); err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return 1
	}
	defer func() {
		if err := logger.Close(); err != nil {
			log.Printf("Error closing logger: %v", err)
		}
	}()

	log.Printf("quizdesk gate starting on %s, proxying %s", addr, cfg.Gate.Upstream)
	if err := cli.ServeGate(ctx, addr, cfg.Gate.Upstream, cfg.API.BaseURL, cfg.API.Timeout); err != nil {
		logger.Error("Gate failed", logger.F("error", err))
		return 1
	}
	return 0
}
