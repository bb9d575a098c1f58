package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Vipul0052/Lifeline-v2/internal/infra/app"
	"github.com/Vipul0052/Lifeline-v2/internal/infra/config"
)

func main() {
	if err := run(); err != nil {
		log.Printf("lifeline-auth stopped: %v", err)
		os.Exit(1)
	}
}

func run() error {
	// Missing .env is fine outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}

	return application.Run(ctx)
}
