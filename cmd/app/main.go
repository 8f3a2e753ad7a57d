package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sanchey92/checkout-service/internal/app"
	"github.com/sanchey92/checkout-service/internal/config"
)

func main() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("failed to load .env file: %v", err)
	}
	path := os.Getenv("CONFIG_PATH")

	cfg := config.MustLoad(path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	if err = a.Run(ctx); err != nil {
		log.Fatalf("failed to run application: %v", err)
	}
}
