package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/MockThePlank/passkey-playground/internal/platform/otel"
	"github.com/MockThePlank/passkey-playground/internal/server"
)

func main() {
	log.SetPrefix("[AUTH] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "passkey-playground")
	if err != nil {
		log.Fatalf("setup tracing: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	cfg, err := server.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := server.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
