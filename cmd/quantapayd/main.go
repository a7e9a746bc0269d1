package main

import (
	"context"
	"log"
	"time"

	"quantapay/internal/config"
	httpinfra "quantapay/internal/infra/http"
)

func main() {
	cfg := config.FromEnv()

	srv := httpinfra.NewServer(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.StartRotationLoop(ctx, time.Hour)

	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
