// Command station runs a timing station: the persisted state container,
// the sync engine and an interactive console.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/cli"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/config"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/station"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

func main() {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.LoadConfig()
	logger := logging.NewTextLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	app, err := station.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Start(ctx); err != nil {
		log.Fatalf("%v", err)
	}

	done := make(chan struct{})
	go func() {
		cli.NewApp(app).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	if err := app.Stop(context.Background()); err != nil {
		log.Printf("shutdown: %v", err)
	}

}
