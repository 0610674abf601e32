// Package server wires and runs the reference coordination service: the
// in-memory race store behind the echo HTTP API, with signal-driven shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmeckel/ski-race-timer-sub004/internal/cryptox"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
	"github.com/jmeckel/ski-race-timer-sub004/internal/server/config"
	"github.com/jmeckel/ski-race-timer-sub004/internal/server/httpapi"
	"github.com/jmeckel/ski-race-timer-sub004/internal/server/races"
)

type App struct {
	config *config.Config
	logger logging.Logger
	api    *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(c.LogLevel))

	pinHash, err := cryptox.HashPIN(c.PIN)
	if err != nil {
		return nil, fmt.Errorf("pin hash: %w", err)
	}

	store := races.NewStore(
		races.WithMaxPhotoBytes(c.MaxPhotoBytes),
		races.WithPresenceTTL(c.PresenceTTL),
	)
	api := httpapi.New(store, httpapi.Auth{
		SecretKey:     []byte(c.SecretKey),
		PINHash:       pinHash,
		TokenValidity: c.TokenValidity,
	}, logger)

	return &App{config: c, logger: logger, api: api}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "address", app.config.ListenAddr)

	app.initSignalHandler(cancelFunc)

	if err := app.api.Run(ctx, app.config.ListenAddr); err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}
	app.logger.Info(ctx, "app stopped")
	return nil
}
