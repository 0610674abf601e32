// Command server runs the reference coordination service that timing
// stations sync entries and faults through.
package main

import (
	"context"
	"log"

	"github.com/jmeckel/ski-race-timer-sub004/internal/server"
	"github.com/jmeckel/ski-race-timer-sub004/internal/server/config"
)

func main() {

	cfg := config.LoadConfig()
	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("serve: %v", err)
	}

}
