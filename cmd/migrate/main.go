// Command migrate applies or rolls back the embedded schema migrations.
//
//	migrate [up|down]
package main

import (
	"log/slog"
	"os"

	"rollcall/internal/config"
	"rollcall/internal/logger"
	"rollcall/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}
	if err := store.Migrate(cfg.DatabaseURL, direction); err != nil {
		log.Error("migrate failed", "direction", direction, "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied", "direction", direction)
}
