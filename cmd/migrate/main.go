// migrate applies the embedded SQL migrations: go run ./cmd/migrate -direction up.
package main

import (
	"errors"
	"flag"

	"github.com/rs/zerolog/log"

	"chatdesk/backend/internal/config"
	"chatdesk/backend/internal/db/migrate"
	"chatdesk/backend/internal/platform/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Configure(cfg.LogLevel, cfg.LogFormat, "chatdesk-migrate")
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Str("direction", *direction).Msg("migrate: no change")
			return
		}
		log.Fatal().Err(err).Msg("migrate")
	}
	log.Info().Str("direction", *direction).Msg("migrate: done")
}
