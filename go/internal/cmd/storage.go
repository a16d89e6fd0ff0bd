package main

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/mcdev12/pollroom/go/internal/dbconfig"
	"github.com/mcdev12/pollroom/go/internal/storage"
	"github.com/mcdev12/pollroom/go/internal/storage/natskv"
	"github.com/mcdev12/pollroom/go/internal/storage/postgres"
	"github.com/mcdev12/pollroom/go/internal/storage/sqlite"
	"github.com/rs/zerolog/log"
)

// openStore returns the configured vote store and a func that releases it
func openStore(ctx context.Context, cfg Config) (storage.Store, func(), error) {
	switch cfg.Storage {
	case storagePostgres:
		dbCfg, err := dbconfig.NewConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		store, err := postgres.Open(ctx, dbCfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		log.Info().
			Str("host", dbCfg.Host).
			Str("database", dbCfg.Database).
			Msg("using postgres vote store")
		return store, store.Close, nil

	case storageSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("using sqlite vote store")
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close sqlite store")
			}
		}, nil

	case storageNATS:
		natsCfg, err := env.ParseAs[natskv.Config]()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse nats env: %w", err)
		}
		store, err := natskv.Open(ctx, natsCfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info().
			Str("url", natsCfg.URL).
			Str("bucket", natsCfg.Bucket).
			Msg("using nats key-value vote store")
		return store, store.Close, nil

	default:
		log.Warn().Msg("using in-memory vote store, votes will not survive a restart")
		return storage.NewMemoryStore(), func() {}, nil
	}
}
