package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mcdev12/pollroom/go/internal/room"
)

const (
	storageMemory   = "memory"
	storagePostgres = "postgres"
	storageSQLite   = "sqlite"
	storageNATS     = "nats"
)

// Config is the process configuration, read from the environment
type Config struct {
	Port     string `env:"ROOM_PORT" envDefault:"8081"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	SyncInterval        time.Duration `env:"ROOM_SYNC_INTERVAL" envDefault:"1s"`
	SyncMaxPayloadBytes int           `env:"ROOM_SYNC_MAX_PAYLOAD_BYTES" envDefault:"65536"`
	PersistOnClear      bool          `env:"ROOM_PERSIST_ON_CLEAR" envDefault:"true"`
	CatalogPath         string        `env:"ROOM_CATALOG_PATH"`

	Storage    string `env:"ROOM_STORAGE" envDefault:"memory"`
	StorageKey string `env:"ROOM_STORAGE_KEY" envDefault:"votes"`
	SQLitePath string `env:"ROOM_SQLITE_PATH" envDefault:"pollroom.db"`

	PersistMaxRetries     uint          `env:"ROOM_PERSIST_MAX_RETRIES" envDefault:"5"`
	PersistInitialBackoff time.Duration `env:"ROOM_PERSIST_INITIAL_BACKOFF" envDefault:"200ms"`
	PersistMaxBackoff     time.Duration `env:"ROOM_PERSIST_MAX_BACKOFF" envDefault:"5s"`

	AllowedOrigins []string `env:"ROOM_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

func loadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage {
	case storageMemory, storagePostgres, storageSQLite, storageNATS:
	default:
		return fmt.Errorf("unknown ROOM_STORAGE %q", c.Storage)
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("ROOM_SYNC_INTERVAL must be positive, got %s", c.SyncInterval)
	}
	if c.StorageKey == "" {
		return fmt.Errorf("ROOM_STORAGE_KEY must not be empty")
	}
	if c.PersistInitialBackoff > c.PersistMaxBackoff {
		return fmt.Errorf("ROOM_PERSIST_INITIAL_BACKOFF %s exceeds ROOM_PERSIST_MAX_BACKOFF %s",
			c.PersistInitialBackoff, c.PersistMaxBackoff)
	}
	return nil
}

func (c Config) roomConfig() room.Config {
	rc := room.DefaultConfig()
	rc.SyncInterval = c.SyncInterval
	rc.SyncMaxPayloadBytes = c.SyncMaxPayloadBytes
	rc.PersistOnClear = c.PersistOnClear
	rc.StorageKey = c.StorageKey
	rc.Retry.MaxRetries = c.PersistMaxRetries
	rc.Retry.InitialBackoff = c.PersistInitialBackoff
	rc.Retry.MaxBackoff = c.PersistMaxBackoff
	return rc
}
