// Package natskv provides a room store backed by a NATS JetStream key-value bucket.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/pollroom/go/internal/storage"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Config holds the NATS connection and bucket settings
type Config struct {
	URL           string        `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	Bucket        string        `env:"NATS_KV_BUCKET" envDefault:"POLL_ROOM"`
	MaxReconnects int           `env:"NATS_MAX_RECONNECTS" envDefault:"-1"`
	ReconnectWait time.Duration `env:"NATS_RECONNECT_WAIT" envDefault:"2s"`
}

// Store reads and writes room records in a JetStream KV bucket.
type Store struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// Open connects to NATS and creates the bucket if it doesn't exist yet.
func Open(ctx context.Context, config Config) (*Store, error) {
	opts := []nats.Option{
		nats.Name("pollroom"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      config.Bucket,
		Description: "Poll room state",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", config.Bucket, err)
	}

	log.Info().
		Str("url", config.URL).
		Str("bucket", config.Bucket).
		Msg("using JetStream key-value bucket")

	return &Store{nc: nc, kv: kv}, nil
}

// Close drops the NATS connection
func (s *Store) Close() {
	s.nc.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return entry.Value(), nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
