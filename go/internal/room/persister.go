package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/mcdev12/pollroom/go/internal/storage"
	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds how hard the persister tries before dropping a snapshot
type RetryPolicy struct {
	MaxRetries     uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	FlushTimeout   time.Duration
}

// DefaultRetryPolicy returns the default persistence retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		FlushTimeout:   5 * time.Second,
	}
}

// Persister writes vote snapshots to storage behind the room's back.
// Only the newest pending snapshot is kept; an older one that has not been
// written yet is superseded, since every write carries the whole ledger.
type Persister struct {
	store  storage.Store
	key    string
	policy RetryPolicy

	mu         sync.Mutex
	pending    []byte
	hasPending bool
	wakeCh     chan struct{}
}

// NewPersister creates a persister writing to key in store
func NewPersister(store storage.Store, key string, policy RetryPolicy) *Persister {
	return &Persister{
		store:  store,
		key:    key,
		policy: policy,
		wakeCh: make(chan struct{}, 1),
	}
}

// Load reads the persisted votes. A missing record is an empty ledger, not an error.
func (p *Persister) Load(ctx context.Context) (Votes, error) {
	data, err := p.store.Get(ctx, p.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return make(Votes), nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", p.key, err)
	}

	var votes Votes
	if err := json.Unmarshal(data, &votes); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", p.key, err)
	}
	if votes == nil {
		votes = make(Votes)
	}
	return votes, nil
}

// Enqueue schedules votes to be written. It never blocks.
func (p *Persister) Enqueue(votes Votes) {
	data, err := json.Marshal(votes)
	if err != nil {
		log.Error().Err(err).Str("key", p.key).Msg("failed to encode votes, snapshot dropped")
		return
	}

	p.mu.Lock()
	p.pending = data
	p.hasPending = true
	p.mu.Unlock()

	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

// Run writes enqueued snapshots until ctx is cancelled, then flushes whatever is still pending.
func (p *Persister) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case <-p.wakeCh:
			p.writePending(ctx)
		}
	}
}

func (p *Persister) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), p.policy.FlushTimeout)
	defer cancel()
	p.writePending(ctx)
}

func (p *Persister) take() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasPending {
		return nil, false
	}
	data := p.pending
	p.pending = nil
	p.hasPending = false
	return data, true
}

// restore puts data back unless something newer arrived meanwhile
func (p *Persister) restore(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasPending {
		p.pending = data
		p.hasPending = true
	}
}

func (p *Persister) writePending(ctx context.Context) {
	data, ok := p.take()
	if !ok {
		return
	}

	if err := p.write(ctx, data); err != nil {
		if ctx.Err() != nil {
			p.restore(data)
			return
		}
		log.Error().
			Err(err).
			Str("key", p.key).
			Uint("max_retries", p.policy.MaxRetries).
			Msg("failed to persist votes, snapshot dropped")
		return
	}

	log.Debug().Str("key", p.key).Int("bytes", len(data)).Msg("votes persisted")
}

func (p *Persister) write(ctx context.Context, data []byte) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.policy.InitialBackoff
	b.MaxInterval = p.policy.MaxBackoff

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, p.store.Put(ctx, p.key, data)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.policy.MaxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().
				Err(err).
				Str("key", p.key).
				Int("attempt", attempt).
				Dur("retry_in", next).
				Msg("failed to persist votes, retrying")
		}),
	)
	return err
}
