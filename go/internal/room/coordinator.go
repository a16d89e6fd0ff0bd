package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pollroom/go/internal/catalog"
	"github.com/mcdev12/pollroom/go/internal/storage"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by coordinator calls made after the room stopped
var ErrClosed = errors.New("room closed")

// Broadcaster delivers payloads to connected participants
type Broadcaster interface {
	// Broadcast sends to every connection except the excluded IDs
	Broadcast(payload []byte, exclude ...string)
	// Send delivers to a single connection
	Send(connectionID string, payload []byte) error
}

// Config holds coordinator settings
type Config struct {
	SyncInterval        time.Duration
	SyncMaxPayloadBytes int // 0 disables the limit
	PersistOnClear      bool
	StorageKey          string
	Retry               RetryPolicy
	LoadTimeout         time.Duration
}

// DefaultConfig returns the default coordinator configuration
func DefaultConfig() Config {
	return Config{
		SyncInterval:        time.Second,
		SyncMaxPayloadBytes: 64 * 1024,
		PersistOnClear:      true,
		StorageKey:          "votes",
		Retry:               DefaultRetryPolicy(),
		LoadTimeout:         10 * time.Second,
	}
}

type command struct {
	fn   func()
	done chan struct{}
}

// Coordinator is the single owner of room state. Every read and mutation runs
// on the goroutine executing Start, one at a time, so the ledger and cursor
// need no locking. Commands are not accepted until persisted votes are loaded.
type Coordinator struct {
	ledger      *Ledger
	navigation  *Navigation
	catalog     catalog.Catalog
	persister   *Persister
	broadcaster Broadcaster
	clock       clockwork.Clock
	config      Config

	cmdCh   chan command
	ready   chan struct{}
	stopped chan struct{}
	running atomic.Bool
}

// NewCoordinator creates a room coordinator. Call Start to load state and begin serving.
func NewCoordinator(config Config, questions catalog.Catalog, store storage.Store, broadcaster Broadcaster) *Coordinator {
	if questions == nil {
		questions = catalog.Catalog{}
	}
	return &Coordinator{
		ledger:      NewLedger(),
		navigation:  NewNavigation(),
		catalog:     questions,
		persister:   NewPersister(store, config.StorageKey, config.Retry),
		broadcaster: broadcaster,
		clock:       clockwork.NewRealClock(),
		config:      config,
		cmdCh:       make(chan command),
		ready:       make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Ready is closed once persisted votes are loaded and commands are being served
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// Start loads persisted votes, then serves commands and broadcasts a sync
// message every SyncInterval until ctx is cancelled. It blocks until the room
// has stopped and the last pending snapshot has been flushed.
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("coordinator already started")
	}
	defer close(c.stopped)

	c.load(ctx)
	close(c.ready)

	// the persister outlives the command loop so the last accepted command is flushed
	persistCtx, stopPersist := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.persister.Run(persistCtx)
	}()
	defer func() {
		stopPersist()
		wg.Wait()
	}()

	ticker := c.clock.NewTicker(c.config.SyncInterval)
	defer ticker.Stop()

	log.Info().
		Dur("sync_interval", c.config.SyncInterval).
		Int("questions", len(c.catalog)).
		Msg("room coordinator started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("room coordinator shutting down")
			return nil
		case cmd := <-c.cmdCh:
			cmd.fn()
			close(cmd.done)
		case <-ticker.Chan():
			c.broadcastSync()
		}
	}
}

func (c *Coordinator) load(ctx context.Context) {
	loadCtx, cancel := context.WithTimeout(ctx, c.config.LoadTimeout)
	defer cancel()

	votes, err := c.persister.Load(loadCtx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load persisted votes, starting empty")
		return
	}
	c.ledger.Replace(votes)

	log.Info().Int("questions", len(votes)).Msg("persisted votes loaded")
}

// do runs fn on the coordinator goroutine and waits for it to finish
func (c *Coordinator) do(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case c.cmdCh <- cmd:
	case <-c.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// a received command always runs to completion
	<-cmd.done
	return nil
}

// ApplyVote records a vote and schedules the ledger to be persisted.
// The returned results already include the vote.
func (c *Coordinator) ApplyVote(ctx context.Context, questionID, participantID, optionID string) (Results, error) {
	var results Results
	err := c.do(ctx, func() {
		c.ledger.RecordVote(questionID, participantID, optionID)
		c.persister.Enqueue(c.ledger.Snapshot())
		results = c.ledger.TallyAll()
	})
	return results, err
}

// ClearVotes empties the ledger. The empty ledger is persisted only when PersistOnClear is set.
func (c *Coordinator) ClearVotes(ctx context.Context) error {
	return c.do(ctx, func() {
		c.ledger.ClearAll()
		if c.config.PersistOnClear {
			c.persister.Enqueue(c.ledger.Snapshot())
		}
	})
}

// SetNavigation replaces the shared navigation cursor
func (c *Coordinator) SetNavigation(ctx context.Context, value string) error {
	return c.do(ctx, func() {
		c.navigation.Set(value)
	})
}

// Snapshot returns the current results and navigation cursor
func (c *Coordinator) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := c.do(ctx, func() {
		s = c.snapshot()
	})
	return s, err
}

// SyncMessage returns the message a sync tick would broadcast right now
func (c *Coordinator) SyncMessage(ctx context.Context) (SyncMessage, error) {
	var m SyncMessage
	err := c.do(ctx, func() {
		m = c.syncMessage()
	})
	return m, err
}

// VotesFor returns a copy of the current choices for one question
func (c *Coordinator) VotesFor(ctx context.Context, questionID string) (map[string]string, error) {
	var votes map[string]string
	err := c.do(ctx, func() {
		votes = c.ledger.VotesFor(questionID)
	})
	return votes, err
}

func (c *Coordinator) snapshot() Snapshot {
	return Snapshot{
		Results:    c.ledger.TallyAll(),
		Navigation: c.navigation.Get(),
	}
}

func (c *Coordinator) syncMessage() SyncMessage {
	s := c.snapshot()
	return SyncMessage{
		SenderID:   ServerSenderID,
		Type:       TypeSync,
		Results:    s.Results,
		Questions:  c.catalog,
		Navigation: s.Navigation,
	}
}

// broadcastSync sends the full room state to everyone, whether or not it changed
func (c *Coordinator) broadcastSync() {
	msg := c.syncMessage()
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode sync message")
		return
	}

	limit := c.config.SyncMaxPayloadBytes
	if limit > 0 && len(payload) > limit {
		payload, err = json.Marshal(msg.compact())
		if err != nil {
			log.Error().Err(err).Msg("failed to encode sync message")
			return
		}
		if len(payload) > limit {
			log.Warn().
				Int("bytes", len(payload)).
				Int("limit", limit).
				Msg("sync message over size limit, tick skipped")
			return
		}
		log.Warn().
			Int("bytes", len(payload)).
			Int("limit", limit).
			Msg("sync message over size limit, catalog omitted")
	}

	c.broadcaster.Broadcast(payload)

	log.Debug().
		Int("questions_with_votes", len(msg.Results)).
		Str("navigation", msg.Navigation).
		Msg("sync broadcast")
}
