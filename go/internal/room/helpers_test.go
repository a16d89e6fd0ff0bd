package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pollroom/go/internal/catalog"
	"github.com/mcdev12/pollroom/go/internal/storage"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	payload []byte
	exclude []string
	target  string // set for Send, empty for Broadcast
}

// recordingBroadcaster captures everything the room sends
type recordingBroadcaster struct {
	mu         sync.Mutex
	deliveries []delivery
	ch         chan delivery
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{ch: make(chan delivery, 100)}
}

func (b *recordingBroadcaster) record(d delivery) {
	b.mu.Lock()
	b.deliveries = append(b.deliveries, d)
	b.mu.Unlock()
	select {
	case b.ch <- d:
	default:
	}
}

func (b *recordingBroadcaster) Broadcast(payload []byte, exclude ...string) {
	b.record(delivery{payload: payload, exclude: exclude})
}

func (b *recordingBroadcaster) Send(connectionID string, payload []byte) error {
	b.record(delivery{payload: payload, target: connectionID})
	return nil
}

func (b *recordingBroadcaster) next(t *testing.T) delivery {
	t.Helper()
	select {
	case d := <-b.ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a delivery")
		return delivery{}
	}
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.deliveries)
}

// flakyStore fails the first failPuts writes and can fail every read
type flakyStore struct {
	*storage.MemoryStore

	mu       sync.Mutex
	failPuts int
	puts     int
	getErr   error
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: storage.NewMemoryStore()}
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.puts++
	if s.failPuts > 0 {
		s.failPuts--
		s.mu.Unlock()
		return errors.New("storage unavailable")
	}
	s.mu.Unlock()
	return s.MemoryStore.Put(ctx, key, value)
}

func (s *flakyStore) putCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func testConfig() Config {
	return Config{
		SyncInterval:        time.Second,
		SyncMaxPayloadBytes: 0,
		PersistOnClear:      true,
		StorageKey:          "votes",
		Retry: RetryPolicy{
			MaxRetries:     3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			FlushTimeout:   time.Second,
		},
		LoadTimeout: time.Second,
	}
}

type runningRoom struct {
	*Coordinator
	clock *clockwork.FakeClock
	stop  func()
}

// startRoom runs a coordinator on a fake clock until the test ends or stop is called
func startRoom(t *testing.T, config Config, store storage.Store, b Broadcaster) *runningRoom {
	t.Helper()

	c := NewCoordinator(config, catalog.Default(), store, b)
	clock := clockwork.NewFakeClock()
	c.clock = clock

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case <-c.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator never became ready")
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("coordinator did not stop")
			}
		})
	}
	t.Cleanup(stop)

	return &runningRoom{Coordinator: c, clock: clock, stop: stop}
}
