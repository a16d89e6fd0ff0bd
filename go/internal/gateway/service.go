package gateway

import (
	"context"
	"net/http"
	"sync"

	"github.com/mcdev12/pollroom/go/internal/catalog"
	"github.com/mcdev12/pollroom/go/internal/room"
	"github.com/mcdev12/pollroom/go/internal/storage"
	"github.com/rs/zerolog/log"
)

// Service is the room gateway: it owns the coordinator and the connections it broadcasts to
type Service struct {
	connectionManager *ConnectionManager
	coordinator       *room.Coordinator
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// Config holds configuration for the room gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	Room             room.Config
}

// DefaultConfig returns default configuration for the room gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		Room:             room.DefaultConfig(),
	}
}

// NewService wires the connection manager, coordinator and dispatcher together
func NewService(config Config, questions catalog.Catalog, store storage.Store) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig)
	coordinator := room.NewCoordinator(config.Room, questions, store, connectionManager)
	connectionManager.SetHandler(room.NewDispatcher(coordinator, connectionManager))

	return &Service{
		connectionManager: connectionManager,
		coordinator:       coordinator,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(coordinator),
	}
}

// Start runs the gateway until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting room gateway service")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.connectionManager.Start(ctx)
	}()

	err := s.coordinator.Start(ctx)
	wg.Wait()

	log.Info().Msg("room gateway service stopped")
	return err
}

// Ready is closed once the room has loaded its persisted state
func (s *Service) Ready() <-chan struct{} {
	return s.coordinator.Ready()
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("room gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
