package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/pollroom/go/internal/room"
	"github.com/rs/zerolog/log"
)

var (
	// ErrConnectionNotFound is returned by Send for an unknown or closed connection
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrSendBufferFull is returned by Send when the connection can't keep up
	ErrSendBufferFull = errors.New("connection send buffer full")
)

// MessageHandler reacts to connection lifecycle and inbound messages
type MessageHandler interface {
	// Greeting is queued on a new connection before it can receive broadcasts
	Greeting() ([]byte, error)
	Handle(ctx context.Context, connectionID string, message []byte) room.Result
}

// ConnectionManager manages the WebSocket connections of the room
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  MessageHandler

	// lifetime of message handling, set by Start
	ctx context.Context

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a participant
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is a payload queued for fan-out
type BroadcastMessage struct {
	Payload []byte
	Exclude []string
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		ctx:         context.Background(),
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// SetHandler sets the handler for connection events. Must be called before Start.
func (cm *ConnectionManager) SetHandler(handler MessageHandler) {
	cm.handler = handler
}

// Start processes broadcasts until ctx is cancelled, then closes every connection
func (cm *ConnectionManager) Start(ctx context.Context) {
	cm.mu.Lock()
	cm.ctx = ctx
	cm.mu.Unlock()

	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

func (cm *ConnectionManager) handlerContext() context.Context {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.ctx
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and joins it to the room
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, max(cm.config.SendBufferSize, 1)),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	if cm.handler != nil {
		if greeting, err := cm.handler.Greeting(); err != nil {
			log.Warn().Err(err).Str("connection_id", connection.ID).Msg("failed to greet connection")
		} else {
			connection.Send <- greeting
		}
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Str("path", r.URL.Path).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn.ID]; exists {
		delete(cm.connections, conn.ID)
		close(conn.Send)

		log.Info().
			Str("connection_id", conn.ID).
			Dur("connected_for", time.Since(conn.ConnectedAt)).
			Msg("connection unregistered")
	}
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	connections := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		connections = append(connections, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range connections {
		cm.unregisterConnection(conn)
	}
}

// Broadcast queues payload for every connection except the excluded IDs
func (cm *ConnectionManager) Broadcast(payload []byte, exclude ...string) {
	select {
	case cm.broadcastCh <- BroadcastMessage{Payload: payload, Exclude: exclude}:
	default:
		log.Warn().Int("bytes", len(payload)).Msg("broadcast channel full, dropping message")
	}
}

// Send queues payload for a single connection
func (cm *ConnectionManager) Send(connectionID string, payload []byte) error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	conn, exists := cm.connections[connectionID]
	if !exists {
		return ErrConnectionNotFound
	}

	select {
	case conn.Send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	var slow []*Connection
	delivered := 0

	cm.mu.RLock()
	for id, conn := range cm.connections {
		if excluded(id, message.Exclude) {
			continue
		}
		select {
		case conn.Send <- message.Payload:
			delivered++
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Int("connections", delivered).
		Int("excluded", len(message.Exclude)).
		Msg("message broadcasted")
}

func excluded(id string, exclude []string) bool {
	for _, e := range exclude {
		if e == id {
			return true
		}
	}
	return false
}

// ConnectionStats describes the connected participants
type ConnectionStats struct {
	TotalConnections int `json:"total_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return ConnectionStats{TotalConnections: len(cm.connections)}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump feeds inbound messages to the handler, one at a time
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if c.Manager.handler != nil {
			result := c.Manager.handler.Handle(c.Manager.handlerContext(), c.ID, message)
			log.Debug().
				Str("connection_id", c.ID).
				Str("type", string(result.Type)).
				Str("status", result.Status.String()).
				Str("reason", string(result.Reason)).
				Msg("client message handled")
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
