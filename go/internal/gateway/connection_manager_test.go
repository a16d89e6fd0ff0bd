package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/pollroom/go/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingHandler broadcasts a sync while the new connection is being greeted
type tickingHandler struct {
	cm *ConnectionManager
}

func (h *tickingHandler) Greeting() ([]byte, error) {
	h.cm.handleBroadcast(BroadcastMessage{Payload: []byte(`{"type":"sync"}`)})
	return []byte(`{"type":""}`), nil
}

func (h *tickingHandler) Handle(ctx context.Context, connectionID string, message []byte) room.Result {
	return room.Result{}
}

func TestGreetingIsFirstFrame(t *testing.T) {
	config := DefaultConnectionConfig()
	config.SendBufferSize = 0
	cm := NewConnectionManager(config)
	cm.SetHandler(&tickingHandler{cm: cm})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, cm.UpgradeConnection(w, r))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, first, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":""}`, string(first))
}

func TestBroadcastExcludesAndSend(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	a := &Connection{ID: "a", Send: make(chan []byte, 1), Manager: cm, ConnectedAt: time.Now()}
	b := &Connection{ID: "b", Send: make(chan []byte, 1), Manager: cm, ConnectedAt: time.Now()}
	cm.registerConnection(a)
	cm.registerConnection(b)

	cm.handleBroadcast(BroadcastMessage{Payload: []byte("nav"), Exclude: []string{"a"}})
	assert.Empty(t, a.Send)
	assert.Equal(t, []byte("nav"), <-b.Send)

	require.NoError(t, cm.Send("a", []byte("hi")))
	assert.Equal(t, []byte("hi"), <-a.Send)
	assert.ErrorIs(t, cm.Send("missing", nil), ErrConnectionNotFound)

	require.NoError(t, cm.Send("b", []byte("1")))
	assert.ErrorIs(t, cm.Send("b", []byte("2")), ErrSendBufferFull)
	assert.Equal(t, 2, cm.GetConnectionStats().TotalConnections)
}
