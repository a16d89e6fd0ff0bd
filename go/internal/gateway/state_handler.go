package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/pollroom/go/internal/room"
	"github.com/rs/zerolog/log"
)

// StateProvider returns the current room state
type StateProvider interface {
	SyncMessage(ctx context.Context) (room.SyncMessage, error)
}

// StateHandler serves room state over plain HTTP for clients that can't hold a socket
type StateHandler struct {
	stateProvider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetRoomState handles GET /api/room/state. The body matches a sync message.
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state, err := h.stateProvider.SyncMessage(r.Context())
	if err != nil {
		if errors.Is(err, room.ErrClosed) {
			http.Error(w, "Room is closed", http.StatusServiceUnavailable)
			return
		}
		log.Error().Err(err).Msg("failed to get room state")
		http.Error(w, "Failed to get room state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode room state response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/room/state", h.HandleGetRoomState)
}
