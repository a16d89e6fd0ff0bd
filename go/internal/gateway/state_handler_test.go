package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/pollroom/go/internal/catalog"
	"github.com/mcdev12/pollroom/go/internal/room"
	"github.com/stretchr/testify/assert"
)

type stubProvider struct {
	msg room.SyncMessage
	err error
}

func (s stubProvider) SyncMessage(ctx context.Context) (room.SyncMessage, error) {
	return s.msg, s.err
}

func TestHandleGetRoomState(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		provider   stubProvider
		wantStatus int
		wantBody   string
	}{
		{
			name:       "ok",
			method:     http.MethodGet,
			provider:   stubProvider{msg: room.SyncMessage{SenderID: "server", Type: room.TypeSync, Results: room.Results{}, Questions: catalog.Catalog{}, Navigation: "/"}},
			wantStatus: http.StatusOK,
			wantBody:   `{"senderId":"server","type":"sync","results":{},"questions":{},"navigation":"/"}`,
		},
		{
			name:       "wrong method",
			method:     http.MethodPost,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "room closed",
			method:     http.MethodGet,
			provider:   stubProvider{err: room.ErrClosed},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "other failure",
			method:     http.MethodGet,
			provider:   stubProvider{err: errors.New("boom")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStateHandler(tt.provider)
			rec := httptest.NewRecorder()

			h.HandleGetRoomState(rec, httptest.NewRequest(tt.method, "/api/room/state", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}
