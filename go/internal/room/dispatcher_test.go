package room

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mcdev12/pollroom/go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *runningRoom, *recordingBroadcaster) {
	t.Helper()
	b := newRecordingBroadcaster()
	r := startRoom(t, testConfig(), storage.NewMemoryStore(), b)
	return NewDispatcher(r.Coordinator, b), r, b
}

func TestDispatcherGreeting(t *testing.T) {
	d, _, b := newTestDispatcher(t)

	payload, err := d.Greeting()
	require.NoError(t, err)
	assert.JSONEq(t, `{"senderId":"server","value":"hello from server","type":""}`, string(payload))
	assert.Equal(t, 0, b.count(), "the gateway delivers the greeting itself")
}

func TestDispatcherVote(t *testing.T) {
	ctx := context.Background()
	d, r, b := newTestDispatcher(t)

	res := d.Handle(ctx, "conn-1", []byte(`{"type":"vote","questionId":"0","userId":"alice","optionId":"A"}`))
	assert.Equal(t, Result{Type: TypeVote, Status: StatusApplied}, res)

	got := b.next(t)
	assert.Empty(t, got.exclude, "vote results go to everyone, sender included")
	assert.JSONEq(t, `{"senderId":"conn-1","type":"answers","value":{"0":{"A":1}}}`, string(got.payload))

	votes, err := r.VotesFor(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"alice": "A"}, votes)
}

func TestDispatcherVoteScenario(t *testing.T) {
	ctx := context.Background()
	d, _, b := newTestDispatcher(t)

	for _, msg := range []string{
		`{"type":"vote","questionId":"0","userId":"alice","optionId":"A"}`,
		`{"type":"vote","questionId":"0","userId":"bob","optionId":"B"}`,
		`{"type":"vote","questionId":"0","userId":"alice","optionId":"B"}`,
	} {
		require.Equal(t, StatusApplied, d.Handle(ctx, "conn-1", []byte(msg)).Status)
	}

	var last AnswersMessage
	for i := 0; i < 3; i++ {
		require.NoError(t, json.Unmarshal(b.next(t).payload, &last))
	}
	assert.Equal(t, Results{"0": {"B": 2}}, last.Value)
}

func TestDispatcherNavigationSkipsSender(t *testing.T) {
	ctx := context.Background()
	d, r, b := newTestDispatcher(t)

	res := d.Handle(ctx, "presenter", []byte(`{"type":"navigation","value":"/results"}`))
	assert.Equal(t, StatusApplied, res.Status)

	got := b.next(t)
	assert.Equal(t, []string{"presenter"}, got.exclude)
	assert.JSONEq(t, `{"type":"navigation","value":"/results"}`, string(got.payload))

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/results", snap.Navigation)
}

func TestDispatcherClearDoesNotBroadcast(t *testing.T) {
	ctx := context.Background()
	d, r, b := newTestDispatcher(t)

	d.Handle(ctx, "conn-1", []byte(`{"type":"vote","questionId":"1","userId":"alice","optionId":"A"}`))
	b.next(t)

	res := d.Handle(ctx, "conn-1", []byte(`{"type":"clear"}`))
	assert.Equal(t, Result{Type: TypeClear, Status: StatusApplied}, res)
	assert.Equal(t, 1, b.count())

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Results)
}

func TestDispatcherIgnoredMessages(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    Result
	}{
		{"unknown type", `{"type":"ping"}`, Result{Type: "ping", Status: StatusIgnored, Reason: ReasonUnknownType}},
		{"no type", `{"value":"x"}`, Result{Type: "", Status: StatusIgnored, Reason: ReasonUnknownType}},
		{"not json", `hello`, Result{Status: StatusIgnored, Reason: ReasonMalformed}},
		{"array", `[1,2]`, Result{Status: StatusIgnored, Reason: ReasonMalformed}},
		{"type not a string", `{"type":7}`, Result{Status: StatusIgnored, Reason: ReasonMalformed}},
		{"empty", ``, Result{Status: StatusIgnored, Reason: ReasonMalformed}},
		{"vote without option", `{"type":"vote","questionId":"0","userId":"alice"}`, Result{Type: TypeVote, Status: StatusIgnored, Reason: ReasonMissingField}},
		{"vote with null user", `{"type":"vote","questionId":"0","userId":null,"optionId":"A"}`, Result{Type: TypeVote, Status: StatusIgnored, Reason: ReasonMissingField}},
		{"navigation without value", `{"type":"navigation"}`, Result{Type: TypeNavigation, Status: StatusIgnored, Reason: ReasonMissingField}},
		{"vote with object question", `{"type":"vote","questionId":{"x":1},"userId":"alice","optionId":"A"}`, Result{Type: TypeVote, Status: StatusIgnored, Reason: ReasonMissingField}},
		{"vote with array option", `{"type":"vote","questionId":"0","userId":"alice","optionId":["A"]}`, Result{Type: TypeVote, Status: StatusIgnored, Reason: ReasonMissingField}},
		{"navigation with object value", `{"type":"navigation","value":{"path":"/1"}}`, Result{Type: TypeNavigation, Status: StatusIgnored, Reason: ReasonMissingField}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			d, r, b := newTestDispatcher(t)

			res := d.Handle(ctx, "conn-1", []byte(tt.message))
			assert.Equal(t, tt.want, res)

			assert.Equal(t, 0, b.count(), "ignored messages broadcast nothing")
			snap, err := r.Snapshot(ctx)
			require.NoError(t, err)
			assert.Empty(t, snap.Results)
			assert.Equal(t, DefaultNavigation, snap.Navigation)
		})
	}
}

func TestDispatcherNonStringFields(t *testing.T) {
	ctx := context.Background()
	d, r, b := newTestDispatcher(t)

	res := d.Handle(ctx, "conn-1", []byte(`{"type":"vote","questionId":0,"userId":"alice","optionId":"A"}`))
	require.Equal(t, StatusApplied, res.Status)
	b.next(t)

	res = d.Handle(ctx, "conn-1", []byte(`{"type":"navigation","value":3}`))
	require.Equal(t, StatusApplied, res.Status)

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, Results{"0": {"A": 1}}, snap.Results)
	assert.Equal(t, "3", snap.Navigation)
}

func TestDispatcherRoomClosed(t *testing.T) {
	ctx := context.Background()
	d, r, b := newTestDispatcher(t)
	r.stop()

	for _, msg := range []string{
		`{"type":"vote","questionId":"0","userId":"alice","optionId":"A"}`,
		`{"type":"clear"}`,
		`{"type":"navigation","value":"/"}`,
	} {
		res := d.Handle(ctx, "conn-1", []byte(msg))
		assert.Equal(t, StatusIgnored, res.Status)
		assert.Equal(t, ReasonRoomClosed, res.Reason)
	}
	assert.Equal(t, 0, b.count())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "applied", StatusApplied.String())
	assert.Equal(t, "ignored", StatusIgnored.String())
	assert.Equal(t, "unknown", Status(9).String())
}
