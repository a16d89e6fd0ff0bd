package room

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
)

// State is what the dispatcher needs from the room
type State interface {
	ApplyVote(ctx context.Context, questionID, participantID, optionID string) (Results, error)
	ClearVotes(ctx context.Context) error
	SetNavigation(ctx context.Context, value string) error
}

// inbound is the union of all client message fields
type inbound struct {
	Type       MessageType     `json:"type"`
	QuestionID json.RawMessage `json:"questionId"`
	UserID     json.RawMessage `json:"userId"`
	OptionID   json.RawMessage `json:"optionId"`
	Value      json.RawMessage `json:"value"`
}

// Dispatcher decodes client messages, applies them to the room and fans out responses.
type Dispatcher struct {
	state       State
	broadcaster Broadcaster
}

// NewDispatcher creates a dispatcher
func NewDispatcher(state State, broadcaster Broadcaster) *Dispatcher {
	return &Dispatcher{
		state:       state,
		broadcaster: broadcaster,
	}
}

// Greeting returns the first frame a newly connected participant receives
func (d *Dispatcher) Greeting() ([]byte, error) {
	return json.Marshal(GreetingMessage{
		SenderID: ServerSenderID,
		Value:    greetingText,
		Type:     TypeGreeting,
	})
}

// Handle applies one raw message from senderID. Malformed or unknown messages
// are ignored and never produce an error; the Result says why.
func (d *Dispatcher) Handle(ctx context.Context, senderID string, message []byte) Result {
	var msg inbound
	if err := json.Unmarshal(message, &msg); err != nil {
		return d.ignore(senderID, "", ReasonMalformed)
	}

	switch msg.Type {
	case TypeVote:
		return d.handleVote(ctx, senderID, msg)
	case TypeClear:
		return d.handleClear(ctx, senderID)
	case TypeNavigation:
		return d.handleNavigation(ctx, senderID, msg)
	default:
		return d.ignore(senderID, msg.Type, ReasonUnknownType)
	}
}

func (d *Dispatcher) handleVote(ctx context.Context, senderID string, msg inbound) Result {
	questionID, ok1 := fieldText(msg.QuestionID)
	userID, ok2 := fieldText(msg.UserID)
	optionID, ok3 := fieldText(msg.OptionID)
	if !ok1 || !ok2 || !ok3 {
		return d.ignore(senderID, TypeVote, ReasonMissingField)
	}

	results, err := d.state.ApplyVote(ctx, questionID, userID, optionID)
	if err != nil {
		return d.ignore(senderID, TypeVote, stateErrorReason(err))
	}

	log.Info().
		Str("connection_id", senderID).
		Str("question_id", questionID).
		Str("user_id", userID).
		Str("option_id", optionID).
		Msg("vote recorded")

	d.broadcast(AnswersMessage{SenderID: senderID, Type: TypeAnswers, Value: results})
	return applied(TypeVote)
}

func (d *Dispatcher) handleClear(ctx context.Context, senderID string) Result {
	if err := d.state.ClearVotes(ctx); err != nil {
		return d.ignore(senderID, TypeClear, stateErrorReason(err))
	}

	log.Info().Str("connection_id", senderID).Msg("votes cleared")
	return applied(TypeClear)
}

func (d *Dispatcher) handleNavigation(ctx context.Context, senderID string, msg inbound) Result {
	value, ok := fieldText(msg.Value)
	if !ok {
		return d.ignore(senderID, TypeNavigation, ReasonMissingField)
	}

	if err := d.state.SetNavigation(ctx, value); err != nil {
		return d.ignore(senderID, TypeNavigation, stateErrorReason(err))
	}

	log.Info().Str("connection_id", senderID).Str("navigation", value).Msg("navigation changed")

	d.broadcast(NavigationMessage{Type: TypeNavigation, Value: value}, senderID)
	return applied(TypeNavigation)
}

func (d *Dispatcher) broadcast(msg any, exclude ...string) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode broadcast")
		return
	}
	d.broadcaster.Broadcast(payload, exclude...)
}

func (d *Dispatcher) ignore(senderID string, t MessageType, reason Reason) Result {
	log.Debug().
		Str("connection_id", senderID).
		Str("type", string(t)).
		Str("reason", string(reason)).
		Msg("message ignored")
	return ignored(t, reason)
}

func stateErrorReason(err error) Reason {
	if errors.Is(err, ErrClosed) {
		return ReasonRoomClosed
	}
	return ReasonCancelled
}

// fieldText turns a JSON field into its text form: strings are unquoted,
// numbers and booleans keep their literal. Absent, null, object and array
// fields report false.
func fieldText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || raw[0] == '{' || raw[0] == '[' {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	return string(raw), true
}
