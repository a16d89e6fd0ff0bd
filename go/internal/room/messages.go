package room

import (
	"github.com/mcdev12/pollroom/go/internal/catalog"
)

// MessageType is the "type" discriminator of every room message
type MessageType string

const (
	TypeVote       MessageType = "vote"
	TypeClear      MessageType = "clear"
	TypeNavigation MessageType = "navigation"
	TypeAnswers    MessageType = "answers"
	TypeSync       MessageType = "sync"
	TypeGreeting   MessageType = ""
)

const (
	// ServerSenderID marks messages originated by the room itself
	ServerSenderID = "server"
	greetingText   = "hello from server"
)

// GreetingMessage is sent once to a newly connected participant
type GreetingMessage struct {
	SenderID string      `json:"senderId"`
	Value    string      `json:"value"`
	Type     MessageType `json:"type"`
}

// AnswersMessage is broadcast to everyone after a vote
type AnswersMessage struct {
	SenderID string      `json:"senderId"`
	Type     MessageType `json:"type"`
	Value    Results     `json:"value"`
}

// NavigationMessage is broadcast to everyone except the participant who navigated
type NavigationMessage struct {
	Type  MessageType `json:"type"`
	Value string      `json:"value"`
}

// SyncMessage is the periodic full-state broadcast
type SyncMessage struct {
	SenderID   string          `json:"senderId"`
	Type       MessageType     `json:"type"`
	Results    Results         `json:"results"`
	Questions  catalog.Catalog `json:"questions"`
	Navigation string          `json:"navigation"`
}

// compactSyncMessage is a SyncMessage without the catalog, sent when the full one is too large
type compactSyncMessage struct {
	SenderID   string      `json:"senderId"`
	Type       MessageType `json:"type"`
	Results    Results     `json:"results"`
	Navigation string      `json:"navigation"`
}

func (m SyncMessage) compact() compactSyncMessage {
	return compactSyncMessage{
		SenderID:   m.SenderID,
		Type:       m.Type,
		Results:    m.Results,
		Navigation: m.Navigation,
	}
}

// Snapshot is the canonical view of room state
type Snapshot struct {
	Results    Results `json:"results"`
	Navigation string  `json:"navigation"`
}

// Status says whether a dispatched message changed anything
type Status int

const (
	StatusApplied Status = iota
	StatusIgnored
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Reason explains why a message was ignored
type Reason string

const (
	ReasonMalformed    Reason = "malformed"
	ReasonUnknownType  Reason = "unknown_type"
	ReasonMissingField Reason = "missing_field"
	ReasonRoomClosed   Reason = "room_closed"
	ReasonCancelled    Reason = "cancelled"
)

// Result is the outcome of dispatching one inbound message
type Result struct {
	Type   MessageType
	Status Status
	Reason Reason
}

func applied(t MessageType) Result {
	return Result{Type: t, Status: StatusApplied}
}

func ignored(t MessageType, reason Reason) Result {
	return Result{Type: t, Status: StatusIgnored, Reason: reason}
}
