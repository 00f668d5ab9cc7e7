package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an observable transition delivered to the presentation layer.
type EventType string

const (
	EventRunStarted          EventType = "run.started"
	EventRunProgress         EventType = "run.progress"
	EventRunCompleted        EventType = "run.completed"
	EventRunCancelled        EventType = "run.cancelled"
	EventRunFailed           EventType = "run.failed"
	EventTurnAppended        EventType = "turn.appended"
	EventPermissionRequested EventType = "permission.requested"
	EventConversationClosed  EventType = "conversation.closed"
	EventSessionCreated      EventType = "session.created"
	EventSessionClosed       EventType = "session.closed"
)

// Event is one entry of a session's event stream. Which payload fields are set
// depends on Type; session.created also carries the seeded asset library.
type Event struct {
	Seq          uint64        `json:"seq"`
	Type         EventType     `json:"type"`
	SessionID    uuid.UUID     `json:"session_id"`
	At           time.Time     `json:"at"`
	Session      *Session      `json:"session,omitempty"`
	Run          *Run          `json:"run,omitempty"`
	Asset        *Asset        `json:"asset,omitempty"`
	Assets       []Asset       `json:"assets,omitempty"`
	Turn         *Turn         `json:"turn,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Error        string        `json:"error,omitempty"`
}
