package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn kinds.
const (
	TurnKindRequest      = "request"
	TurnKindExplanation  = "explanation"
	TurnKindConfirmation = "confirmation"
)

// Conversation states. Advisory only: submissions are accepted in either state.
const (
	ConversationAwaitingInput = "awaiting_input"
	ConversationProcessing    = "processing"
	// ConversationClosed is reported for transcripts read back from the archive.
	ConversationClosed = "closed"
)

// Turn is one message in a conversation. Turns are append-only; Sequence is assigned
// when the turn is appended and defines the transcript order.
type Turn struct {
	SessionID uuid.UUID `db:"session_id" json:"session_id"`
	Sequence  int       `db:"sequence"   json:"sequence"`
	Role      Role      `db:"role"       json:"role"`
	Kind      string    `db:"kind"       json:"kind"`
	Text      string    `db:"text"       json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Notification is the out-of-band confirmation promised by the confirmation turn.
type Notification struct {
	ID           uuid.UUID     `db:"id"            json:"id"`
	SessionID    uuid.UUID     `db:"session_id"    json:"session_id"`
	TurnSequence int           `db:"turn_sequence" json:"turn_sequence"`
	Channel      string        `db:"channel"       json:"channel"`
	Request      string        `db:"request"       json:"request"`
	Window       time.Duration `db:"window"        json:"-"`
	WindowMins   int           `db:"-"             json:"window_minutes"`
	DueBy        time.Time     `db:"due_by"        json:"due_by"`
	CreatedAt    time.Time     `db:"created_at"    json:"created_at"`
}

// Session is the scope that owns one conversation, one pipeline and one asset library.
type Session struct {
	ID        uuid.UUID  `db:"id"         json:"id"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	ClosedAt  *time.Time `db:"closed_at"  json:"closed_at,omitempty"`
}
