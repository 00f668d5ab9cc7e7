// Package conversation stages the assistant's two-part reply to a user request.
//
// Submit may be called from any goroutine except a scheduler callback; it hands the
// request to the scheduler thread through Scheduler.Do. Every other Engine method must
// run on the scheduler thread.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rightsdesk/internal/events"
	"github.com/kiranshivaraju/rightsdesk/internal/sched"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

var (
	ErrValidation = fmt.Errorf("chat message: %w", models.ErrValidation)
	ErrScheduling = fmt.Errorf("chat reply: %w", models.ErrScheduling)
	ErrClosed     = errors.New("conversation closed")
)

// NotificationChannel is the delivery channel promised by the confirmation turn.
const NotificationChannel = "email"

// Explainer produces the explanatory reply. It must always return text.
type Explainer interface {
	Explain(ctx context.Context, text string) string
}

// Config controls the reply cadence.
type Config struct {
	ReplyDelay   time.Duration
	ConfirmDelay time.Duration
	NotifyWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReplyDelay:   time.Second,
		ConfirmDelay: 2 * time.Second,
		NotifyWindow: 15 * time.Minute,
	}
}

// Engine owns one session's transcript. Turns are only ever appended, and each gets
// the next sequence number at the moment it is appended.
type Engine struct {
	sessionID uuid.UUID
	cfg       Config
	clock     sched.Scheduler
	group     *sched.Group
	explainer Explainer
	events    events.Publisher

	turns   []models.Turn
	nextSeq int
	closed  bool
}

func New(sessionID uuid.UUID, cfg Config, s sched.Scheduler, ex Explainer, pub events.Publisher) *Engine {
	if cfg.NotifyWindow <= 0 {
		cfg.NotifyWindow = DefaultConfig().NotifyWindow
	}
	return &Engine{
		sessionID: sessionID,
		cfg:       cfg,
		clock:     s,
		group:     sched.NewGroup(s),
		explainer: ex,
		events:    pub,
	}
}

// Submit appends the user's turn and schedules the explanatory reply after ReplyDelay
// and the confirmation after ReplyDelay+ConfirmDelay. Both replies are worked out
// before anything is scheduled, and nothing is appended unless both are scheduled.
func (e *Engine) Submit(ctx context.Context, text string) (models.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Turn{}, fmt.Errorf("%w: text is required", ErrValidation)
	}

	explanation := e.explainer.Explain(ctx, text)
	confirmation := ConfirmationText(e.cfg.NotifyWindow)

	var (
		turn      models.Turn
		acceptErr error
	)
	err := e.clock.Do(ctx, func() {
		turn, acceptErr = e.accept(text, explanation, confirmation)
	})
	if err != nil {
		if errors.Is(err, sched.ErrUnavailable) {
			return models.Turn{}, fmt.Errorf("%w: %w", ErrScheduling, err)
		}
		return models.Turn{}, err
	}
	return turn, acceptErr
}

func (e *Engine) accept(request, explanation, confirmation string) (models.Turn, error) {
	if e.closed {
		return models.Turn{}, ErrClosed
	}

	first, err := e.group.After(e.cfg.ReplyDelay, func() {
		e.appendTurn(models.RoleAssistant, models.TurnKindExplanation, explanation)
	})
	if err != nil {
		return models.Turn{}, fmt.Errorf("%w: %w", ErrScheduling, err)
	}
	_, err = e.group.After(e.cfg.ReplyDelay+e.cfg.ConfirmDelay, func() {
		e.confirm(request, confirmation)
	})
	if err != nil {
		e.group.Cancel(first)
		return models.Turn{}, fmt.Errorf("%w: %w", ErrScheduling, err)
	}

	return e.appendTurn(models.RoleUser, models.TurnKindRequest, request), nil
}

func (e *Engine) confirm(request, text string) {
	turn := e.appendTurn(models.RoleAssistant, models.TurnKindConfirmation, text)

	now := e.clock.Now()
	n := models.Notification{
		ID:           uuid.New(),
		SessionID:    e.sessionID,
		TurnSequence: turn.Sequence,
		Channel:      NotificationChannel,
		Request:      request,
		Window:       e.cfg.NotifyWindow,
		WindowMins:   int(e.cfg.NotifyWindow / time.Minute),
		DueBy:        now.Add(e.cfg.NotifyWindow),
		CreatedAt:    now,
	}

	slog.Info("permission requested",
		"session_id", e.sessionID,
		"notification_id", n.ID,
		"turn_sequence", n.TurnSequence,
	)
	e.publish(models.Event{Type: models.EventPermissionRequested, Turn: &turn, Notification: &n})
}

func (e *Engine) appendTurn(role models.Role, kind, text string) models.Turn {
	turn := models.Turn{
		SessionID: e.sessionID,
		Sequence:  e.nextSeq,
		Role:      role,
		Kind:      kind,
		Text:      text,
		CreatedAt: e.clock.Now(),
	}
	e.nextSeq++
	e.turns = append(e.turns, turn)

	e.publish(models.Event{Type: models.EventTurnAppended, Turn: &turn})
	return turn
}

// State is advisory: submissions are accepted while replies are pending.
func (e *Engine) State() string {
	if e.group.Pending() > 0 {
		return models.ConversationProcessing
	}
	return models.ConversationAwaitingInput
}

// Transcript returns a copy of the turns in sequence order.
func (e *Engine) Transcript() []models.Turn {
	out := make([]models.Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

// Pending returns the number of replies not yet delivered.
func (e *Engine) Pending() int {
	return e.group.Pending()
}

// Close drops every pending reply; no partial reply is ever delivered afterwards.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	dropped := e.group.CancelAll()

	slog.Debug("conversation closed", "session_id", e.sessionID, "dropped_replies", dropped)
	e.publish(models.Event{Type: models.EventConversationClosed})
}

func (e *Engine) publish(ev models.Event) {
	if e.events == nil {
		return
	}
	ev.At = e.clock.Now()
	e.events.Publish(ev)
}

// ConfirmationText is the confirmation turn promising an out-of-band notification
// within window.
func ConfirmationText(window time.Duration) string {
	return "This new action will be enabled for you. An email will confirm this action and should hit your inbox in " +
		formatWindow(window) + ". Click on it to authorize your new permissions."
}

func formatWindow(d time.Duration) string {
	if d%time.Minute != 0 || d < time.Minute {
		return d.String()
	}
	if m := int(d / time.Minute); m != 1 {
		return fmt.Sprintf("%d mins", m)
	}
	return "1 min"
}
