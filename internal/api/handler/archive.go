package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rightsdesk/internal/store"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

// SessionArchive serves what was recorded for sessions that are no longer live.
type SessionArchive interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListAssets(ctx context.Context, sessionID uuid.UUID) ([]*models.Asset, error)
	ListTurns(ctx context.Context, sessionID uuid.UUID) ([]*models.Turn, error)
	ListNotifications(ctx context.Context, sessionID uuid.UUID) ([]*models.Notification, error)
}

var _ SessionArchive = (store.Store)(nil)

// ArchivedTranscript is the recorded conversation of a closed session.
type ArchivedTranscript struct {
	State         string                `json:"state"`
	Turns         []models.Turn         `json:"turns"`
	Pending       int                   `json:"pending"`
	Notifications []models.Notification `json:"notifications"`
	ClosedAt      *time.Time            `json:"closed_at,omitempty"`
}

// archivedSession reports whether a holds a record of sessionID. A nil archive holds
// nothing; lookup failures other than not-found are logged and treated as a miss.
func archivedSession(ctx context.Context, a SessionArchive, sessionID uuid.UUID) (*models.Session, bool) {
	if a == nil {
		return nil, false
	}
	sess, err := a.GetSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "session archive lookup failed", "session_id", sessionID, "error", err)
		}
		return nil, false
	}
	return sess, true
}

func archivedTranscript(ctx context.Context, a SessionArchive, sess *models.Session) (*ArchivedTranscript, error) {
	turns, err := a.ListTurns(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	notes, err := a.ListNotifications(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	return &ArchivedTranscript{
		State:         models.ConversationClosed,
		Turns:         values(turns),
		Notifications: values(notes),
		ClosedAt:      sess.ClosedAt,
	}, nil
}

func values[T any](ptrs []*T) []T {
	out := make([]T, 0, len(ptrs))
	for _, p := range ptrs {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}
