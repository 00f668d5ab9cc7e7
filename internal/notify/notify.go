// Package notify hands permission-grant notifications to a delivery channel.
package notify

import (
	"context"
	"log/slog"

	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

// Notifier delivers a notification out of band.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// LogNotifier records notifications in the structured log instead of sending them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier writing to logger, or to slog.Default when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, note models.Notification) error {
	n.logger.InfoContext(ctx, "permission notification queued",
		"notification_id", note.ID,
		"session_id", note.SessionID,
		"channel", note.Channel,
		"turn_sequence", note.TurnSequence,
		"window_minutes", note.WindowMins,
		"due_by", note.DueBy,
	)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
