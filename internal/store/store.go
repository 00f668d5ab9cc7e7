package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
// The store archives session activity. Nothing is read back into a live session; the
// read methods serve closed sessions through the API's archive fallbacks.
type Store interface {
	Ping(ctx context.Context) error

	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	CloseSession(ctx context.Context, id uuid.UUID, closedAt time.Time) error

	UpsertAsset(ctx context.Context, a *models.Asset) error
	ListAssets(ctx context.Context, sessionID uuid.UUID) ([]*models.Asset, error)

	UpsertRun(ctx context.Context, r *models.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)

	AppendTurn(ctx context.Context, t *models.Turn) error
	ListTurns(ctx context.Context, sessionID uuid.UUID) ([]*models.Turn, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, sessionID uuid.UUID) ([]*models.Notification, error)
}
