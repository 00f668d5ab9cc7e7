package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Sessions ---

func (s *PostgresStore) CreateSession(ctx context.Context, sess *models.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, created_at, closed_at) VALUES ($1, $2, $3)`,
		sess.ID, sess.CreatedAt, sess.ClosedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create session: %w", ErrDuplicateKey)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var sess models.Session
	err := s.pool.QueryRow(ctx,
		`SELECT id, created_at, closed_at FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.CreatedAt, &sess.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// CloseSession records the first close time; closing twice keeps the original time.
func (s *PostgresStore) CloseSession(ctx context.Context, id uuid.UUID, closedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET closed_at = COALESCE(closed_at, $2) WHERE id = $1`, id, closedAt)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Assets ---

// UpsertAsset inserts an asset, or updates it while it is still unclassified.
// A classified row is never modified.
func (s *PostgresStore) UpsertAsset(ctx context.Context, a *models.Asset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO assets (id, session_id, filename, artist, duration, mime_hint, rights_status, license_type,
		                     usage, expiry_date, risk, supersedes, seeded, classified_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (id) DO UPDATE SET
		   rights_status = EXCLUDED.rights_status,
		   license_type  = EXCLUDED.license_type,
		   usage         = EXCLUDED.usage,
		   expiry_date   = EXCLUDED.expiry_date,
		   risk          = EXCLUDED.risk,
		   classified_at = EXCLUDED.classified_at
		 WHERE assets.classified_at IS NULL`,
		a.ID, a.SessionID, a.Filename, a.Artist, a.Duration, a.MimeHint, string(a.RightsStatus), a.LicenseType,
		a.Usage, a.ExpiryDate, string(a.Risk), a.Supersedes, a.Seeded, a.ClassifiedAt, a.CreatedAt)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("upsert asset: session %s: %w", a.SessionID, ErrNotFound)
		}
		return fmt.Errorf("upsert asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAssets(ctx context.Context, sessionID uuid.UUID) ([]*models.Asset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, filename, artist, duration, mime_hint, rights_status, license_type,
		        usage, expiry_date, risk, supersedes, seeded, classified_at, created_at
		 FROM assets WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		var (
			a      models.Asset
			status string
			risk   string
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Filename, &a.Artist, &a.Duration, &a.MimeHint, &status,
			&a.LicenseType, &a.Usage, &a.ExpiryDate, &risk, &a.Supersedes, &a.Seeded, &a.ClassifiedAt,
			&a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		a.RightsStatus = models.RightsStatus(status)
		a.Risk = models.Risk(risk)
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

// --- Analysis runs ---

// UpsertRun records a run snapshot. Progress never decreases and a terminal status,
// classification or finish time, once stored, is kept.
func (s *PostgresStore) UpsertRun(ctx context.Context, r *models.Run) error {
	var classification any
	if r.Classification != nil {
		b, err := json.Marshal(r.Classification)
		if err != nil {
			return fmt.Errorf("upsert run: marshal classification: %w", err)
		}
		classification = b
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_runs (id, session_id, asset_id, status, progress, classification, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   progress       = GREATEST(analysis_runs.progress, EXCLUDED.progress),
		   status         = CASE WHEN analysis_runs.status = 'running' THEN EXCLUDED.status ELSE analysis_runs.status END,
		   classification = COALESCE(analysis_runs.classification, EXCLUDED.classification),
		   finished_at    = COALESCE(analysis_runs.finished_at, EXCLUDED.finished_at)`,
		r.ID, r.SessionID, r.AssetID, r.Status, r.Progress, classification, r.StartedAt, r.FinishedAt)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("upsert run: asset %s: %w", r.AssetID, ErrNotFound)
		}
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	var (
		r              models.Run
		classification []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, asset_id, status, progress, classification, started_at, finished_at
		 FROM analysis_runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.SessionID, &r.AssetID, &r.Status, &r.Progress, &classification, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if len(classification) > 0 {
		var c models.Classification
		if err := json.Unmarshal(classification, &c); err != nil {
			return nil, fmt.Errorf("get run: unmarshal classification: %w", err)
		}
		r.Classification = &c
	}
	return &r, nil
}

// --- Conversation turns ---

func (s *PostgresStore) AppendTurn(ctx context.Context, t *models.Turn) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_turns (session_id, sequence, role, kind, text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.SessionID, t.Sequence, string(t.Role), t.Kind, t.Text, t.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("append turn %d: %w", t.Sequence, ErrDuplicateKey)
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("append turn: session %s: %w", t.SessionID, ErrNotFound)
		}
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTurns(ctx context.Context, sessionID uuid.UUID) ([]*models.Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, sequence, role, kind, text, created_at
		 FROM conversation_turns WHERE session_id = $1 ORDER BY sequence`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []*models.Turn
	for rows.Next() {
		var (
			t    models.Turn
			role string
		)
		if err := rows.Scan(&t.SessionID, &t.Sequence, &role, &t.Kind, &t.Text, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Role = models.Role(role)
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

// --- Notifications ---

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, session_id, turn_sequence, channel, request, window_seconds, due_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.SessionID, n.TurnSequence, n.Channel, n.Request, int64(n.Window/time.Second), n.DueBy, n.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create notification: %w", ErrDuplicateKey)
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("create notification: session %s: %w", n.SessionID, ErrNotFound)
		}
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, sessionID uuid.UUID) ([]*models.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, turn_sequence, channel, request, window_seconds, due_by, created_at
		 FROM notifications WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var (
			n    models.Notification
			secs int64
		)
		if err := rows.Scan(&n.ID, &n.SessionID, &n.TurnSequence, &n.Channel, &n.Request, &secs,
			&n.DueBy, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Window = time.Duration(secs) * time.Second
		n.WindowMins = int(n.Window / time.Minute)
		out = append(out, &n)
	}
	return out, rows.Err()
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" // foreign_key_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
