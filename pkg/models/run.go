package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusCancelled = "cancelled"
)

// Run tracks one pass of the analysis pipeline over a single asset.
// Progress only grows, and reaches exactly 100 once, on completion.
type Run struct {
	ID             uuid.UUID       `db:"id"              json:"id"`
	SessionID      uuid.UUID       `db:"session_id"      json:"session_id"`
	AssetID        uuid.UUID       `db:"asset_id"        json:"asset_id"`
	Status         string          `db:"status"          json:"status"`
	Progress       int             `db:"progress"        json:"progress"`
	Classification *Classification `db:"-"               json:"classification,omitempty"`
	StartedAt      time.Time       `db:"started_at"      json:"started_at"`
	FinishedAt     *time.Time      `db:"finished_at"     json:"finished_at,omitempty"`
}

// Terminal reports whether the run has stopped producing events.
func (r Run) Terminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusCancelled
}

// Cancelled reports whether the run was halted before completion.
func (r Run) Cancelled() bool {
	return r.Status == RunStatusCancelled
}
