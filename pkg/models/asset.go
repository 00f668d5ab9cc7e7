// Package models contains shared data models used across the RightsDesk codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// RightsStatus is the legal standing of an asset.
type RightsStatus string

const (
	RightsUnknown       RightsStatus = "unknown"
	RightsLicensed      RightsStatus = "licensed"
	RightsOwned         RightsStatus = "owned"
	RightsPendingReview RightsStatus = "pending_review"
)

// Risk is the exposure level derived from rights status and licence terms.
type Risk string

const (
	RiskUnset  Risk = ""
	RiskNone   Risk = "none"
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// AssetIntake is what the file-selection collaborator hands to the pipeline.
// A zero AssetID asks for a brand new asset.
type AssetIntake struct {
	AssetID  uuid.UUID `json:"asset_id,omitempty"`
	Filename string    `json:"filename"`
	Artist   string    `json:"artist"`
	Duration string    `json:"duration"`
	MimeHint string    `json:"mime_hint,omitempty"`
}

// Classification is the RightsClassifier output attached to an asset on run completion.
type Classification struct {
	RightsStatus RightsStatus `json:"rights_status"`
	LicenseType  string       `json:"license_type"`
	Usage        string       `json:"usage"`
	ExpiryDate   *time.Time   `json:"expiry_date,omitempty"`
	Risk         Risk         `json:"risk"`
	Source       string       `json:"source"`
}

// Asset is a media file plus its rights classification. Descriptive fields are fixed at
// intake; the rights fields are written exactly once, when analysis completes.
type Asset struct {
	ID           uuid.UUID    `db:"id"            json:"id"`
	SessionID    uuid.UUID    `db:"session_id"    json:"session_id"`
	Filename     string       `db:"filename"      json:"filename"`
	Artist       string       `db:"artist"        json:"artist"`
	Duration     string       `db:"duration"      json:"duration"`
	MimeHint     string       `db:"mime_hint"     json:"mime_hint,omitempty"`
	RightsStatus RightsStatus `db:"rights_status" json:"rights_status"`
	LicenseType  string       `db:"license_type"  json:"license_type,omitempty"`
	Usage        string       `db:"usage"         json:"usage,omitempty"`
	ExpiryDate   *time.Time   `db:"expiry_date"   json:"expiry_date,omitempty"`
	Risk         Risk         `db:"risk"          json:"risk,omitempty"`
	Supersedes   *uuid.UUID   `db:"supersedes"    json:"supersedes,omitempty"`
	Seeded       bool         `db:"seeded"        json:"seeded"`
	ClassifiedAt *time.Time   `db:"classified_at" json:"classified_at,omitempty"`
	CreatedAt    time.Time    `db:"created_at"    json:"created_at"`
}

// NewAsset builds an unclassified asset from an intake.
func NewAsset(sessionID uuid.UUID, in AssetIntake, now time.Time) Asset {
	return Asset{
		ID:           uuid.New(),
		SessionID:    sessionID,
		Filename:     in.Filename,
		Artist:       in.Artist,
		Duration:     in.Duration,
		MimeHint:     in.MimeHint,
		RightsStatus: RightsUnknown,
		CreatedAt:    now,
	}
}

// Classified reports whether the rights fields have been set.
func (a Asset) Classified() bool {
	return a.ClassifiedAt != nil
}

// Intake returns the descriptive part of the asset.
func (a Asset) Intake() AssetIntake {
	return AssetIntake{
		AssetID:  a.ID,
		Filename: a.Filename,
		Artist:   a.Artist,
		Duration: a.Duration,
		MimeHint: a.MimeHint,
	}
}

// WithClassification returns a copy of a carrying c. A classified asset is returned unchanged.
func (a Asset) WithClassification(c Classification, at time.Time) Asset {
	if a.Classified() {
		return a
	}
	a.RightsStatus = c.RightsStatus
	a.LicenseType = c.LicenseType
	a.Usage = c.Usage
	a.Risk = c.Risk
	if c.ExpiryDate != nil {
		exp := *c.ExpiryDate
		a.ExpiryDate = &exp
	}
	a.ClassifiedAt = &at
	return a
}
