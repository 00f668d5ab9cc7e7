// Package rights implements the rights classifier: a total, deterministic mapping from
// asset intake metadata to a rights status, licence terms and a derived risk level.
package rights

import (
	"log/slog"
	"strings"
	"time"

	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

// Fallback values used whenever an asset cannot be classified.
const (
	FallbackLicenseType = "Unverified"
	FallbackUsage       = "Unassigned"
	SourceFallback      = "fallback"
)

// DefaultReviewWindow is how close to expiry a licence must be before it is flagged.
const DefaultReviewWindow = 30 * 24 * time.Hour

// Classifier resolves rights through a Registry and derives risk from the result.
type Classifier struct {
	registry     Registry
	reviewWindow time.Duration
	now          func() time.Time
}

// NewClassifier creates a Classifier. now supplies the reference instant for expiry
// checks; it is truncated to the day so classification is stable within a day.
func NewClassifier(reg Registry, reviewWindow time.Duration, now func() time.Time) *Classifier {
	if reviewWindow <= 0 {
		reviewWindow = DefaultReviewWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Classifier{registry: reg, reviewWindow: reviewWindow, now: now}
}

// Classify never fails: registry misses, registry errors, panics and malformed input
// all produce the PendingReview/Medium fallback.
func (c *Classifier) Classify(in models.AssetIntake) (result models.Classification) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("rights classification panicked, using fallback",
				"filename", in.Filename,
				"error", r,
			)
			result = Fallback()
		}
	}()

	if strings.TrimSpace(in.Filename) == "" || c.registry == nil {
		return Fallback()
	}

	rec, found, err := c.registry.Lookup(in)
	if err != nil {
		slog.Warn("rights registry lookup failed, using fallback",
			"filename", in.Filename,
			"error", err,
		)
		return Fallback()
	}
	if !found || rec.Status == "" || rec.Status == models.RightsUnknown {
		return Fallback()
	}

	asOf := c.now().UTC().Truncate(24 * time.Hour)

	cl := models.Classification{
		RightsStatus: rec.Status,
		LicenseType:  rec.LicenseType,
		Usage:        rec.Usage,
		Source:       rec.Source,
	}
	if rec.Status != models.RightsOwned && rec.Expiry != nil {
		exp := rec.Expiry.UTC()
		cl.ExpiryDate = &exp
	}
	cl.Risk = DeriveRisk(cl.RightsStatus, cl.ExpiryDate, asOf, c.reviewWindow)
	return cl
}

// Fallback is the classification for anything the registry cannot vouch for.
func Fallback() models.Classification {
	return models.Classification{
		RightsStatus: models.RightsPendingReview,
		LicenseType:  FallbackLicenseType,
		Usage:        FallbackUsage,
		Risk:         models.RiskMedium,
		Source:       SourceFallback,
	}
}

// DeriveRisk maps rights status and licence expiry to a risk level.
//
//	Owned                                   -> None
//	Licensed, no expiry or beyond window    -> Low
//	Licensed, expiring within window        -> Medium
//	Licensed, expired                       -> High
//	PendingReview                           -> High
//	anything else                           -> Medium
func DeriveRisk(status models.RightsStatus, expiry *time.Time, asOf time.Time, window time.Duration) models.Risk {
	switch status {
	case models.RightsOwned:
		return models.RiskNone
	case models.RightsLicensed:
		if expiry == nil {
			return models.RiskLow
		}
		if expiry.Before(asOf) {
			return models.RiskHigh
		}
		if !expiry.After(asOf.Add(window)) {
			return models.RiskMedium
		}
		return models.RiskLow
	case models.RightsPendingReview:
		return models.RiskHigh
	default:
		return models.RiskMedium
	}
}
