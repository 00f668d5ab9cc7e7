// Package catalog holds the static marketplace data: recommended apps, example prompts,
// seed asset rows and the rights rules used by the rule registry.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rightsdesk/internal/rights"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

// App is one marketplace listing.
type App struct {
	Name         string   `yaml:"name"         json:"name"`
	Description  string   `yaml:"description"  json:"description"`
	Category     string   `yaml:"category"     json:"category"`
	Rating       float64  `yaml:"rating"       json:"rating"`
	Downloads    string   `yaml:"downloads"    json:"downloads"`
	Features     []string `yaml:"features"     json:"features"`
	Capabilities string   `yaml:"capabilities" json:"-"`
	Keywords     []string `yaml:"keywords"     json:"-"`
}

// SeedAsset is a row shown in every new asset library. Its rights terms double as the
// registry's exact-match record for the filename, so risk is always derived, never stored.
type SeedAsset struct {
	Filename     string `yaml:"filename"`
	Artist       string `yaml:"artist"`
	Duration     string `yaml:"duration"`
	RightsStatus string `yaml:"rights_status"`
	LicenseType  string `yaml:"license_type"`
	Expiry       string `yaml:"expiry"`
	Usage        string `yaml:"usage"`
}

type ruleDoc struct {
	Name         string   `yaml:"name"`
	Match        string   `yaml:"match"`
	Keywords     []string `yaml:"keywords"`
	RightsStatus string   `yaml:"rights_status"`
	LicenseType  string   `yaml:"license_type"`
	Usage        string   `yaml:"usage"`
	Expiry       string   `yaml:"expiry"`
}

type document struct {
	Apps       []App       `yaml:"apps"`
	Prompts    []string    `yaml:"prompts"`
	SeedAssets []SeedAsset `yaml:"seed_assets"`
	Rules      []ruleDoc   `yaml:"rights_rules"`
}

// Catalog is immutable after Load and safe for concurrent use.
type Catalog struct {
	doc   document
	exact map[string]rights.Record
	rules []rights.Rule
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{doc: doc, exact: make(map[string]rights.Record, len(doc.SeedAssets))}

	for i, app := range doc.Apps {
		if strings.TrimSpace(app.Name) == "" {
			return nil, fmt.Errorf("catalog app %d: name is required", i)
		}
	}

	for _, s := range doc.SeedAssets {
		status, err := parseStatus(s.RightsStatus)
		if err != nil {
			return nil, fmt.Errorf("seed asset %q: %w", s.Filename, err)
		}
		expiry, err := parseDate(s.Expiry)
		if err != nil {
			return nil, fmt.Errorf("seed asset %q: %w", s.Filename, err)
		}
		c.exact[s.Filename] = rights.Record{
			Status:      status,
			LicenseType: s.LicenseType,
			Usage:       s.Usage,
			Expiry:      expiry,
			Source:      "catalog:" + s.Filename,
		}
	}

	for _, r := range doc.Rules {
		status, err := parseStatus(r.RightsStatus)
		if err != nil {
			return nil, fmt.Errorf("rights rule %q: %w", r.Name, err)
		}
		switch r.Match {
		case "", rights.MatchAny, rights.MatchFilename, rights.MatchArtist:
		default:
			return nil, fmt.Errorf("rights rule %q: unknown match field %q", r.Name, r.Match)
		}
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("rights rule %q: at least one keyword is required", r.Name)
		}
		expiry, err := parseDate(r.Expiry)
		if err != nil {
			return nil, fmt.Errorf("rights rule %q: %w", r.Name, err)
		}
		c.rules = append(c.rules, rights.Rule{
			Name:     r.Name,
			Match:    r.Match,
			Keywords: r.Keywords,
			Record: rights.Record{
				Status:      status,
				LicenseType: r.LicenseType,
				Usage:       r.Usage,
				Expiry:      expiry,
			},
		})
	}

	return c, nil
}

// Apps returns every listing in catalog order.
func (c *Catalog) Apps() []App {
	out := make([]App, len(c.doc.Apps))
	copy(out, c.doc.Apps)
	return out
}

// Pinned returns the first n listings.
func (c *Catalog) Pinned(n int) []App {
	apps := c.Apps()
	if n < 0 {
		n = 0
	}
	if n < len(apps) {
		apps = apps[:n]
	}
	return apps
}

func (c *Catalog) Prompts() []string {
	out := make([]string, len(c.doc.Prompts))
	copy(out, c.doc.Prompts)
	return out
}

// Classifier assigns rights to an asset intake.
type Classifier interface {
	Classify(in models.AssetIntake) models.Classification
}

// SeedAssets materializes the seed rows as assets owned by sessionID, classified by cl
// so a seed row and a later submission of the same file agree. A nil cl classifies
// against the catalog registry with the default review window as of now.
func (c *Catalog) SeedAssets(sessionID uuid.UUID, now time.Time, cl Classifier) []models.Asset {
	if cl == nil {
		cl = rights.NewClassifier(c.Registry(), 0, func() time.Time { return now })
	}
	out := make([]models.Asset, 0, len(c.doc.SeedAssets))
	for _, s := range c.doc.SeedAssets {
		in := models.AssetIntake{
			Filename: s.Filename,
			Artist:   s.Artist,
			Duration: s.Duration,
		}
		a := models.NewAsset(sessionID, in, now)
		a.Seeded = true
		out = append(out, a.WithClassification(cl.Classify(in), now))
	}
	return out
}

// Rules returns the keyword rules in evaluation order.
func (c *Catalog) Rules() []rights.Rule {
	out := make([]rights.Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Registry builds the rights registry backed by the seed rows and the keyword rules.
func (c *Catalog) Registry() *rights.RuleRegistry {
	return rights.NewRuleRegistry(c.exact, c.rules)
}

func parseStatus(s string) (models.RightsStatus, error) {
	switch st := models.RightsStatus(s); st {
	case models.RightsLicensed, models.RightsOwned, models.RightsPendingReview:
		return st, nil
	default:
		return "", fmt.Errorf("invalid rights_status %q", s)
	}
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return &t, nil
}
