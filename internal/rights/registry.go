package rights

import (
	"regexp"
	"strings"
	"time"

	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

// Record is what a rights registry knows about an asset.
type Record struct {
	Status      models.RightsStatus
	LicenseType string
	Usage       string
	Expiry      *time.Time
	Source      string
}

// Registry is the rights-registry lookup contract. Found=false means the registry has
// no opinion on the asset.
type Registry interface {
	Lookup(in models.AssetIntake) (Record, bool, error)
}

// Rule fields.
const (
	MatchAny      = "any"
	MatchFilename = "filename"
	MatchArtist   = "artist"
)

// Rule assigns a record to assets whose normalized filename or artist contains one of
// the keywords.
type Rule struct {
	Name     string
	Match    string
	Keywords []string
	Record   Record
}

var (
	reSeparators = regexp.MustCompile(`[_\-.]+`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// RuleRegistry answers lookups from exact filename entries first, then from ordered
// keyword rules. It is read-only after construction and safe for concurrent use.
type RuleRegistry struct {
	exact map[string]Record
	rules []Rule
}

// NewRuleRegistry builds a registry. Exact keys are matched case-insensitively.
func NewRuleRegistry(exact map[string]Record, rules []Rule) *RuleRegistry {
	r := &RuleRegistry{
		exact: make(map[string]Record, len(exact)),
		rules: make([]Rule, 0, len(rules)),
	}
	for name, rec := range exact {
		r.exact[strings.ToLower(strings.TrimSpace(name))] = rec
	}
	for _, rule := range rules {
		kws := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			if n := Normalize(kw); n != "" {
				kws = append(kws, n)
			}
		}
		rule.Keywords = kws
		if rule.Match == "" {
			rule.Match = MatchAny
		}
		r.rules = append(r.rules, rule)
	}
	return r
}

func (r *RuleRegistry) Lookup(in models.AssetIntake) (Record, bool, error) {
	if rec, ok := r.exact[strings.ToLower(strings.TrimSpace(in.Filename))]; ok {
		return rec, true, nil
	}

	filename := Normalize(in.Filename)
	artist := Normalize(in.Artist)
	for _, rule := range r.rules {
		if rule.matches(filename, artist) {
			rec := rule.Record
			if rec.Source == "" {
				rec.Source = "rule:" + rule.Name
			}
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

func (rule Rule) matches(filename, artist string) bool {
	for _, kw := range rule.Keywords {
		switch rule.Match {
		case MatchFilename:
			if strings.Contains(filename, kw) {
				return true
			}
		case MatchArtist:
			if strings.Contains(artist, kw) {
				return true
			}
		default:
			if strings.Contains(filename, kw) || strings.Contains(artist, kw) {
				return true
			}
		}
	}
	return false
}

// Normalize lowercases s and folds separators (_ - .) and runs of whitespace into single spaces.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = reSeparators.ReplaceAllString(s, " ")
	s = reWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
