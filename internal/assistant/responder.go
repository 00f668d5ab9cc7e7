// Package assistant produces the explanatory reply for a chat request.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/rightsdesk/internal/catalog"
	"github.com/kiranshivaraju/rightsdesk/internal/rights"
)

// DefaultReply is the reference explanatory reply, used when no catalog app matches and
// whenever a responder fails.
const DefaultReply = "I'll create a Digital Asset Rights Manager app for you. " +
	"This app will analyze music files, determine licensing rights, track usage, and generate compliance reports. " +
	"Would you like me to build this app now?"

// Responder turns a user request into the explanatory reply.
type Responder interface {
	Name() string
	Reply(ctx context.Context, text string) (string, error)
}

// TemplateResponder picks the catalog app whose keywords best match the request and
// fills the reply template with its capabilities. It is deterministic.
type TemplateResponder struct {
	apps []catalog.App
}

func NewTemplateResponder(apps []catalog.App) *TemplateResponder {
	return &TemplateResponder{apps: apps}
}

func (r *TemplateResponder) Name() string { return "template" }

func (r *TemplateResponder) Reply(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	app, ok := r.match(text)
	if !ok {
		return DefaultReply, nil
	}
	return fmt.Sprintf("I'll create a %s app for you. This app will %s. Would you like me to build this app now?",
		app.Name, app.Capabilities), nil
}

// match scores each app by the number of distinct keywords found in the request.
// Ties go to the earlier app.
func (r *TemplateResponder) match(text string) (catalog.App, bool) {
	norm := rights.Normalize(text)
	best, bestScore := -1, 0
	for i, app := range r.apps {
		if app.Capabilities == "" {
			continue
		}
		score := 0
		for _, kw := range app.Keywords {
			if kw = rights.Normalize(kw); kw != "" && strings.Contains(norm, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return catalog.App{}, false
	}
	return r.apps[best], true
}

var _ Responder = (*TemplateResponder)(nil)
