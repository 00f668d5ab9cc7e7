package assistant_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/rightsdesk/internal/assistant"
	"github.com/kiranshivaraju/rightsdesk/internal/catalog"
	"github.com/kiranshivaraju/rightsdesk/internal/config"
)

func templateResponder(t *testing.T) assistant.Responder {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	r, err := assistant.NewResponder(config.AssistantConfig{Provider: "template"}, cat)
	require.NoError(t, err)
	return r
}

func TestTemplateResponder_ExamplePrompts(t *testing.T) {
	r := templateResponder(t)
	assert.Equal(t, "template", r.Name())

	tests := []struct {
		prompt string
		app    string
	}{
		{"Create an app that analyzes music files and determines licensing rights", "Digital Asset Rights Manager"},
		{"Build a workflow that extracts data from emails and puts it into a spreadsheet", "Content Intelligence Suite"},
		{"Make an app that monitors social media mentions and generates reports", "Workflow Orchestrator"},
	}
	for _, tt := range tests {
		t.Run(tt.app, func(t *testing.T) {
			reply, err := r.Reply(context.Background(), tt.prompt)
			require.NoError(t, err)
			assert.Contains(t, reply, "I'll create a "+tt.app+" app for you.")
			assert.Contains(t, reply, "Would you like me to build this app now?")
		})
	}
}

func TestTemplateResponder_MusicPromptMatchesReferenceReply(t *testing.T) {
	r := templateResponder(t)

	reply, err := r.Reply(context.Background(), "Create an app that analyzes music files and determines licensing rights")
	require.NoError(t, err)
	assert.Equal(t, assistant.DefaultReply, reply)
}

func TestTemplateResponder_NoMatchUsesDefault(t *testing.T) {
	r := templateResponder(t)

	reply, err := r.Reply(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, assistant.DefaultReply, reply)
}

func TestTemplateResponder_Deterministic(t *testing.T) {
	r := templateResponder(t)

	a, err := r.Reply(context.Background(), "automate my invoice workflow")
	require.NoError(t, err)
	b, err := r.Reply(context.Background(), "automate my invoice workflow")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTemplateResponder_CancelledContext(t *testing.T) {
	r := templateResponder(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Reply(ctx, "music")
	assert.ErrorIs(t, err, context.Canceled)
}
