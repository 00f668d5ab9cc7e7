package mock

import (
	"context"

	"github.com/kiranshivaraju/rightsdesk/internal/assistant"
)

// MockResponder satisfies assistant.Responder for testing.
type MockResponder struct {
	Name_     string
	ReplyFunc func(ctx context.Context, text string) (string, error)
	Calls     []string
}

func (m *MockResponder) Name() string { return m.Name_ }

func (m *MockResponder) Reply(ctx context.Context, text string) (string, error) {
	m.Calls = append(m.Calls, text)
	if m.ReplyFunc != nil {
		return m.ReplyFunc(ctx, text)
	}
	return "", nil
}

// NewMockResponder returns a MockResponder that echoes the request.
func NewMockResponder() *MockResponder {
	return &MockResponder{
		Name_: "mock",
		ReplyFunc: func(_ context.Context, text string) (string, error) {
			return "Mock reply to: " + text, nil
		},
	}
}

// NewFailingResponder returns a MockResponder that always returns the given error.
func NewFailingResponder(err error) *MockResponder {
	return &MockResponder{
		Name_: "mock-failing",
		ReplyFunc: func(_ context.Context, _ string) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutResponder returns a MockResponder that blocks until context is cancelled.
func NewTimeoutResponder() *MockResponder {
	return &MockResponder{
		Name_: "mock-timeout",
		ReplyFunc: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
}

// Compile-time check that MockResponder implements Responder.
var _ assistant.Responder = (*MockResponder)(nil)
