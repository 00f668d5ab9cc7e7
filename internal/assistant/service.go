package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxReplyBytes bounds the explanatory reply.
const MaxReplyBytes = 2000

// Service wraps a Responder with a timeout and a fallback so a reply is always produced.
type Service struct {
	responder Responder
	timeout   time.Duration
}

func NewService(r Responder, timeout time.Duration) *Service {
	return &Service{responder: r, timeout: timeout}
}

// Explain returns the responder's reply, or DefaultReply when the responder errors,
// panics, times out or returns nothing.
func (s *Service) Explain(ctx context.Context, text string) string {
	reply, err := s.reply(ctx, text)
	if err != nil {
		slog.Warn("assistant reply failed, using default reply",
			"provider", s.name(),
			"error", err,
		)
		return DefaultReply
	}
	return truncateString(reply, MaxReplyBytes)
}

func (s *Service) reply(ctx context.Context, text string) (reply string, err error) {
	if s.responder == nil {
		return "", ErrResponderUnavailable
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrResponderUnavailable, r)
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err = s.responder.Reply(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", ErrReplyTimeout, err)
		}
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

func (s *Service) name() string {
	if s.responder == nil {
		return ""
	}
	return s.responder.Name()
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
