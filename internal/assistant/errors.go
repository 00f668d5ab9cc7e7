package assistant

import "errors"

var (
	ErrResponderUnavailable = errors.New("assistant responder unavailable")
	ErrReplyTimeout         = errors.New("assistant reply timeout")
	ErrEmptyReply           = errors.New("assistant returned an empty reply")
)
