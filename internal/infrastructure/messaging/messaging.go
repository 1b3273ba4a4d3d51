// Package messaging moves serialized action payloads to external topics.
package messaging

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("messaging: publisher closed")

// Publisher delivers a message body to a named topic. Implementations must be
// safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic string, body []byte) error
	Close() error
}

// Handler processes one consumed message body. A non-nil error rejects the
// message.
type Handler func(ctx context.Context, body []byte) error

// Consumer reads messages from a topic until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler Handler) error
}

// Noop discards every message. It is used when the external stream is disabled.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Publish(context.Context, string, []byte) error { return nil }

func (Noop) Close() error { return nil }
