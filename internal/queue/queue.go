package queue

import "context"

const (
	// WorkQueue is the single notification processing queue.
	WorkQueue = "notifications"

	// DLQ collects messages rejected after repeated handler failures.
	DLQ = "dlq.notifications"
)

// Publisher publishes processing messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg ProcessingMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg ProcessingMessage) error

// Consumer consumes processing messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
