package ports

import "context"

// Bus is the narrow subset of message-bus operations the Quotes Service
// and Quotes Client need: a durable inbound queue and per-request reply
// slots with a TTL. A single Redis instance backs one Bus in production;
// see internal/bus for the concrete adapter.
type Bus interface {
	// PushInbound enqueues a serialized request payload.
	PushInbound(ctx context.Context, queue string, payload []byte) error

	// PopInbound blocks until a payload is available or ctx is done.
	PopInbound(ctx context.Context, queue string) ([]byte, error)

	// PushReply writes payload to the per-request reply slot and sets its
	// TTL.
	PushReply(ctx context.Context, slot string, payload []byte, ttlSeconds int) error

	// PopReply blocks (bounded by ctx) for a reply on slot.
	PopReply(ctx context.Context, slot string) ([]byte, error)

	// ClearMatching removes all keys matching pattern; used at Quotes
	// Service startup to implement the at-most-once restart policy.
	ClearMatching(ctx context.Context, pattern string) error
}
