// Package bus wraps a single Redis client with the primitives the Quotes
// Service, Task Store, Results Publisher and Progress/Control Channel all
// share: blocking list-based queues, per-request reply slots with a TTL,
// pub/sub, and append-only streams.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Bus is the shared Redis handle. One Bus instance backs every message-bus
// surface the backtester uses — queues, reply slots, pub/sub, streams;
// callers never construct their own redis.Client.
type Bus struct {
	rdb *redis.Client
}

// New connects to addr (host:port) selecting db.
func New(addr, password string, db int) *Bus {
	return &Bus{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Close releases the underlying connection pool.
func (b *Bus) Close() error {
	return b.rdb.Close()
}

// PushInbound enqueues payload onto queue (a Redis list), implementing
// ports.Bus.
func (b *Bus) PushInbound(ctx context.Context, queue string, payload []byte) error {
	if err := b.rdb.LPush(ctx, queue, payload).Err(); err != nil {
		return fmt.Errorf("bus.PushInbound: %w", err)
	}
	return nil
}

// PopInbound blocks until a payload is available on queue or ctx is done.
func (b *Bus) PopInbound(ctx context.Context, queue string) ([]byte, error) {
	res, err := b.rdb.BRPop(ctx, 0, queue).Result()
	if err != nil {
		return nil, fmt.Errorf("bus.PopInbound: %w", err)
	}
	// BRPop returns [queue, value].
	return []byte(res[1]), nil
}

// PushReply writes payload to slot and sets its TTL, implementing
// ports.Bus.
func (b *Bus) PushReply(ctx context.Context, slot string, payload []byte, ttlSeconds int) error {
	pipe := b.rdb.TxPipeline()
	pipe.LPush(ctx, slot, payload)
	pipe.Expire(ctx, slot, time.Duration(ttlSeconds)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("bus.PushReply: %w", err)
	}
	return nil
}

// PopReply blocks (bounded by ctx) for a reply on slot.
func (b *Bus) PopReply(ctx context.Context, slot string) ([]byte, error) {
	res, err := b.rdb.BRPop(ctx, 0, slot).Result()
	if err != nil {
		return nil, fmt.Errorf("bus.PopReply: %w", err)
	}
	return []byte(res[1]), nil
}

// ClearMatching deletes every key matching pattern; used at Quotes Service
// startup to implement the at-most-once restart policy.
func (b *Bus) ClearMatching(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := b.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("bus.ClearMatching: scan: %w", err)
		}
		if len(keys) > 0 {
			if err := b.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("bus.ClearMatching: del: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

// Publish publishes payload on a pub/sub channel, backing both the
// Progress/Control Channel and the Task Store's send_message operation.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("bus.Publish: %w", err)
	}
	return nil
}

// Incr atomically increments key and returns the new value, backing the
// Task Store's monotonic id counter.
func (b *Bus) Incr(ctx context.Context, key string) (int64, error) {
	v, err := b.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("bus.Incr: %w", err)
	}
	return v, nil
}

// Get returns the string stored at key ("", false if absent).
func (b *Bus) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := b.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("bus.Get: %w", err)
	}
	return v, true, nil
}

// Set writes key unconditionally.
func (b *Bus) Set(ctx context.Context, key, value string) error {
	if err := b.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("bus.Set: %w", err)
	}
	return nil
}

// SetNX writes key only if absent.
func (b *Bus) SetNX(ctx context.Context, key, value string) (bool, error) {
	ok, err := b.rdb.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("bus.SetNX: %w", err)
	}
	return ok, nil
}

// Del removes keys.
func (b *Bus) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := b.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("bus.Del: %w", err)
	}
	return nil
}

// Keys enumerates keys matching pattern; used by the Task Store's List.
func (b *Bus) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := b.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("bus.Keys: %w", err)
	}
	return keys, nil
}

// XAdd appends an entry to stream and returns its assigned id.
func (b *Bus) XAdd(ctx context.Context, stream string, fields map[string]any) (string, error) {
	id, err := b.rdb.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: fields}).Result()
	if err != nil {
		return "", fmt.Errorf("bus.XAdd: %w", err)
	}
	return id, nil
}

// XRead reads stream entries strictly after lastID, blocking up to
// maxWait.
func (b *Bus) XRead(ctx context.Context, stream, lastID string, maxWait time.Duration) ([]redis.XMessage, error) {
	res, err := b.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Block:   maxWait,
		Count:   1000,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bus.XRead: %w", err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0].Messages, nil
}

// XTrimMinID trims stream so that no entries older than minID remain.
func (b *Bus) XTrimMinID(ctx context.Context, stream, minID string) error {
	if err := b.rdb.XTrimMinID(ctx, stream, minID).Err(); err != nil {
		return fmt.Errorf("bus.XTrimMinID: %w", err)
	}
	return nil
}

// Subscribe returns a subscription to channel; callers must Close it.
func (b *Bus) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return b.rdb.Subscribe(ctx, channel)
}
