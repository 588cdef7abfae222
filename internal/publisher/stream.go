package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/quantrail/internal/ports"
)

// streamOps is the subset of *bus.Bus a RedisStream needs.
type streamOps interface {
	XAdd(ctx context.Context, stream string, fields map[string]any) (string, error)
	XRead(ctx context.Context, stream, lastID string, maxWait time.Duration) ([]redis.XMessage, error)
	XTrimMinID(ctx context.Context, stream, minID string) error
}

// RedisStream implements ports.ResultStream over a Redis stream keyed by
// resultID, matching the original's XADD/XREAD/XTRIM shape.
type RedisStream struct {
	r       streamOps
	prefix  string
	maxWait time.Duration
}

// NewRedisStream builds a RedisStream keyed under prefix (e.g.
// "results"), blocking reads for up to maxWait.
func NewRedisStream(r streamOps, prefix string, maxWait time.Duration) *RedisStream {
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &RedisStream{r: r, prefix: prefix, maxWait: maxWait}
}

func (s *RedisStream) key(resultID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, resultID)
}

// Append implements ports.ResultStream.
func (s *RedisStream) Append(ctx context.Context, resultID, packetType string, data []byte) (string, error) {
	id, err := s.r.XAdd(ctx, s.key(resultID), map[string]any{"type": packetType, "data": string(data)})
	if err != nil {
		return "", fmt.Errorf("publisher.RedisStream: append: %w", err)
	}
	return id, nil
}

// Read implements ports.ResultStream.
func (s *RedisStream) Read(ctx context.Context, resultID, lastID string) ([]ports.StreamEntry, error) {
	if lastID == "" {
		lastID = "0-0"
	}
	msgs, err := s.r.XRead(ctx, s.key(resultID), lastID, s.maxWait)
	if err != nil {
		return nil, fmt.Errorf("publisher.RedisStream: read: %w", err)
	}
	entries := make([]ports.StreamEntry, 0, len(msgs))
	for _, m := range msgs {
		typ, _ := m.Values["type"].(string)
		data, _ := m.Values["data"].(string)
		entries = append(entries, ports.StreamEntry{ID: m.ID, Type: typ, Data: []byte(data)})
	}
	return entries, nil
}

// Trim implements ports.ResultStream.
func (s *RedisStream) Trim(ctx context.Context, resultID, keepAfterID string) error {
	if err := s.r.XTrimMinID(ctx, s.key(resultID), keepAfterID); err != nil {
		return fmt.Errorf("publisher.RedisStream: trim: %w", err)
	}
	return nil
}
