package control

import (
	"context"
	"fmt"
)

// publisher is the subset of *bus.Bus a RedisChannel needs.
type publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisChannel implements ports.ControlChannel over the same per-task
// pub/sub channel the Task Store publishes MESSAGE envelopes on, so one
// subscription sees both envelope kinds.
type RedisChannel struct {
	r      publisher
	prefix string
}

// NewRedisChannel builds a RedisChannel using the given prefix, which must
// match the Task Store's own prefix for the two components to share a
// channel.
func NewRedisChannel(r publisher, prefix string) *RedisChannel {
	return &RedisChannel{r: r, prefix: prefix}
}

func (c *RedisChannel) channelKey(taskID int64) string {
	return fmt.Sprintf("%s:messages:%d", c.prefix, taskID)
}

// Publish implements ports.ControlChannel.
func (c *RedisChannel) Publish(ctx context.Context, taskID int64, envelope []byte) error {
	if err := c.r.Publish(ctx, c.channelKey(taskID), envelope); err != nil {
		return fmt.Errorf("control.RedisChannel: publish: %w", err)
	}
	return nil
}
