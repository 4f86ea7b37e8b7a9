// Package publish mirrors the live buffer and selection into Redis.
package publish

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/hervehildenbrand/attack-radar/pkg/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis keys
const (
	EventsKey   = "attack-radar:events"
	SelectedKey = "attack-radar:selected"
	StreamKey   = "attack-radar:stream"
)

const opTimeout = 2 * time.Second

// RedisPublisher writes session notifications to Redis. The events list
// holds the newest event first and is trimmed to the buffer capacity.
type RedisPublisher struct {
	client   *redis.Client
	capacity int
	logger   *zap.Logger

	published atomic.Uint64
	failures  atomic.Uint64
}

// Connect parses redisURL and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// NewRedisPublisher creates a publisher. A nil client makes every call a no-op.
func NewRedisPublisher(client *redis.Client, capacity int, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, capacity: capacity, logger: logger}
}

// Publish applies one notification to Redis. Failures are logged and counted.
func (p *RedisPublisher) Publish(ctx context.Context, n models.Notification) {
	if p == nil || p.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := p.apply(ctx, n); err != nil {
		failures := p.failures.Add(1)
		if failures <= 5 || failures%100 == 0 {
			p.logger.Warn("Redis publish failed",
				zap.String("kind", string(n.Kind)),
				zap.Uint64("failures", failures),
				zap.Error(err))
		}
		return
	}
	p.published.Add(1)
}

func (p *RedisPublisher) apply(ctx context.Context, n models.Notification) error {
	frame, err := json.Marshal(models.NotificationFrame(n))
	if err != nil {
		return err
	}

	switch n.Kind {
	case models.NotifyInserted:
		event, err := json.Marshal(models.NewEventView(n.Event))
		if err != nil {
			return err
		}
		_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LPush(ctx, EventsKey, event)
			pipe.LTrim(ctx, EventsKey, 0, int64(p.capacity-1))
			pipe.Publish(ctx, StreamKey, frame)
			return nil
		})
		return err

	case models.NotifySelected:
		event, err := json.Marshal(models.NewEventView(n.Event))
		if err != nil {
			return err
		}
		_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, SelectedKey, event, 0)
			pipe.Publish(ctx, StreamKey, frame)
			return nil
		})
		return err

	case models.NotifyCleared:
		_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, SelectedKey)
			pipe.Publish(ctx, StreamKey, frame)
			return nil
		})
		return err

	case models.NotifyReset:
		_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, SelectedKey, EventsKey)
			pipe.Publish(ctx, StreamKey, frame)
			return nil
		})
		return err
	}
	return nil
}

// Stats returns publisher statistics.
func (p *RedisPublisher) Stats() map[string]interface{} {
	return map[string]interface{}{
		"published": p.published.Load(),
		"failures":  p.failures.Load(),
	}
}

// Close closes the underlying client.
func (p *RedisPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
