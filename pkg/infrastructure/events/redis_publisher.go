package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisClient is the subset of redis.UniversalClient used for publishing
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher forwards events as JSON messages on a Redis pub/sub channel
type RedisPublisher struct {
	client  redisClient
	channel string
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher for the given client and channel
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// DialRedis opens a client for addr and verifies it answers
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(BaseEvent{
		EventID:      event.ID(),
		EventType:    event.Type(),
		Stream:       event.StreamID(),
		EventData:    event.Data(),
		EventTime:    event.Timestamp(),
		EventVersion: event.Version(),
	})
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.Type(), err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event %s to %s: %w", event.Type(), p.channel, err)
	}
	return nil
}
