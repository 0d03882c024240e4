package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"syntra-floor/internal/coordinator"
)

const (
	ChannelPrefix = "floor:events:"
	ChannelAll    = "floor:events:all"
)

// RedisPublisher publishes every event on its type channel and on the
// catch-all channel.
type RedisPublisher struct {
	redis redis.UniversalClient
}

func NewRedisPublisher(rdb redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{redis: rdb}
}

func Channel(t coordinator.EventType) string {
	return ChannelPrefix + string(t)
}

func (p *RedisPublisher) Notify(ctx context.Context, e coordinator.Event) error {
	eventJSON, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.redis.Publish(ctx, Channel(e.Type), eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if err := p.redis.Publish(ctx, ChannelAll, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish to all channel: %w", err)
	}

	return nil
}

// Subscribe streams decoded events from the catch-all channel until ctx is
// done. Undecodable payloads are skipped.
func Subscribe(ctx context.Context, rdb redis.UniversalClient) (<-chan coordinator.Event, error) {
	sub := rdb.Subscribe(ctx, ChannelAll)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan coordinator.Event)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e coordinator.Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
