package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FloorChannel receives every event; per-tab channels receive only their own.
const FloorChannel = "floor"

// TabChannel is the pub/sub channel for one tab.
func TabChannel(tabID uuid.UUID) string { return "tab:" + tabID.String() }

// RedisPublisher is the subset of redis.UniversalClient the sink uses.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes events on Redis pub/sub channels.
type RedisSink struct {
	client RedisPublisher
}

func NewRedisSink(client RedisPublisher) *RedisSink {
	return &RedisSink{client: client}
}

// Publish sends e to the floor channel and, when it belongs to a tab, to the
// tab's channel.
func (s *RedisSink) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	channels := []string{FloorChannel}
	if e.TabID != uuid.Nil {
		channels = append(channels, TabChannel(e.TabID))
	}
	for _, ch := range channels {
		if err := s.client.Publish(ctx, ch, body).Err(); err != nil {
			return fmt.Errorf("redis publish %s: %w", ch, err)
		}
	}
	return nil
}
