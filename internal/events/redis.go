package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// DefaultChannel is the Redis Pub/Sub channel used when none is configured.
const DefaultChannel = "tradingcore:settlements"

// Redis publishes settlements as JSON on a Pub/Sub channel.
type Redis struct {
	rdb     *redis.Client
	channel string
}

// NewRedis creates a Redis publisher. An empty channel selects
// DefaultChannel.
func NewRedis(rdb *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{rdb: rdb, channel: channel}
}

// Name implements Publisher.
func (r *Redis) Name() string { return "redis" }

// PublishSettlement implements Publisher.
func (r *Redis) PublishSettlement(ctx context.Context, shareID string, trades []domain.ShareTransaction) error {
	payload, err := encode(shareID, trades)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", r.channel, err)
	}
	return nil
}

var _ Publisher = (*Redis)(nil)
