// README: Redis-backed assignment feed: the set of available riders and the
// ZSET of claimable orders the rider app polls.
package assignment

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"medrush/internal/types"
)

const (
	availableRidersKey = "assignment:riders:available"
	readyOrdersKey     = "assignment:orders:ready"
)

type RedisFeed struct {
	redis *redis.Client
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{redis: client}
}

func (f *RedisFeed) SetAvailable(ctx context.Context, riderID types.ID, available bool) error {
	if available {
		return f.redis.SAdd(ctx, availableRidersKey, string(riderID)).Err()
	}
	return f.redis.SRem(ctx, availableRidersKey, string(riderID)).Err()
}

func (f *RedisFeed) AvailableRiders(ctx context.Context) ([]types.ID, error) {
	members, err := f.redis.SMembers(ctx, availableRidersKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids, nil
}

func (f *RedisFeed) AddReady(ctx context.Context, orderID types.ID, readyAt time.Time) error {
	return f.redis.ZAdd(ctx, readyOrdersKey, redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: string(orderID),
	}).Err()
}

func (f *RedisFeed) RemoveReady(ctx context.Context, orderID types.ID) error {
	return f.redis.ZRem(ctx, readyOrdersKey, string(orderID)).Err()
}

// ReadyIDs returns claimable order ids, oldest ready first.
func (f *RedisFeed) ReadyIDs(ctx context.Context) ([]types.ID, error) {
	members, err := f.redis.ZRange(ctx, readyOrdersKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids, nil
}
