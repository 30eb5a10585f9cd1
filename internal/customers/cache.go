package customers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// BalanceCache keeps each customer's latest remaining balance in Redis so
// listings and lookups skip the lateral join. Entries are invalidated by
// the ledger-changed job; a nil cache disables caching entirely.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache instantiates the cache helper.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

func balanceKey(customerID int64) string {
	return fmt.Sprintf("customers:%d:balance", customerID)
}

// Get returns the cached balance and whether the lookup was a hit. Cache
// errors degrade to a miss.
func (c *BalanceCache) Get(ctx context.Context, customerID int64) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	raw, err := c.client.Get(ctx, balanceKey(customerID)).Result()
	if err != nil {
		return 0, false
	}
	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return balance, true
}

// Set stores a balance with the configured TTL.
func (c *BalanceCache) Set(ctx context.Context, customerID, balance int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, balanceKey(customerID), strconv.FormatInt(balance, 10), c.ttl).Err()
}

// Invalidate drops the cached balance after a ledger mutation.
func (c *BalanceCache) Invalidate(ctx context.Context, customerID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, balanceKey(customerID)).Err()
}
