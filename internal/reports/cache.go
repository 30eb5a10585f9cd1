package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const versionKey = "reports:version"

// Cache stores rendered summaries under a version-prefixed key. Ledger
// mutations bump the version instead of deleting keys, so stale
// summaries simply age out at their TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(ctx context.Context, req Request) (string, error) {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("reports:v%d:%s:%s",
		version,
		req.StartDate.Format("2006-01-02"),
		req.EndDate.Format("2006-01-02"),
	), nil
}

// Get returns a cached summary for the request, or ok=false on any
// miss or redis error. A broken cache never blocks reporting.
func (c *Cache) Get(ctx context.Context, req Request) (Summary, bool) {
	if c == nil || c.client == nil {
		return Summary{}, false
	}
	key, err := c.key(ctx, req)
	if err != nil {
		return Summary{}, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return Summary{}, false
	}
	var summary Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return Summary{}, false
	}
	return summary, true
}

// Set stores a summary under the current version.
func (c *Cache) Set(ctx context.Context, req Request, summary Summary) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, req)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Bump invalidates every cached summary by rolling the version forward.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey).Err()
}
