package rbac

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const decisionVersionKey = "authz:version"

// DecisionCache stores permission check outcomes per (user, permission key)
// in Redis under a global version. Invalidation bumps the version instead of
// enumerating keys, so a role reassignment or grant change disowns every
// cached decision at once. A nil cache is a valid no-op.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDecisionCache instantiates the cache helper.
func NewDecisionCache(client *redis.Client, ttl time.Duration) *DecisionCache {
	return &DecisionCache{client: client, ttl: ttl}
}

// Get returns the cached decision and whether it was present.
func (c *DecisionCache) Get(ctx context.Context, userID int64, permKey string) (allowed bool, ok bool) {
	if c == nil || c.client == nil {
		return false, false
	}
	key, err := c.buildKey(ctx, userID, permKey)
	if err != nil {
		return false, false
	}
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return false, false
	}
	return raw == "1", true
}

// Set stores the decision under the current version.
func (c *DecisionCache) Set(ctx context.Context, userID int64, permKey string, allowed bool) {
	if c == nil || c.client == nil {
		return
	}
	key, err := c.buildKey(ctx, userID, permKey)
	if err != nil {
		return
	}
	value := "0"
	if allowed {
		value = "1"
	}
	_ = c.client.Set(ctx, key, value, c.ttl).Err()
}

// Bump invalidates all cached decisions by incrementing the global version.
func (c *DecisionCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, decisionVersionKey).Err()
}

// Invalidate satisfies Invalidator so the cache can back the mutation
// services directly.
func (c *DecisionCache) Invalidate(ctx context.Context) error {
	return c.Bump(ctx)
}

var _ Invalidator = (*DecisionCache)(nil)

func (c *DecisionCache) buildKey(ctx context.Context, userID int64, permKey string) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("authz:%d:%s:%s", ver, strconv.FormatInt(userID, 10), permKey), nil
}

func (c *DecisionCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, decisionVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, decisionVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, decisionVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}
