// internal/service/access/cache.go
package access

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const entitlementTTL = 5 * time.Minute

// RedisEntitlementCache caches organization-level entitlement decisions in
// Redis. It also serves the lifecycle engine's invalidation port: every
// persisted transition clears the organization's cached entries.
type RedisEntitlementCache struct {
	client *redis.Client
}

func NewRedisEntitlementCache(client *redis.Client) *RedisEntitlementCache {
	return &RedisEntitlementCache{client: client}
}

func entitlementKey(orgID, moduleID int64) string {
	return fmt.Sprintf("entitlement:org:%d:module:%d", orgID, moduleID)
}

// Get returns the cached decision; any cache failure is a miss.
func (c *RedisEntitlementCache) Get(ctx context.Context, orgID, moduleID int64) (Entitlement, bool) {
	var ent Entitlement

	raw, err := c.client.Get(ctx, entitlementKey(orgID, moduleID)).Bytes()
	if err != nil {
		return ent, false
	}
	if err := json.Unmarshal(raw, &ent); err != nil {
		return ent, false
	}
	return ent, true
}

// Set stores the decision with a TTL; failures are silently dropped, the
// next read falls through to the store.
func (c *RedisEntitlementCache) Set(ctx context.Context, orgID, moduleID int64, ent Entitlement) {
	raw, err := json.Marshal(ent)
	if err != nil {
		return
	}
	c.client.Set(ctx, entitlementKey(orgID, moduleID), raw, entitlementTTL)
}

// InvalidateOrganization deletes every cached entitlement of the
// organization.
func (c *RedisEntitlementCache) InvalidateOrganization(ctx context.Context, orgID int64) error {
	pattern := fmt.Sprintf("entitlement:org:%d:module:*", orgID)

	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan entitlement keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete entitlement keys: %w", err)
	}
	return nil
}
