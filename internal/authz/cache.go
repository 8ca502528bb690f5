package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how stale a resolved permission snapshot may be.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores resolved permission snapshots per user. Implementations are
// injected so tests can supply a deterministic in-memory one.
type Cache interface {
	Get(ctx context.Context, userID int64) (EffectivePermissions, bool, error)
	Set(ctx context.Context, userID int64, perms EffectivePermissions) error
	// Invalidate drops one user's entry; InvalidateAll drops every entry.
	Invalidate(ctx context.Context, userID int64) error
	InvalidateAll(ctx context.Context) error
}

type cachedPermissions struct {
	Permissions []string `json:"permissions"`
	DataScope   string   `json:"data_scope"`
	LocationIDs []int64  `json:"location_ids"`
}

func toCached(perms EffectivePermissions) cachedPermissions {
	out := cachedPermissions{DataScope: perms.DataScope.String()}
	for code := range perms.Permissions {
		out.Permissions = append(out.Permissions, code)
	}
	for id := range perms.LocationIDs {
		out.LocationIDs = append(out.LocationIDs, id)
	}
	return out
}

func fromCached(stored cachedPermissions) (EffectivePermissions, error) {
	scope, err := ParseScope(stored.DataScope)
	if err != nil {
		return EffectivePermissions{}, err
	}
	perms := EffectivePermissions{
		Permissions: make(map[string]struct{}, len(stored.Permissions)),
		DataScope:   scope,
		LocationIDs: make(map[int64]struct{}, len(stored.LocationIDs)),
	}
	for _, code := range stored.Permissions {
		perms.Permissions[code] = struct{}{}
	}
	for _, id := range stored.LocationIDs {
		perms.LocationIDs[id] = struct{}{}
	}
	return perms, nil
}

// RedisCache is the production Cache backed by Redis. A version counter
// makes InvalidateAll a single bump instead of a keyspace scan.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

const permCacheVersionKey = "authz:permissions:version"

// NewRedisCache constructs a RedisCache. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(ctx context.Context, userID int64) (string, error) {
	ver, err := c.client.Get(ctx, permCacheVersionKey).Int64()
	if err == redis.Nil {
		ver = 1
		if err := c.client.Set(ctx, permCacheVersionKey, ver, 0).Err(); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("authz:permissions:%d:%s", ver, strconv.FormatInt(userID, 10)), nil
}

// Get loads a cached snapshot.
func (c *RedisCache) Get(ctx context.Context, userID int64) (EffectivePermissions, bool, error) {
	key, err := c.key(ctx, userID)
	if err != nil {
		return EffectivePermissions{}, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return EffectivePermissions{}, false, nil
	}
	if err != nil {
		return EffectivePermissions{}, false, err
	}
	var stored cachedPermissions
	if err := json.Unmarshal(payload, &stored); err != nil {
		return EffectivePermissions{}, false, err
	}
	perms, err := fromCached(stored)
	if err != nil {
		return EffectivePermissions{}, false, err
	}
	return perms, true, nil
}

// Set stores a snapshot with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, userID int64, perms EffectivePermissions) error {
	key, err := c.key(ctx, userID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(toCached(perms))
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate drops one user's snapshot.
func (c *RedisCache) Invalidate(ctx context.Context, userID int64) error {
	key, err := c.key(ctx, userID)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, key).Err()
}

// InvalidateAll bumps the version so every existing entry becomes
// unreachable and expires via TTL.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	return c.client.Incr(ctx, permCacheVersionKey).Err()
}

// MemoryCache is a process-local Cache for tests and single-node setups.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[int64]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	perms     EffectivePermissions
	expiresAt time.Time
}

// NewMemoryCache constructs a MemoryCache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{ttl: ttl, entries: make(map[int64]memoryEntry), now: time.Now}
}

// Get loads a live entry.
func (c *MemoryCache) Get(_ context.Context, userID int64) (EffectivePermissions, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return EffectivePermissions{}, false, nil
	}
	return entry.perms, true, nil
}

// Set stores an entry with the configured TTL.
func (c *MemoryCache) Set(_ context.Context, userID int64, perms EffectivePermissions) error {
	c.mu.Lock()
	c.entries[userID] = memoryEntry{perms: perms, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

// Invalidate drops one entry.
func (c *MemoryCache) Invalidate(_ context.Context, userID int64) error {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
	return nil
}

// InvalidateAll drops every entry.
func (c *MemoryCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[int64]memoryEntry)
	c.mu.Unlock()
	return nil
}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = (*MemoryCache)(nil)
)
