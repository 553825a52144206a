package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/devmatch/internal/config"
)

// Local storage keys. Every key is scoped per user, see Key.
const (
	KeyToken            = "token"
	KeyUser             = "user"
	KeyMutedUsers       = "mutedUsers"
	KeyBlockedUsers     = "blockedUsers"
	KeyActivityLogs     = "devmatch_activity_logs"
	KeySwipedDevelopers = "swipedDevelopers"
)

// RedisCache is the per-user key/value store standing in for browser local
// storage. Values are plain JSON blobs read and written wholesale.
type RedisCache struct {
	Client *redis.Client
	prefix string
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts), prefix: cfg.Redis.Prefix}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// Key builds the storage key for a user's local storage entry,
// e.g. "devmatch:currentUser:mutedUsers".
func (c *RedisCache) Key(userID, name string) string {
	if c.prefix == "" {
		return fmt.Sprintf("%s:%s", userID, name)
	}
	return fmt.Sprintf("%s:%s:%s", c.prefix, userID, name)
}

// SetJSON stores v as a JSON blob. ttl <= 0 keeps the key forever.
func (c *RedisCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return c.Client.Set(ctx, key, b, ttl).Err()
}

// GetJSON decodes the blob at key into dst. found is false on a cache miss.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dst any) (found bool, err error) {
	raw, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil // cache miss
	} else if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

// Get returns "" on a cache miss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}

// LoadIDSet reads a JSON array of ids (mutedUsers, blockedUsers, ...).
// A missing key is an empty list.
func (c *RedisCache) LoadIDSet(ctx context.Context, userID, name string) ([]string, error) {
	var ids []string
	if _, err := c.GetJSON(ctx, c.Key(userID, name), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SaveIDSet overwrites the JSON array of ids under the given name.
func (c *RedisCache) SaveIDSet(ctx context.Context, userID, name string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return c.SetJSON(ctx, c.Key(userID, name), ids, 0)
}

// SaveSwipedDevelopers mirrors the ids a user has swiped on to local storage.
func (c *RedisCache) SaveSwipedDevelopers(ctx context.Context, userID string, ids []string) error {
	return c.SaveIDSet(ctx, userID, KeySwipedDevelopers, ids)
}

// InIDSet reports whether id is listed under the user's named id set.
func (c *RedisCache) InIDSet(ctx context.Context, userID, name, id string) (bool, error) {
	ids, err := c.LoadIDSet(ctx, userID, name)
	if err != nil {
		return false, err
	}
	for _, v := range ids {
		if v == id {
			return true, nil
		}
	}
	return false, nil
}
