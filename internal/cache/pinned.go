// Package cache keeps pinned-message lists in redis so the poll-heavy
// pinned endpoint does not hit postgres on every cycle.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"tutor-chat/internal/models"
)

// PinnedCache caches the pinned list of a group.
type PinnedCache interface {
	Get(ctx context.Context, groupID int) ([]models.Message, bool)
	Set(ctx context.Context, groupID int, msgs []models.Message)
	Invalidate(ctx context.Context, groupID int)
	Ping(ctx context.Context) error
	Close() error
}

// NewPinnedCache connects to redis, or returns a noop cache when addr is
// empty or unreachable.
func NewPinnedCache(addr string, ttl time.Duration) PinnedCache {
	if addr == "" {
		log.Printf("cache disabled, using noop: empty redis addr")
		return noopPinned{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("cache disabled, using noop: %v", err)
		_ = client.Close()
		return noopPinned{}
	}

	log.Printf("cache connected addr=%s ttl=%s", addr, ttl)
	return NewRedisPinned(client, "pinned:", ttl)
}

// RedisPinned stores pinned lists as JSON under prefix+groupID.
type RedisPinned struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisPinned wraps an existing client.
func NewRedisPinned(client *redis.Client, prefix string, ttl time.Duration) *RedisPinned {
	return &RedisPinned{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisPinned) key(groupID int) string {
	return c.prefix + strconv.Itoa(groupID)
}

// Get returns the cached list; ok is false on a miss or any error.
func (c *RedisPinned) Get(ctx context.Context, groupID int) ([]models.Message, bool) {
	data, err := c.client.Get(ctx, c.key(groupID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache get failed group_id=%d err=%v", groupID, err)
		}
		return nil, false
	}
	var msgs []models.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		log.Printf("cache decode failed group_id=%d err=%v", groupID, err)
		return nil, false
	}
	return msgs, true
}

// Set stores msgs with the configured TTL.
func (c *RedisPinned) Set(ctx context.Context, groupID int, msgs []models.Message) {
	if msgs == nil {
		msgs = []models.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		log.Printf("cache encode failed group_id=%d err=%v", groupID, err)
		return
	}
	if err := c.client.Set(ctx, c.key(groupID), data, c.ttl).Err(); err != nil {
		log.Printf("cache set failed group_id=%d err=%v", groupID, err)
	}
}

// Invalidate drops the cached list.
func (c *RedisPinned) Invalidate(ctx context.Context, groupID int) {
	if err := c.client.Del(ctx, c.key(groupID)).Err(); err != nil {
		log.Printf("cache invalidate failed group_id=%d err=%v", groupID, err)
	}
}

// Close closes the redis client.
// Ping checks the redis connection.
func (c *RedisPinned) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisPinned) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}

type noopPinned struct{}

func (noopPinned) Get(context.Context, int) ([]models.Message, bool) { return nil, false }
func (noopPinned) Set(context.Context, int, []models.Message)        {}
func (noopPinned) Invalidate(context.Context, int)                   {}
func (noopPinned) Ping(context.Context) error                        { return nil }
func (noopPinned) Close() error                                      { return nil }

// Mode reports the cache mode for logging.
func Mode(c PinnedCache) string {
	switch c.(type) {
	case *RedisPinned:
		return "redis"
	case noopPinned:
		return "noop"
	default:
		return "unknown"
	}
}
