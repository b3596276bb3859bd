// Package cache is an optional Redis-backed metadata cache.
//
// Graceful fallback: when Redis is not configured or unreachable, every
// operation is a cheap no-op so the rest of the system keeps working.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeySession prefixes session-metadata entries.
const KeySession = "session:"

// SessionMetaTTL bounds how long stale session metadata lingers.
const SessionMetaTTL = 7 * 24 * time.Hour

// Config holds Redis connection settings. An empty URL disables the
// cache.
type Config struct {
	URL      string
	Password string
	DB       int
}

// SessionMeta is what the cache stores per conversation.
type SessionMeta struct {
	Key       string `json:"key"`
	UpdatedAt string `json:"updated_at"`
	Entries   int    `json:"entries"`
}

// Cache wraps a Redis client. A nil *Cache or an unconnected one is
// safe to use.
type Cache struct {
	client *redis.Client
}

// New connects to Redis. It never fails hard: on any problem it logs
// and returns a disabled cache.
func New(cfg Config) *Cache {
	if cfg.URL == "" {
		return &Cache{}
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		log.Printf("[Cache] invalid redis URL: %v", err)
		return &Cache{}
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	c := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		log.Printf("[Cache] redis unavailable: %v", err)
		c.Close()
		return &Cache{}
	}

	log.Println("[Cache] redis connected")
	return &Cache{client: c}
}

// Available reports whether the cache is backed by a live connection.
func (c *Cache) Available() bool {
	return c != nil && c.client != nil
}

// Close releases the connection.
func (c *Cache) Close() {
	if c.Available() {
		c.client.Close()
		c.client = nil
	}
}

// SetSessionMeta writes one conversation's metadata.
func (c *Cache) SetSessionMeta(ctx context.Context, meta SessionMeta) {
	if !c.Available() {
		return
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, KeySession+meta.Key, data, SessionMetaTTL).Err(); err != nil {
		log.Printf("[Cache] set session meta %s: %v", meta.Key, err)
	}
}

// GetSessionMeta reads one conversation's metadata. The second return
// is false when the cache is disabled or the key is absent.
func (c *Cache) GetSessionMeta(ctx context.Context, key string) (SessionMeta, bool) {
	if !c.Available() {
		return SessionMeta{}, false
	}
	raw, err := c.client.Get(ctx, KeySession+key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[Cache] get session meta %s: %v", key, err)
		}
		return SessionMeta{}, false
	}
	var meta SessionMeta
	if json.Unmarshal([]byte(raw), &meta) != nil {
		return SessionMeta{}, false
	}
	return meta, true
}

// ListSessionKeys returns the cached session keys.
func (c *Cache) ListSessionKeys(ctx context.Context) []string {
	if !c.Available() {
		return nil
	}
	var keys []string
	iter := c.client.Scan(ctx, 0, KeySession+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(KeySession):])
	}
	if err := iter.Err(); err != nil {
		log.Printf("[Cache] scan sessions: %v", err)
	}
	return keys
}
