// Package parsecache stores performance percentiles fetched from the
// ranking service, keyed by character and encounter, with a bounded TTL.
package parsecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/storage/redis/v3"
	goredis "github.com/redis/go-redis/v9"
)

// ErrStorage wraps cache backend failures so callers can distinguish them
// from a plain miss.
var ErrStorage = errors.New("parse cache storage error")

// Entry is one cached parse fact. A nil Percentile is a real, cacheable
// outcome: the ranking service has no ranked log for this key. That is
// distinct from the key being absent, which means "never attempted".
type Entry struct {
	Percentile *float64  `json:"percentile"`
	FetchedAt  time.Time `json:"fetched_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Fresh reports whether the entry may still be served.
func (e Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Resolved is one outcome to be written by PutMany.
type Resolved struct {
	Key        Key
	Percentile *float64
	FetchedAt  time.Time
}

// Cache is a TTL-bounded parse store backed by Redis. Redis key expiry
// mirrors ExpiresAt, and reads re-check freshness so a clock-skewed entry
// is never served stale. Safe for concurrent use.
type Cache struct {
	store *redis.Storage
	rdb   goredis.UniversalClient
	ttl   time.Duration
}

// New connects to Redis and returns a cache whose entries live for ttl.
// Connection failure is returned to the caller; at startup that is fatal.
func New(url string, ttl time.Duration) (*Cache, error) {
	store := redis.New(redis.Config{URL: url})
	rdb := store.Conn()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &Cache{store: store, rdb: rdb, ttl: ttl}, nil
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Ping checks backend reachability.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get returns the entry for key, or ok=false when absent or expired.
func (c *Cache) Get(ctx context.Context, key Key) (Entry, bool, error) {
	raw, err := c.rdb.Get(ctx, key.String()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("%w: decode %s: %v", ErrStorage, key, err)
	}
	if !entry.Fresh(time.Now()) {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// GetMany returns the fresh entries for the given keys in one round trip.
// Absent and expired keys are omitted from the result, not reported as
// errors. This is the read path for assembling a whole page of listings.
func (c *Cache) GetMany(ctx context.Context, keys []Key) (map[Key]Entry, error) {
	if len(keys) == 0 {
		return map[Key]Entry{}, nil
	}

	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = k.String()
	}

	values, err := c.rdb.MGet(ctx, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	now := time.Now()
	entries := make(map[Key]Entry, len(keys))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if entry.Fresh(now) {
			entries[keys[i]] = entry
		}
	}
	return entries, nil
}

// Put upserts one entry, replacing any prior value for the key.
func (c *Cache) Put(ctx context.Context, key Key, percentile *float64, fetchedAt time.Time) error {
	return c.PutMany(ctx, []Resolved{{Key: key, Percentile: percentile, FetchedAt: fetchedAt}})
}

// PutMany upserts a batch of resolved outcomes in one pipelined round
// trip. Each key is written atomically; a failure leaves the prior entry
// for that key intact.
func (c *Cache) PutMany(ctx context.Context, outcomes []Resolved) error {
	if len(outcomes) == 0 {
		return nil
	}

	now := time.Now()
	pipe := c.rdb.Pipeline()
	for _, o := range outcomes {
		entry := Entry{
			Percentile: o.Percentile,
			FetchedAt:  o.FetchedAt,
			ExpiresAt:  o.FetchedAt.Add(c.ttl),
		}
		exp := entry.ExpiresAt.Sub(now)
		if exp <= 0 {
			continue
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("%w: encode %s: %v", ErrStorage, o.Key, err)
		}
		pipe.Set(ctx, o.Key.String(), raw, exp)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.store.Close()
}
