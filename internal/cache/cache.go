// Package cache reads and writes the shared Redis context cache that
// feeds the distiller. Producers publish raw text entries under
// context_cache:* keys; the distiller scans for entries it has not seen,
// processes them, and records consumption in a Redis set so entries are
// handled exactly once without being deleted from the cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix namespaces every context cache entry.
	KeyPrefix = "context_cache:"

	// ProcessedSet holds the keys the distiller has already consumed.
	ProcessedSet = "distiller:processed_entries"

	// scanBatch is the COUNT hint for SCAN.
	scanBatch = 100
)

// Entry is one raw-text context entry awaiting distillation.
type Entry struct {
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Cache wraps a Redis client with the context cache conventions.
type Cache struct {
	client *redis.Client
}

// New connects to Redis at redisURL (redis://host:port/db).
func New(redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &Cache{client: redis.NewClient(opts)}, nil
}

// NewWithClient wraps an existing Redis client. Close closes it.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Publish stores an entry under a fresh context cache key and returns
// the key. A zero timestamp is filled with the current time.
func (c *Cache) Publish(ctx context.Context, e Entry) (string, error) {
	if e.Text == "" {
		return "", fmt.Errorf("entry text cannot be empty")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encoding entry: %w", err)
	}

	key := KeyPrefix + uuid.NewString()
	if err := c.client.Set(ctx, key, data, 0).Err(); err != nil {
		return "", fmt.Errorf("storing entry %s: %w", key, err)
	}
	return key, nil
}

// Pending returns the context cache keys not yet marked processed,
// sorted for deterministic consumption order.
func (c *Cache) Pending(ctx context.Context) ([]string, error) {
	processed, err := c.client.SMembers(ctx, ProcessedSet).Result()
	if err != nil {
		return nil, fmt.Errorf("reading processed set: %w", err)
	}
	seen := make(map[string]bool, len(processed))
	for _, key := range processed {
		seen[key] = true
	}

	var pending []string
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, KeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning context cache: %w", err)
		}
		for _, key := range keys {
			if !seen[key] {
				pending = append(pending, key)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Strings(pending)
	return pending, nil
}

// Fetch reads and decodes one entry. Returns nil if the key is gone.
func (c *Cache) Fetch(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", key, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return &e, nil
}

// MarkProcessed records that the distiller consumed key.
func (c *Cache) MarkProcessed(ctx context.Context, key string) error {
	if err := c.client.SAdd(ctx, ProcessedSet, key).Err(); err != nil {
		return fmt.Errorf("marking %s processed: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}
