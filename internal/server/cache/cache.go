// Package cache caches inference responses in Redis, keyed by a hash of
// the input text. Inference is deterministic for a given artifact set, so
// cached responses never go stale until the artifacts change.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/wikitopics/topic-platform/internal/server"
	"github.com/wikitopics/topic-platform/pkg/config"
	pkgredis "github.com/wikitopics/topic-platform/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "topic:"

// ResponseCache wraps a Redis client with singleflight so concurrent
// requests for the same text share one inference.
type ResponseCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *ResponseCache {
	return &ResponseCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "response-cache"),
	}
}

func (c *ResponseCache) Get(ctx context.Context, text string) (*server.TopicResponse, bool) {
	key := c.buildKey(text)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var resp server.TopicResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &resp, true
}

func (c *ResponseCache) Set(ctx context.Context, text string, resp *server.TopicResponse) {
	key := c.buildKey(text)
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response for text, or runs computeFn
// exactly once per key across concurrent callers and caches its result.
// The second return reports whether the response came from cache.
func (c *ResponseCache) GetOrCompute(
	ctx context.Context,
	text string,
	computeFn func() (*server.TopicResponse, error),
) (*server.TopicResponse, bool, error) {
	if resp, ok := c.Get(ctx, text); ok {
		return resp, true, nil
	}
	key := c.buildKey(text)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if resp, ok := c.Get(ctx, text); ok {
			return resp, nil
		}
		resp, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, text, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*server.TopicResponse), false, nil
}

// Invalidate drops every cached response. Call it after swapping in a new
// artifact set.
func (c *ResponseCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *ResponseCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey hashes the raw text. Tokenization already normalizes case and
// punctuation, but hashing the raw bytes keeps the key independent of the
// tokenizer configuration.
func (c *ResponseCache) buildKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
