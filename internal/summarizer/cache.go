package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/summari/backend/internal/cache"
)

// summaryCachePrefix is the prefix for summary cache keys.
const summaryCachePrefix = "summarizer:result"

// Cache wraps cache.Redis for summarizer result caching.
type Cache struct {
	redis *cache.Redis
	ttl   time.Duration
}

// NewCache creates a new summarizer cache.
func NewCache(redis *cache.Redis, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{redis: redis, ttl: ttl}
}

func summaryKey(content string, tmpl Template) string {
	return cache.GenerateCacheKey(summaryCachePrefix, string(tmpl), content)
}

// GetSummary retrieves a cached summary. A miss returns (nil, nil).
func (c *Cache) GetSummary(ctx context.Context, content string, tmpl Template) (*StructuredSummary, error) {
	data, err := c.redis.Get(ctx, summaryKey(content, tmpl))
	if err != nil {
		return nil, nil // Cache miss, not an error
	}

	var result StructuredSummary
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached summary: %w", err)
	}

	return &result, nil
}

// SetSummary caches a summary result.
func (c *Cache) SetSummary(ctx context.Context, content string, tmpl Template, result *StructuredSummary) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := c.redis.Set(ctx, summaryKey(content, tmpl), string(data), c.ttl); err != nil {
		return fmt.Errorf("failed to cache summary: %w", err)
	}

	return nil
}
