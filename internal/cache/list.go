package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/rollingpaper/board/internal/content"
)

// ListCache stores one ordered snapshot of hydrated summaries per named list
// as a Redis list. Snapshots are replaced whole; readers never see a mix.
type ListCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewListCache creates a list cache whose snapshots expire after ttl (0 = never).
func NewListCache(c *Cache, ttl time.Duration) *ListCache {
	return &ListCache{cache: c, ttl: ttl}
}

func (l *ListCache) key(list content.ListName) string {
	return l.cache.Key("hotlist", list.String())
}

// ReplaceAll writes items into a fresh temp key and renames it over the live
// key inside one MULTI/EXEC. Callers must not pass an empty slice: an empty
// refresh keeps the previous snapshot instead of blanking it.
func (l *ListCache) ReplaceAll(ctx context.Context, list content.ListName, items []content.Summary) error {
	if l.cache == nil || l.cache.client == nil {
		return ErrCacheDisabled
	}
	if len(items) == 0 {
		return fmt.Errorf("replace %s: refusing to publish an empty snapshot", list)
	}

	values := make([]interface{}, 0, len(items))
	for _, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("replace %s: encode item %d: %w", list, it.ID, err)
		}
		values = append(values, b)
	}

	live := l.key(list)
	tmp := live + ":tmp:" + uuid.NewString()

	ctx, cancel := l.cache.Bound(ctx)
	defer cancel()

	_, err := l.cache.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, tmp, values...)
		if l.ttl > 0 {
			pipe.Expire(ctx, tmp, l.ttl)
		}
		pipe.Rename(ctx, tmp, live)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", list, err)
	}
	return nil
}

// ReadAll returns the current snapshot in order. A missing or expired list
// yields an empty slice and no error.
func (l *ListCache) ReadAll(ctx context.Context, list content.ListName) ([]content.Summary, error) {
	if l.cache == nil || l.cache.client == nil {
		return nil, ErrCacheDisabled
	}
	ctx, cancel := l.cache.Bound(ctx)
	defer cancel()

	raw, err := l.cache.client.LRange(ctx, l.key(list), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", list, err)
	}

	items := make([]content.Summary, 0, len(raw))
	for _, r := range raw {
		var s content.Summary
		if err := json.Unmarshal([]byte(r), &s); err != nil {
			return nil, fmt.Errorf("read %s: decode item: %w", list, err)
		}
		items = append(items, s)
	}
	return items, nil
}
