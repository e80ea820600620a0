package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/rollingpaper/board/pkg/config"
	"github.com/rollingpaper/board/pkg/logging"
)

const keyPrefix = "board:"

// ErrCacheDisabled is returned when cache operations are attempted but cache is disabled
var ErrCacheDisabled = errors.New("cache is disabled")

// Cache wraps Redis client
type Cache struct {
	client  *redis.Client
	timeout time.Duration
}

// New creates a new Redis cache client
func New(cfg *config.RedisConfig) (*Cache, error) {
	if !cfg.Enabled {
		logging.GetLogger().Info("Redis cache disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.Timeout > 0 {
		opt.ReadTimeout = cfg.Timeout
		opt.WriteTimeout = cfg.Timeout
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetLogger().Info("Redis connection established", zap.String("addr", opt.Addr))

	return NewWithClient(client, cfg.Timeout), nil
}

// NewWithClient wraps an existing client. A positive timeout bounds every call.
func NewWithClient(client *redis.Client, timeout time.Duration) *Cache {
	return &Cache{client: client, timeout: timeout}
}

// Client exposes the underlying client for components that need native commands.
func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.client
}

// Bound derives a context limited by the configured per-call timeout.
func (c *Cache) Bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c == nil || c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Key namespaces a key with the application prefix.
func (c *Cache) Key(parts ...string) string {
	return c.namespaceKey(strings.Join(parts, ":"))
}

func (c *Cache) namespaceKey(key string) string {
	return keyPrefix + key
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health checks Redis health
func (c *Cache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}
