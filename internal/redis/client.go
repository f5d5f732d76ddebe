package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/FlooooowY/SteelMount-FormShield/internal/config"
)

// Client wraps Redis client with configuration
type Client struct {
	client   *redis.Client
	config   *config.RedisConfig
	settings *SettingsStore
}

// NewClient creates a new Redis client and checks the connection
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.MaxRetries = cfg.MaxRetries
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{
		client:   client,
		config:   cfg,
		settings: NewSettingsStore(client, cfg.SettingsKey),
	}, nil
}

// Settings returns the ambient settings hash
func (c *Client) Settings() *SettingsStore {
	return c.settings
}

// Close closes the Redis client
func (c *Client) Close() error {
	return c.client.Close()
}

// Health checks Redis connection health
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetStats returns Redis client statistics
func (c *Client) GetStats() map[string]interface{} {
	stats := c.client.PoolStats()

	return map[string]interface{}{
		"hits":         stats.Hits,
		"misses":       stats.Misses,
		"timeouts":     stats.Timeouts,
		"total_conns":  stats.TotalConns,
		"idle_conns":   stats.IdleConns,
		"stale_conns":  stats.StaleConns,
		"pool_size":    c.config.PoolSize,
		"settings_key": c.config.SettingsKey,
	}
}
