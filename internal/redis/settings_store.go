package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/FlooooowY/SteelMount-FormShield/internal/settings"
)

// hashStore is the subset of the Redis API the settings hash needs
type hashStore interface {
	HGetAll(ctx context.Context, key string) *redis.StringStringMapCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// SettingsStore keeps the ambient settings layer in one Redis hash so every
// instance serves the same values. It distributes configuration only; no
// submission state is ever written here.
type SettingsStore struct {
	store hashStore
	key   string
}

// NewSettingsStore creates a store over the given hash key
func NewSettingsStore(store hashStore, key string) *SettingsStore {
	return &SettingsStore{store: store, key: key}
}

// Key returns the hash key
func (s *SettingsStore) Key() string {
	return s.key
}

// Load reads the ambient layer. A missing hash is an empty layer.
func (s *SettingsStore) Load(ctx context.Context) (settings.Overrides, error) {
	fields, err := s.store.HGetAll(ctx, s.key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return settings.Overrides{}, fmt.Errorf("failed to read settings hash %s: %w", s.key, err)
	}

	o, err := settings.ParseOverrides(fields)
	if err != nil {
		return settings.Overrides{}, fmt.Errorf("settings hash %s: %w", s.key, err)
	}
	return o, nil
}

// Publish replaces the hash with the set fields of o
func (s *SettingsStore) Publish(ctx context.Context, o settings.Overrides) error {
	if err := s.store.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear settings hash %s: %w", s.key, err)
	}

	fields := o.Fields()
	if len(fields) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}
	if err := s.store.HSet(ctx, s.key, values...).Err(); err != nil {
		return fmt.Errorf("failed to write settings hash %s: %w", s.key, err)
	}
	return nil
}
