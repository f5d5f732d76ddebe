package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlooooowY/SteelMount-FormShield/internal/domain"
	"github.com/FlooooowY/SteelMount-FormShield/internal/settings"
)

// memoryHash stores hashes in memory
type memoryHash struct {
	hashes map[string]map[string]string
	err    error
}

func newMemoryHash() *memoryHash {
	return &memoryHash{hashes: make(map[string]map[string]string)}
}

func (m *memoryHash) HGetAll(_ context.Context, key string) *redis.StringStringMapCmd {
	if m.err != nil {
		return redis.NewStringStringMapResult(nil, m.err)
	}
	out := make(map[string]string)
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return redis.NewStringStringMapResult(out, nil)
}

func (m *memoryHash) HSet(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = values[i+1].(string)
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (m *memoryHash) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	for _, k := range keys {
		delete(m.hashes, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestSettingsStore_PublishThenLoad(t *testing.T) {
	ctx := context.Background()
	hash := newMemoryHash()
	store := NewSettingsStore(hash, "formshield:settings")

	published := settings.Overrides{
		EnableHoneypot: settings.Bool(false),
		MaxChallenges:  settings.Int(2),
	}
	require.NoError(t, store.Publish(ctx, published))
	assert.Equal(t, "false", hash.hashes["formshield:settings"][domain.OptionEnableHoneypot])

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, published, loaded)

	require.NoError(t, store.Publish(ctx, settings.Overrides{ChallengeTimeValue: settings.Int(3)}))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded.MaxChallenges, "publish replaces the whole layer")
	require.NotNil(t, loaded.ChallengeTimeValue)
	assert.Equal(t, 3, *loaded.ChallengeTimeValue)

	require.NoError(t, store.Publish(ctx, settings.Overrides{}))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.IsZero())
}

func TestSettingsStore_Errors(t *testing.T) {
	ctx := context.Background()

	hash := newMemoryHash()
	hash.hashes["k"] = map[string]string{domain.OptionMaxChallenges: "many"}
	_, err := NewSettingsStore(hash, "k").Load(ctx)
	assert.Error(t, err)

	down := newMemoryHash()
	down.err = errors.New("connection refused")
	store := NewSettingsStore(down, "k")
	_, err = store.Load(ctx)
	assert.ErrorContains(t, err, "connection refused")
	assert.Error(t, store.Publish(ctx, settings.Overrides{MaxChallenges: settings.Int(1)}))

	missing := newMemoryHash()
	missing.err = redis.Nil
	o, err := NewSettingsStore(missing, "k").Load(ctx)
	require.NoError(t, err)
	assert.True(t, o.IsZero())
}
