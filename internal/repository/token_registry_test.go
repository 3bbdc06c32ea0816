package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistrySetAndGet(t *testing.T) {
	reg := NewMemoryTokenRegistry()
	ctx := context.Background()

	require.NoError(t, reg.Set(ctx, 1, "token-a", time.Minute))

	got, err := reg.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "token-a", got)
}

func TestMemoryRegistryRotationReplacesToken(t *testing.T) {
	reg := NewMemoryTokenRegistry()
	ctx := context.Background()

	require.NoError(t, reg.Set(ctx, 1, "token-a", time.Minute))
	require.NoError(t, reg.Set(ctx, 1, "token-b", time.Minute))

	got, err := reg.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "token-b", got, "one valid token per user")
}

func TestMemoryRegistryExpiry(t *testing.T) {
	reg := NewMemoryTokenRegistry()
	ctx := context.Background()

	require.NoError(t, reg.Set(ctx, 1, "token-a", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := reg.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestMemoryRegistryDelete(t *testing.T) {
	reg := NewMemoryTokenRegistry()
	ctx := context.Background()

	require.NoError(t, reg.Set(ctx, 1, "token-a", time.Minute))
	require.NoError(t, reg.Delete(ctx, 1))

	_, err := reg.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// deleting an absent entry is not an error
	assert.NoError(t, reg.Delete(ctx, 1))
}

func TestMemoryRegistryIsolatesUsers(t *testing.T) {
	reg := NewMemoryTokenRegistry()
	ctx := context.Background()

	require.NoError(t, reg.Set(ctx, 1, "token-a", time.Minute))
	require.NoError(t, reg.Set(ctx, 2, "token-b", time.Minute))
	require.NoError(t, reg.Delete(ctx, 1))

	got, err := reg.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "token-b", got)
}

func TestRedisRegistryUnavailableWithoutClient(t *testing.T) {
	reg := NewRedisTokenRegistry(nil)
	ctx := context.Background()

	assert.ErrorIs(t, reg.Set(ctx, 1, "token-a", time.Minute), ErrRegistryUnavailable)
	_, err := reg.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrRegistryUnavailable)
	assert.ErrorIs(t, reg.Delete(ctx, 1), ErrRegistryUnavailable)
}
