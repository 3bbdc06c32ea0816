package repository

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRegistry records the single currently-valid refresh token per user.
// Set is an unconditional overwrite: the previous entry becomes unresolvable,
// which revokes the prior refresh token even while its signature is still
// valid. Delete is the explicit revocation used on logout.
//
// Callers must treat ANY error from Get as "no valid refresh token". The
// registry never fails open: an unreachable backend forces re-login.
type TokenRegistry interface {
	Set(ctx context.Context, userID uint64, token string, ttl time.Duration) error
	Get(ctx context.Context, userID uint64) (string, error)
	Delete(ctx context.Context, userID uint64) error
}

// ErrRegistryUnavailable wraps backend failures so callers can log the cause
// while still denying the request.
var ErrRegistryUnavailable = errors.New("token registry unavailable")

func registryKey(userID uint64) string {
	return "refresh_token:" + strconv.FormatUint(userID, 10)
}

// RedisTokenRegistry keys entries as refresh_token:<userID> with the token's
// remaining lifetime as the entry TTL, so registry and token expiry never
// drift relative to each other.
type RedisTokenRegistry struct{ RDB *redis.Client }

func NewRedisTokenRegistry(rdb *redis.Client) *RedisTokenRegistry {
	return &RedisTokenRegistry{RDB: rdb}
}

func (r *RedisTokenRegistry) Set(ctx context.Context, userID uint64, token string, ttl time.Duration) error {
	if r.RDB == nil {
		return ErrRegistryUnavailable
	}
	return r.RDB.Set(ctx, registryKey(userID), token, ttl).Err()
}

func (r *RedisTokenRegistry) Get(ctx context.Context, userID uint64) (string, error) {
	if r.RDB == nil {
		return "", ErrRegistryUnavailable
	}
	v, err := r.RDB.Get(ctx, registryKey(userID)).Result()
	if err == redis.Nil {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", errors.Join(ErrRegistryUnavailable, err)
	}
	return v, nil
}

func (r *RedisTokenRegistry) Delete(ctx context.Context, userID uint64) error {
	if r.RDB == nil {
		return ErrRegistryUnavailable
	}
	return r.RDB.Del(ctx, registryKey(userID)).Err()
}

// MemoryTokenRegistry implements TokenRegistry with a process-local map.
// It backs the handler tests and development runs without Redis.
type MemoryTokenRegistry struct {
	mu      sync.Mutex
	entries map[uint64]memoryEntry
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

func NewMemoryTokenRegistry() *MemoryTokenRegistry {
	return &MemoryTokenRegistry{entries: make(map[uint64]memoryEntry)}
}

func (r *MemoryTokenRegistry) Set(ctx context.Context, userID uint64, token string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[userID] = memoryEntry{token: token, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (r *MemoryTokenRegistry) Get(ctx context.Context, userID uint64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok || time.Now().After(e.expiresAt) {
		delete(r.entries, userID)
		return "", ErrTokenNotFound
	}
	return e.token, nil
}

func (r *MemoryTokenRegistry) Delete(ctx context.Context, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, userID)
	return nil
}
