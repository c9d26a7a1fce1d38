package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

const defaultLocalTTL = 5 * time.Minute

// TwoPhaseCache keeps recently read assessments in a process-local LRU in
// front of a shared cache. Model artifacts skip the local layer: they are
// read once at startup and would only evict assessments.
type TwoPhaseCache struct {
	local    *LRUCache
	remote   domain.Cache
	localTTL time.Duration
}

// NewTwoPhaseCache connects to Redis and puts an LRU in front of it.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	remote, err := NewRedisCache(cfg)
	if err != nil {
		return nil, err
	}
	return newTwoPhase(NewLRUCache(cfg.LocalMaxSize), remote, cfg.LocalTTL), nil
}

func newTwoPhase(local *LRUCache, remote domain.Cache, localTTL time.Duration) *TwoPhaseCache {
	if localTTL <= 0 {
		localTTL = defaultLocalTTL
	}
	return &TwoPhaseCache{local: local, remote: remote, localTTL: localTTL}
}

func bypassesLocal(scope string) bool {
	return scope == domain.CacheScopeModel
}

// Get reads the local layer, then the shared one. Shared hits are copied
// into the local layer.
func (c *TwoPhaseCache) Get(ctx context.Context, scope string, key string) ([]byte, error) {
	if !bypassesLocal(scope) {
		val, err := c.local.Get(ctx, scope, key)
		if err != nil || val != nil {
			return val, err
		}
	}

	val, err := c.remote.Get(ctx, scope, key)
	if err != nil || val == nil {
		return nil, err
	}
	if !bypassesLocal(scope) {
		_ = c.local.Set(ctx, scope, key, val, c.localTTL)
	}
	return val, nil
}

// Set writes the shared layer first; the local copy is only kept when that
// succeeds, and never outlives ttl.
func (c *TwoPhaseCache) Set(ctx context.Context, scope string, key string, value []byte, ttl time.Duration) error {
	if err := c.remote.Set(ctx, scope, key, value, ttl); err != nil {
		return err
	}
	if bypassesLocal(scope) {
		return nil
	}
	return c.local.Set(ctx, scope, key, value, min(ttl, c.localTTL))
}

// Delete removes the entry from both layers.
func (c *TwoPhaseCache) Delete(ctx context.Context, scope string, key string) error {
	return errors.Join(
		c.local.Delete(ctx, scope, key),
		c.remote.Delete(ctx, scope, key),
	)
}

// Ping reports the shared layer's health; the local layer cannot fail.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("shared cache: %w", err)
	}
	return nil
}

// Close releases both layers.
func (c *TwoPhaseCache) Close() error {
	return errors.Join(c.local.Close(), c.remote.Close())
}

// HitRatio returns the local hit ratio.
func (c *TwoPhaseCache) HitRatio() float64 {
	return c.local.HitRatio()
}
