package cache

import (
	"errors"
	"fmt"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// ErrScopeRequired is returned for keys without a tenant or model scope.
var ErrScopeRequired = errors.New("cache scope is required")

// New creates the cache for the configured tier.
//
//	memory              in-process LRU (Community)
//	redis               Redis only
//	redis + two-phase   LRU in front of Redis (Pro)
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory", "":
		return NewLRUCache(cfg.LocalMaxSize), nil

	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg)

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// scopedKey namespaces key by tenant ID or CacheScopeModel.
func scopedKey(scope, key string) (string, error) {
	if scope == "" {
		return "", ErrScopeRequired
	}
	return scope + ":" + key, nil
}
