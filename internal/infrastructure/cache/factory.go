package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// Backend names accepted by NewIdempotencyStore
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// StoreOptions selects and configures an idempotency store
type StoreOptions struct {
	Backend   string
	Redis     RedisConfig
	KeyPrefix string
	// AllowMemoryFallback uses the in-memory store when Redis cannot be reached
	AllowMemoryFallback bool
	CleanupInterval     time.Duration
}

// NewIdempotencyStore creates the store named by opts.Backend
func NewIdempotencyStore(ctx context.Context, opts StoreOptions, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	switch strings.ToLower(opts.Backend) {
	case BackendMemory:
		logger.Info("Using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(interval), nil
	case "", BackendRedis:
		store, err := NewRedisIdempotencyStore(ctx, opts.Redis, opts.KeyPrefix)
		if err == nil {
			logger.Info("Using Redis idempotency store")
			return store, nil
		}
		if !opts.AllowMemoryFallback {
			return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
		}
		logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
			"Duplicate checkouts are only detected per instance.",
			zap.Error(err),
		)
		return NewInMemoryIdempotencyStore(interval), nil
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", opts.Backend)
	}
}
