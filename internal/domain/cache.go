package domain

import (
	"context"
	"time"
)

// Cache defines the interface for result caching.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
//
// The cache is the only place completed analyses live; it is a bounded,
// expiring store, not durable persistence.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetAnalysis retrieves a cached analysis result.
	// Returns nil, nil if not found.
	GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*Analysis, error)

	// SetAnalysis caches a completed analysis for later retrieval by ID.
	SetAnalysis(ctx context.Context, tenantID string, a *Analysis, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     int // seconds

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
