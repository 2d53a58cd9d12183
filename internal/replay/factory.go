package replay

import (
	"fmt"
	"time"

	"telnyx-webhooks/internal/redis"
)

// Type represents the store backend type
type Type string

const (
	TypeLocal Type = "local"
	TypeRedis Type = "redis"
)

// Config holds replay store configuration
type Config struct {
	Type            Type
	CleanupInterval time.Duration
	KeyPrefix       string
	RedisClient     *redis.Client
}

// DefaultConfig returns default store configuration
func DefaultConfig() Config {
	return Config{
		Type:            TypeLocal,
		CleanupInterval: time.Minute,
		KeyPrefix:       "webhooks:",
	}
}

// New creates a store based on configuration
func New(config Config) (Store, error) {
	switch config.Type {
	case TypeLocal, "":
		interval := config.CleanupInterval
		if interval <= 0 {
			interval = time.Minute
		}
		return NewLocalStore(interval), nil

	case TypeRedis:
		if config.RedisClient == nil {
			return nil, fmt.Errorf("redis client required for redis replay store")
		}
		return NewRedisStore(config.RedisClient, config.KeyPrefix), nil

	default:
		return nil, fmt.Errorf("unknown replay store type: %s", config.Type)
	}
}
