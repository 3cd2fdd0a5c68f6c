package profile

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/edgard/aiphone/internal/database"
)

// Driver names a Backend implementation.
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverRedis  Driver = "redis"
	DriverMemory Driver = "memory"
)

var (
	ErrInvalidDriver = errors.New("invalid store driver")
	ErrInvalidConfig = errors.New("invalid store configuration")
)

// Backend is the key/value persistence under the profile store.
type Backend interface {
	// Get returns the value under key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Put fully replaces the value under key.
	Put(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
}

// BackendOption configures NewBackend.
type BackendOption func(*backendConfig)

type backendConfig struct {
	settings    database.Store
	redisClient *redis.Client
}

// WithSettingsStore sets the database store used by the sqlite driver.
func WithSettingsStore(store database.Store) BackendOption {
	return func(c *backendConfig) {
		c.settings = store
	}
}

// WithRedisClient sets the Redis client used by the redis driver.
func WithRedisClient(client *redis.Client) BackendOption {
	return func(c *backendConfig) {
		c.redisClient = client
	}
}

// NewBackend creates the Backend for driver.
// sqlite requires WithSettingsStore, redis requires WithRedisClient.
//
//nolint:ireturn
func NewBackend(driver Driver, opts ...BackendOption) (Backend, error) {
	cfg := &backendConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch driver {
	case DriverSQLite:
		if cfg.settings == nil {
			return nil, ErrInvalidConfig
		}
		return &sqliteBackend{store: cfg.settings}, nil

	case DriverRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisBackend{client: cfg.redisClient}, nil

	case DriverMemory:
		return NewMemoryBackend(), nil

	default:
		return nil, ErrInvalidDriver
	}
}

type sqliteBackend struct {
	store database.Store
}

func (b *sqliteBackend) Get(ctx context.Context, key string) (string, bool, error) {
	setting, err := b.store.GetSetting(ctx, key)
	if err != nil {
		return "", false, err
	}
	if setting == nil {
		return "", false, nil
	}
	return setting.Value, true, nil
}

func (b *sqliteBackend) Put(ctx context.Context, key, value string) error {
	return b.store.PutSetting(ctx, key, value)
}

func (b *sqliteBackend) Ping(ctx context.Context) error {
	return b.store.Ping(ctx)
}

// redisBackend keeps the record as a plain string key with no expiry.
type redisBackend struct {
	client *redis.Client
}

func (b *redisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := b.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (b *redisBackend) Put(ctx context.Context, key, value string) error {
	return b.client.Set(ctx, key, value, 0).Err()
}

func (b *redisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// MemoryBackend is an in-process Backend, used by tests and the memory driver.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]string)}
}

// Get implements Backend.
func (b *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok, nil
}

// Put implements Backend.
func (b *MemoryBackend) Put(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

// Ping implements Backend.
func (b *MemoryBackend) Ping(context.Context) error {
	return nil
}
