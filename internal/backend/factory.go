package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lendbook/internal/adapters"
	"lendbook/internal/cache"
	"lendbook/internal/core"
	"lendbook/internal/debtors"
	"lendbook/internal/debtors/memory"
	"lendbook/internal/debtors/remote"
	"lendbook/internal/log"
)

// snapshotEntries bounds the local snapshot cache. The directory stores a
// single key, so this only leaves room for future keys.
const snapshotEntries = 16

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	snapshots adapters.SnapshotStore
	logger    *log.Logger
}

// NewFactory creates a new backend factory. When snapshots is non-nil the
// remote backend falls back to the last stored debtor list while the API is
// unreachable.
func NewFactory(snapshots adapters.SnapshotStore, logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{
		snapshots: snapshots,
		logger:    logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Location == nil {
		config.Location = time.UTC
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case RemoteBackend:
		result = f.createRemoteBackend(config)
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	store, closeCache, err := f.createCache(ctx, config, result.Checks)
	if err != nil {
		return nil, err
	}
	result.Cleanup = closeCache
	result.Directory = debtors.NewDirectory(result.Backend, store, f.logger)
	return result, nil
}

func (f *DefaultFactory) createRemoteBackend(config Config) *BackendResult {
	client := remote.NewClient(config.APIBaseURL, config.APITimeout, config.Location, f.logger)

	var backend debtors.Backend = client
	if f.snapshots != nil {
		backend = adapters.NewSnapshotAdapter(client, f.snapshots, f.logger)
	}

	f.logger.Info("Initialized remote debtor backend",
		"api_base_url", config.APIBaseURL,
		"timeout", config.APITimeout,
		"snapshots", f.snapshots != nil)

	return &BackendResult{
		Backend:  backend,
		Sessions: client,
		Checks:   map[string]Pinger{"debtor_api": client},
	}
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = defaultDataDirectory
	}

	store, err := memory.NewFromFiles(dataDir, config.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Backend: store,
		Checks:  map[string]Pinger{},
	}, nil
}

// createCache builds the snapshot store. A Redis cache is pinged up front
// and registered as a readiness check.
func (f *DefaultFactory) createCache(ctx context.Context, config Config, checks map[string]Pinger) (cache.Store[[]core.Debtor], CleanupFunc, error) {
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	if config.Cache != RedisCache {
		local := cache.NewLocal[[]core.Debtor](snapshotEntries, ttl)
		manager := cache.NewManager()
		manager.Register(local)
		manager.StartCleanup(ttl)
		f.logger.Info("Using in-process debtor cache", "ttl", ttl)
		return local, func() error { manager.Stop(); return nil }, nil
	}

	client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", config.RedisAddr, err)
	}
	checks["redis"] = redisPinger{client}

	f.logger.Info("Using redis debtor cache", "addr", config.RedisAddr, "ttl", ttl)
	return cache.NewRedis[[]core.Debtor](client, "lendbook:debtors", ttl), client.Close, nil
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
