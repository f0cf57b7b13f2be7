package cache

import (
	"context"
	"log/slog"
	"time"

	"lendbook/internal/log"
)

// Store is a cache that may live outside the process, so every call can fail.
// Purge invalidates every key written so far.
type Store[T any] interface {
	Load(ctx context.Context, key string) (T, bool, error)
	Save(ctx context.Context, key string, value T) error
	Purge(ctx context.Context) error
}

// Versioned is a Store whose saves can be pinned to the version read before
// the value was computed. A pinned save that races a Purge lands under a
// retired version and is never read.
type Versioned[T any] interface {
	Version(ctx context.Context) (int64, error)
	SaveAt(ctx context.Context, version int64, key string, value T) error
}

// Local adapts an LRUCache to the Store interface.
type Local[T any] struct {
	lru *LRUCache[T]
}

func NewLocal[T any](maxSize int, ttl time.Duration) *Local[T] {
	return &Local[T]{lru: NewLRUCache[T](maxSize, ttl)}
}

func (l *Local[T]) Load(_ context.Context, key string) (T, bool, error) {
	v, ok := l.lru.Get(key)
	return v, ok, nil
}

func (l *Local[T]) Save(_ context.Context, key string, value T) error {
	l.lru.Set(key, value)
	return nil
}

func (l *Local[T]) Purge(context.Context) error {
	l.lru.Clear()
	return nil
}

// CleanExpired lets a Manager sweep the underlying LRU.
func (l *Local[T]) CleanExpired() int {
	return l.lru.CleanExpired()
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// NewManager creates a new cache manager
func NewManager() *Manager {
	return &Manager{
		caches:      make([]Cleaner, 0),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			totalCleaned := 0
			for _, cache := range m.caches {
				totalCleaned += cache.CleanExpired()
			}
			if totalCleaned > 0 {
				slog.Debug("Expired cache entries removed", log.FieldComponent, log.ComponentCache, "count", totalCleaned)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine. It must be called at most once,
// after StartCleanup.
func (m *Manager) Stop() {
	if m.stopCleanup != nil {
		close(m.stopCleanup)
		<-m.cleanupDone
	}
}
