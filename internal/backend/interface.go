// Package backend assembles the debtor directory the commands run against.
package backend

import (
	"context"
	"time"

	"lendbook/internal/debtors"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Pinger is a dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendResult contains the directory and what it was built from.
type BackendResult struct {
	Directory *debtors.Directory
	Backend   debtors.Backend

	// Sessions is nil for backends without user sessions.
	Sessions debtors.SessionReader

	// Checks are the dependencies worth probing from a readiness endpoint.
	Checks  map[string]Pinger
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Remote specific
	APIBaseURL string
	APITimeout time.Duration

	// Memory specific
	DataDirectory string

	Cache    CacheType
	CacheTTL time.Duration
	// RedisAddr is used when Cache is RedisCache.
	RedisAddr string

	Location *time.Location
}

// BackendType represents the type of backend
type BackendType string

const (
	RemoteBackend BackendType = "remote"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case RemoteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// CacheType selects where the debtor snapshot is cached.
type CacheType string

const (
	LocalCache CacheType = "memory"
	RedisCache CacheType = "redis"
)

func (ct CacheType) IsValid() bool {
	return ct == LocalCache || ct == RedisCache
}
