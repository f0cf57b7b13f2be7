package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendbook/internal/config"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"remote", Config{Type: RemoteBackend, APIBaseURL: "http://api"}, false},
		{"remote without url", Config{Type: RemoteBackend}, true},
		{"unknown type", Config{Type: "sheets"}, true},
		{"unknown cache", Config{Type: MemoryBackend, Cache: "memcached"}, true},
		{"redis without addr", Config{Type: MemoryBackend, Cache: RedisCache}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "memory",
		DataDir:      "seed",
		CacheBackend: "memory",
		CacheTTL:     time.Minute,
		Timezone:     "Asia/Kolkata",
	})
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, cfg.Type)
	assert.Equal(t, "seed", cfg.DataDirectory)
	assert.Equal(t, "Asia/Kolkata", cfg.Location.String())
	assert.Equal(t, []string{"remote", "memory"}, GetBackendTypeStrings())
}

func TestCreateMemoryBackend(t *testing.T) {
	ctx := context.Background()
	result, err := NewFactory(nil, nil).CreateBackend(ctx, Config{
		Type:          MemoryBackend,
		DataDirectory: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = result.Cleanup() })

	list, err := result.Directory.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, result.Checks)
}

func TestCreateRemoteBackendWithRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	var calls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(api.Close)

	result, err := NewFactory(nil, nil).CreateBackend(ctx, Config{
		Type:       RemoteBackend,
		APIBaseURL: api.URL,
		APITimeout: time.Second,
		Cache:      RedisCache,
		RedisAddr:  mr.Addr(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = result.Cleanup() })

	assert.Contains(t, result.Checks, "debtor_api")
	assert.Contains(t, result.Checks, "redis")
	require.NoError(t, result.Checks["redis"].Ping(ctx))

	_, err = result.Directory.List(ctx)
	require.NoError(t, err)
	_, err = result.Directory.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second list is served from redis")
}

func TestCreateBackend_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewFactory(nil, nil).CreateBackend(context.Background(), Config{
		Type:          MemoryBackend,
		DataDirectory: t.TempDir(),
		Cache:         RedisCache,
		RedisAddr:     addr,
	})
	assert.ErrorContains(t, err, "connect to redis")
}
