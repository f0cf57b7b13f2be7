package backend

import (
	"fmt"
	"time"

	"lendbook/internal/config"
)

const (
	defaultDataDirectory = "data"
	defaultCacheTTL      = 5 * time.Minute
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Type:          BackendType(appConfig.DataBackend),
		APIBaseURL:    appConfig.APIBaseURL,
		APITimeout:    appConfig.APITimeout,
		DataDirectory: appConfig.DataDir,
		Cache:         CacheType(appConfig.CacheBackend),
		CacheTTL:      appConfig.CacheTTL,
		RedisAddr:     appConfig.RedisAddr,
		Location:      appConfig.Location(),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case RemoteBackend:
		if c.APIBaseURL == "" {
			return fmt.Errorf("API base URL is required for remote backend")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data" when empty
	}

	if c.Cache != "" && !c.Cache.IsValid() {
		return fmt.Errorf("invalid cache backend: %s", c.Cache)
	}
	if c.Cache == RedisCache && c.RedisAddr == "" {
		return fmt.Errorf("Redis address is required for redis cache")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{RemoteBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
