package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// HTTP Server
	Port             string        `envconfig:"PORT" default:"8081"`
	AppEnv           string        `envconfig:"APP_ENV" default:"development"`
	RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	RateLimitPerMin  int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	ExportRatePerMin int           `envconfig:"EXPORT_RATE_PER_MINUTE" default:"10"`
	BusinessName     string        `envconfig:"BUSINESS_NAME" default:"Lendbook"`
	AdminUsername    string        `envconfig:"ADMIN_USERNAME" default:"admin"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// Calendar dates are taken in this location
	Timezone string `envconfig:"TIMEZONE" default:"Asia/Kolkata"`

	// Debtor data source
	DataBackend string        `envconfig:"DATA_BACKEND" default:"remote"`
	DataDir     string        `envconfig:"DATA_DIR" default:"data"`
	APIBaseURL  string        `envconfig:"API_BASE_URL" default:"http://localhost:5000"`
	APITimeout  time.Duration `envconfig:"API_TIMEOUT" default:"15s"`

	// How often the server reloads the debtor list in the background
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"5m"`

	// Snapshot cache
	CacheBackend string        `envconfig:"CACHE_BACKEND" default:"memory"`
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	RedisAddr    string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	// Database
	SQLiteDBPath string `envconfig:"SQLITE_DB_PATH" default:"./data/lendbook.db"`

	// AMQP
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"lendbook"`
	AMQPQueue    string `envconfig:"AMQP_QUEUE" default:"report_requests"`

	// PDF rendering
	GotenbergURL string `envconfig:"GOTENBERG_URL" default:"http://127.0.0.1:3000"`

	// Google Sheets report sink
	GoogleSpreadsheetID      string `envconfig:"GOOGLE_SPREADSHEET_ID"`
	GoogleServiceAccountJSON string `envconfig:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `envconfig:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleOAuthClientJSON    string `envconfig:"GOOGLE_OAUTH_CLIENT_JSON"`
	GoogleOAuthClientFile    string `envconfig:"GOOGLE_OAUTH_CLIENT_FILE"`
	GoogleOAuthTokenJSON     string `envconfig:"GOOGLE_OAUTH_TOKEN_JSON"`
	GoogleOAuthTokenFile     string `envconfig:"GOOGLE_OAUTH_TOKEN_FILE"`
}

var (
	validBackends      = []string{"remote", "memory"}
	validCacheBackends = []string{"memory", "redis"}
	validLogFormats    = []string{"text", "json"}
)

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Location resolves Timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SheetsEnabled reports whether month reports should be written to Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "remote" {
		if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid API base URL '%s': must be an absolute http(s) URL", c.APIBaseURL))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
		if c.APITimeout < time.Second {
			errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be at least 1 second", c.APITimeout))
		}
	}

	if c.DataBackend == "memory" && c.DataDir == "" {
		errors = append(errors, "data directory cannot be empty when using memory backend")
	}

	// Validate cache
	if !slices.Contains(validCacheBackends, c.CacheBackend) {
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of %v", c.CacheBackend, validCacheBackends))
	}
	if c.CacheBackend == "redis" && c.RedisAddr == "" {
		errors = append(errors, "Redis address cannot be empty when using redis cache")
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	} else if c.CacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at most 24 hours", c.CacheTTL))
	}

	// Validate SQLite path
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GotenbergURL != "" {
		if u, err := url.Parse(c.GotenbergURL); err != nil || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid Gotenberg URL '%s'", c.GotenbergURL))
		}
	}

	// Validate Google Sheets credentials when a spreadsheet is configured
	if c.SheetsEnabled() {
		hasServiceAccount := c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
		hasClient := c.GoogleOAuthClientJSON != "" || c.GoogleOAuthClientFile != ""
		hasToken := c.GoogleOAuthTokenJSON != "" || c.GoogleOAuthTokenFile != ""
		switch {
		case hasServiceAccount:
		case hasClient && hasToken:
		case hasClient:
			errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided with OAuth client credentials")
		default:
			errors = append(errors, "Google Sheets requires service account or OAuth client credentials")
		}

		for _, f := range []string{c.GoogleServiceAccountFile, c.GoogleOAuthClientFile, c.GoogleOAuthTokenFile} {
			if f == "" {
				continue
			}
			if _, err := os.Stat(f); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", f))
			}
		}
	}

	if c.RateLimitPerMin < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMin))
	}
	if c.ExportRatePerMin < 1 {
		errors = append(errors, fmt.Sprintf("invalid export rate limit %d: must be at least 1", c.ExportRatePerMin))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
