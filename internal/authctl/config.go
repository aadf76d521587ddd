package authctl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Storage backends for the persisted session.
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

type Config struct {
	ProviderURL   string        `toml:"provider_url"`   // provider base URL (default: http://localhost:9999)
	APIKey        string        `toml:"api_key"`        // sent as the apikey header
	RedirectURL   string        `toml:"redirect_url"`   // where confirmation and recovery links land
	Storage       string        `toml:"storage"`        // file, redis or memory (default: file)
	StoragePath   string        `toml:"storage_path"`   // session file (default: ~/.authctl/session.json)
	RedisAddr     string        `toml:"redis_addr"`     // host:port for the redis backend
	RedisKey      string        `toml:"redis_key"`      // profile name under which the session is stored (default: default)
	Locale        string        `toml:"locale"`         // message language; German when unset
	HTTPTimeout   time.Duration `toml:"http_timeout"`   // per request (default: 10s)
	RefreshMargin time.Duration `toml:"refresh_margin"` // refresh this long before expiry (default: 60s)

	Env       string `toml:"env"`        // default: dev
	LogLevel  string `toml:"log_level"`  // default: warn
	LogFormat string `toml:"log_format"` // default: text
}

func defaultConfig() Config {
	return Config{
		ProviderURL:   "http://localhost:9999",
		Storage:       StorageFile,
		StoragePath:   filepath.Join(configDir(), "session.json"),
		RedisKey:      "default",
		HTTPTimeout:   10 * time.Second,
		RefreshMargin: 60 * time.Second,
		Env:           "dev",
		LogLevel:      "warn",
		LogFormat:     "text",
	}
}

// LoadConfig reads the TOML file at path, then applies environment
// overrides. An empty path means $AUTHCTL_CONFIG, or
// ~/.authctl/config.toml when that exists.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("AUTHCTL_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = filepath.Join(configDir(), "config.toml")
	}

	md, err := toml.DecodeFile(path, &cfg)
	switch {
	case err == nil:
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.ProviderURL = getEnvOrDefault("AUTH_PROVIDER_URL", cfg.ProviderURL)
	cfg.APIKey = getEnvOrDefault("AUTH_API_KEY", cfg.APIKey)
	cfg.RedirectURL = getEnvOrDefault("AUTH_REDIRECT_URL", cfg.RedirectURL)
	cfg.Storage = getEnvOrDefault("AUTH_STORAGE", cfg.Storage)
	cfg.StoragePath = getEnvOrDefault("AUTH_STORAGE_PATH", cfg.StoragePath)
	cfg.RedisAddr = getEnvOrDefault("AUTH_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisKey = getEnvOrDefault("AUTH_REDIS_KEY", cfg.RedisKey)
	cfg.Locale = getEnvOrDefault("AUTH_LOCALE", cfg.Locale)
	cfg.HTTPTimeout = getEnvDurationOrDefault("AUTH_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.RefreshMargin = getEnvDurationOrDefault("AUTH_REFRESH_MARGIN", cfg.RefreshMargin)
	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)

	if cfg.Locale == "" {
		// LANG looks like en_AU.UTF-8.
		lang, _, _ := strings.Cut(os.Getenv("LANG"), ".")
		cfg.Locale = strings.ReplaceAll(lang, "_", "-")
	}

	return cfg, cfg.Validate()
}

// Validate checks the fields that cannot fall back to a default.
func (c Config) Validate() error {
	if c.ProviderURL == "" {
		return errors.New("provider_url is required")
	}
	switch c.Storage {
	case StorageFile:
		if c.StoragePath == "" {
			return errors.New("storage_path is required for file storage")
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return errors.New("redis_addr is required for redis storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q (want file, redis or memory)", c.Storage)
	}
	return nil
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".authctl"
	}
	return filepath.Join(home, ".authctl")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
