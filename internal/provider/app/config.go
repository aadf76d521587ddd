package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	httpapi "github.com/aussiebroadwan/authclient/internal/provider/http"
)

type Config struct {
	Issuer      string // issuer claim for access tokens and default TOTP issuer (default: authclient-dev)
	SiteURL     string // default landing page after /verify (default: http://localhost:3000)
	ExternalURL string // public base URL used in emailed links (default: http://localhost:<port>)
	APIKey      string // Optional: required in the apikey header when set

	JWTSecret    string // Optional: HS256 secret, at least 32 bytes; random per start when empty
	Pepper       string // Optional: password pepper; read from PepperFile when empty
	PepperFile   string // path to the pepper file (default: ./pepper)
	DatabaseFile string // path to the SQLite database file (default: ./provider.db)

	AutoConfirm   bool          // skip email confirmation on sign up (default: false)
	DevOutbox     bool          // expose GET /_dev/outbox (default: true)
	AccessTTL     time.Duration // access token lifetime (default: 1h)
	RefreshTTL    time.Duration // refresh token lifetime (default: 30 days)
	LinkTTL       time.Duration // confirmation and recovery link lifetime (default: 24h)
	ChallengeTTL  time.Duration // MFA challenge lifetime (default: 5m)
	EmailInterval time.Duration // minimum gap between recovery mails per user (default: 60s)
	MaxFactors    int           // verified factors per user (default: 10)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 9999)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	Limits *httpapi.Limits // Optional: overrides the RATELIMIT_* profiles; not read from env
}

func LoadConfig() Config {
	port := getEnvIntOrDefault("PORT", 9999)

	return Config{
		Issuer:      getEnvOrDefault("PROVIDER_ISSUER", "authclient-dev"),
		SiteURL:     getEnvOrDefault("PROVIDER_SITE_URL", "http://localhost:3000"),
		ExternalURL: strings.TrimRight(getEnvOrDefault("PROVIDER_EXTERNAL_URL", "http://localhost:"+strconv.Itoa(port)), "/"),
		APIKey:      os.Getenv("PROVIDER_API_KEY"),

		JWTSecret:    os.Getenv("PROVIDER_JWT_SECRET"),
		Pepper:       os.Getenv("PROVIDER_PEPPER"),
		PepperFile:   getEnvOrDefault("PROVIDER_PEPPER_FILE", "pepper"),
		DatabaseFile: getEnvOrDefault("PROVIDER_DATABASE_FILE", "provider.db"),

		AutoConfirm:   getEnvBoolOrDefault("PROVIDER_AUTOCONFIRM", false),
		DevOutbox:     getEnvBoolOrDefault("PROVIDER_DEV_OUTBOX", true),
		AccessTTL:     getEnvDurationOrDefault("PROVIDER_ACCESS_TTL", time.Hour),
		RefreshTTL:    getEnvDurationOrDefault("PROVIDER_REFRESH_TTL", 30*24*time.Hour),
		LinkTTL:       getEnvDurationOrDefault("PROVIDER_LINK_TTL", 24*time.Hour),
		ChallengeTTL:  getEnvDurationOrDefault("PROVIDER_CHALLENGE_TTL", 5*time.Minute),
		EmailInterval: getEnvDurationOrDefault("PROVIDER_EMAIL_INTERVAL", time.Minute),
		MaxFactors:    getEnvIntOrDefault("PROVIDER_MAX_FACTORS", 10),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 port,
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
