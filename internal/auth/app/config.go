package app

import (
	"os"
	"strconv"
	"time"
)

// SSOProviderConfig holds one upstream identity provider's credentials. The
// endpoint URLs default to the provider's public endpoints and only need
// overriding in tests.
type SSOProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
}

// Configured reports whether this provider should be registered.
func (c SSOProviderConfig) Configured() bool {
	return c.ClientID != ""
}

type Config struct {
	DatabaseFile  string // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile    string // Optional: path to pepper file for password hashing (default: ./pepper)
	MasterKeyPath string // Optional: path to master encryption key file (MFA secrets at rest)

	RedisAddr     string // Optional: session cache address (default: localhost:6379)
	RedisPassword string
	RedisDB       int

	StateSecret string // HMAC key for SSO state tokens; generated per-process when empty
	MFAIssuer   string // issuer label shown in authenticator apps (default: clubdeck)

	SessionTTL         time.Duration // default session lifetime (default: 24h)
	RememberMeTTL      time.Duration // remember-me session lifetime (default: 720h)
	MaxLoginFailures   int           // failures per window before lockout (default: 5)
	LoginFailureWindow time.Duration // lockout rolling window (default: 15m)

	Google    SSOProviderConfig
	Microsoft SSOProviderConfig

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	MonitorInterval      time.Duration // Security monitor scan interval (default: 5m)
}

func LoadConfig() Config {
	return Config{
		DatabaseFile:  getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:    getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		MasterKeyPath: os.Getenv("AUTH_MASTER_KEY_PATH"),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),

		StateSecret: os.Getenv("AUTH_STATE_SECRET"),
		MFAIssuer:   getEnvOrDefault("AUTH_MFA_ISSUER", "clubdeck"),

		SessionTTL:         getEnvDurationOrDefault("AUTH_SESSION_TTL", 24*time.Hour),
		RememberMeTTL:      getEnvDurationOrDefault("AUTH_REMEMBER_ME_TTL", 30*24*time.Hour),
		MaxLoginFailures:   getEnvIntOrDefault("AUTH_MAX_LOGIN_FAILURES", 5),
		LoginFailureWindow: getEnvDurationOrDefault("AUTH_LOGIN_FAILURE_WINDOW", 15*time.Minute),

		Google: SSOProviderConfig{
			ClientID:     os.Getenv("SSO_GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("SSO_GOOGLE_CLIENT_SECRET"),
			AuthURL: getEnvOrDefault("SSO_GOOGLE_AUTH_URL",
				"https://accounts.google.com/o/oauth2/v2/auth"),
			TokenURL: getEnvOrDefault("SSO_GOOGLE_TOKEN_URL",
				"https://oauth2.googleapis.com/token"),
			UserInfoURL: getEnvOrDefault("SSO_GOOGLE_USERINFO_URL",
				"https://openidconnect.googleapis.com/v1/userinfo"),
		},
		Microsoft: SSOProviderConfig{
			ClientID:     os.Getenv("SSO_MICROSOFT_CLIENT_ID"),
			ClientSecret: os.Getenv("SSO_MICROSOFT_CLIENT_SECRET"),
			AuthURL: getEnvOrDefault("SSO_MICROSOFT_AUTH_URL",
				"https://login.microsoftonline.com/common/oauth2/v2.0/authorize"),
			TokenURL: getEnvOrDefault("SSO_MICROSOFT_TOKEN_URL",
				"https://login.microsoftonline.com/common/oauth2/v2.0/token"),
			UserInfoURL: getEnvOrDefault("SSO_MICROSOFT_USERINFO_URL",
				"https://graph.microsoft.com/oidc/userinfo"),
		},

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		MonitorInterval:      getEnvDurationOrDefault("MONITOR_INTERVAL", 5*time.Minute),
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Accept duration strings ("1h", "30m") and bare integers as minutes.
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
