package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr       string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	JWTSecret  string

	LogLevel  string
	LogFormat string

	MuxTokenID     string
	MuxTokenSecret string
	MuxAPIBase     string
	RemoteTimeout  time.Duration
	ProviderMock   bool

	WebhookSecret      string
	WebhookTolerance   time.Duration
	WebhookInsecureDev bool

	SigningSecret    string
	StreamHost       string
	PlaybackURLTTL   time.Duration
	PlaybackCacheTTL time.Duration
	UploadCORSOrigin string

	RedisURL    string
	MongoURL    string
	MongoDB     string
	DatabaseURL string

	SeedDemoUsers   bool
	ShutdownTimeout time.Duration
}

// Load reads .env files (process environment wins) and then the environment.
func Load() Config {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
	return Config{
		Addr:       env("LEARNSTREAM_ADDR", ":8080"),
		AccessTTL:  envDuration("LEARNSTREAM_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: envDuration("LEARNSTREAM_REFRESH_TTL", 14*24*time.Hour),
		JWTSecret:  env("LEARNSTREAM_JWT_SECRET", "dev-change-me"),

		LogLevel:  env("LEARNSTREAM_LOG_LEVEL", "info"),
		LogFormat: env("LEARNSTREAM_LOG_FORMAT", "json"),

		MuxTokenID:     env("MUX_TOKEN_ID", ""),
		MuxTokenSecret: env("MUX_TOKEN_SECRET", ""),
		MuxAPIBase:     env("MUX_API_BASE", "https://api.mux.com/video/v1"),
		RemoteTimeout:  envDuration("LEARNSTREAM_REMOTE_TIMEOUT", 10*time.Second),
		ProviderMock:   envBool("LEARNSTREAM_PROVIDER_MOCK", false),

		WebhookSecret:      env("MUX_WEBHOOK_SECRET", ""),
		WebhookTolerance:   envDuration("LEARNSTREAM_WEBHOOK_TOLERANCE", 5*time.Minute),
		WebhookInsecureDev: envBool("LEARNSTREAM_WEBHOOK_INSECURE_DEV", false),

		SigningSecret:    env("MUX_SIGNING_SECRET", ""),
		StreamHost:       env("MUX_STREAM_HOST", "stream.mux.com"),
		PlaybackURLTTL:   envDuration("LEARNSTREAM_PLAYBACK_URL_TTL", 5*time.Minute),
		PlaybackCacheTTL: envDuration("LEARNSTREAM_PLAYBACK_CACHE_TTL", 4*time.Minute),
		UploadCORSOrigin: env("LEARNSTREAM_UPLOAD_CORS_ORIGIN", "*"),

		RedisURL:    env("REDIS_URL", ""),
		MongoURL:    env("MONGO_URL", ""),
		MongoDB:     env("MONGO_DB", "learnstream"),
		DatabaseURL: env("DATABASE_URL", ""),

		SeedDemoUsers:   envBool("LEARNSTREAM_SEED_DEMO_USERS", true),
		ShutdownTimeout: envDuration("LEARNSTREAM_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Validate rejects configurations that would silently weaken webhook auth
// or store synthesized asset data.
func (c Config) Validate() error {
	if c.WebhookSecret == "" && !c.WebhookInsecureDev {
		return errors.New("MUX_WEBHOOK_SECRET is required (set LEARNSTREAM_WEBHOOK_INSECURE_DEV=true for local development only)")
	}
	if !c.HasProviderCredentials() && !c.ProviderMock {
		return errors.New("MUX_TOKEN_ID and MUX_TOKEN_SECRET are required (set LEARNSTREAM_PROVIDER_MOCK=true for local development only)")
	}
	if c.PlaybackURLTTL <= 0 {
		return errors.New("LEARNSTREAM_PLAYBACK_URL_TTL must be positive")
	}
	if c.MongoURL != "" && c.MongoDB == "" {
		return errors.New("MONGO_DB is required when MONGO_URL is set")
	}
	return nil
}

func (c Config) HasProviderCredentials() bool {
	return c.MuxTokenID != "" && c.MuxTokenSecret != ""
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
