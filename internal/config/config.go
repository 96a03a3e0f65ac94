package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment          string
	HTTPPort             string
	DatabaseURL          string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	GoogleClientID       string
	GoogleClientSecret   string
	CallbackURL          string
	ProductionURL        string
	SessionTTL           time.Duration
	StateTTL             time.Duration
	ServiceName          string
	RateLimitRPM         int
	StaticDir            string
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "3000"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		GoogleClientID:       strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleClientSecret:   strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		CallbackURL:          strings.TrimSpace(os.Getenv("CALLBACK_URL")),
		ProductionURL:        strings.TrimSpace(os.Getenv("PRODUCTION_URL")),
		SessionTTL:           getDuration("SESSION_TTL", 24*time.Hour),
		StateTTL:             getDuration("STATE_TTL", 5*time.Minute),
		ServiceName:          getEnv("SERVICE_NAME", "portal-auth"),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		StaticDir:            getEnv("STATIC_DIR", "public"),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return Config{}, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}
	if cfg.IsProduction() && cfg.CallbackURL == "" && cfg.ProductionURL == "" {
		return Config{}, fmt.Errorf("CALLBACK_URL or PRODUCTION_URL is required in production")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production hardening
// (secure cookies, cross-site session policy).
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// CallbackURLFor resolves the redirect URL presented to the provider for
// the given provider name. The value is computed once at startup and must
// match what was registered with the provider; there is no per-request
// derivation.
func (c Config) CallbackURLFor(provider string) string {
	if c.CallbackURL != "" {
		return c.CallbackURL
	}
	path := "/auth/" + provider + "/callback"
	if c.IsProduction() && c.ProductionURL != "" {
		return strings.TrimRight(c.ProductionURL, "/") + path
	}
	return "http://localhost:" + c.HTTPPort + path
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
