package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values. It is constructed once at
// startup and never mutated afterwards.
type Config struct {
	Environment string
	HTTPPort    string
	DatabaseURL string
	ServiceName string

	// SigningKeyPEM is the Ed25519 private key used to issue session
	// tokens. VerifyingKeyPEM is optional; when empty the public half is
	// derived from the signing key at startup.
	SigningKeyPEM   []byte
	VerifyingKeyPEM []byte

	MigrateOnStart bool

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	MemberCacheTTL time.Duration

	RateLimitRPM      int
	TelemetryEndpoint string
	TelemetryInsecure bool

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool

	// Optional startup seeding. All three must be set to enable it.
	AdminEmail       string
	AdminPassword    string
	DefaultWorkspace string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "6688"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		ServiceName:          getEnv("SERVICE_NAME", "chatd"),
		MigrateOnStart:       getBool("MIGRATE_ON_START", true),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		MemberCacheTTL:       getDuration("MEMBER_CACHE_TTL", time.Minute),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
		AdminEmail:           strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:        strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
		DefaultWorkspace:     strings.TrimSpace(os.Getenv("DEFAULT_WORKSPACE")),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	signing, err := keyMaterial("AUTH_SIGNING_KEY")
	if err != nil {
		return Config{}, err
	}
	if len(signing) == 0 {
		return Config{}, fmt.Errorf("AUTH_SIGNING_KEY or AUTH_SIGNING_KEY_FILE is required")
	}
	cfg.SigningKeyPEM = signing

	verifying, err := keyMaterial("AUTH_VERIFYING_KEY")
	if err != nil {
		return Config{}, err
	}
	cfg.VerifyingKeyPEM = verifying

	return cfg, nil
}

// keyMaterial reads a PEM value either inline from <name> or from the file
// named by <name>_FILE.
func keyMaterial(name string) ([]byte, error) {
	if inline := os.Getenv(name); strings.TrimSpace(inline) != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv(name + "_FILE"))
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s_FILE: %w", name, err)
	}
	return data, nil
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
