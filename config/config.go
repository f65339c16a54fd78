package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"

	DefaultPort                   = "8080"
	DefaultAccessTokenTTL         = 15 * time.Minute
	DefaultRefreshTokenTTL        = 7 * 24 * time.Hour
	DefaultBcryptCost             = 12
	DefaultMaxActiveRefreshTokens = 5
	DefaultLoginMaxAttempts       = 5
	DefaultLoginWindow            = 15 * time.Minute
	DefaultRateLimitRPS           = 10
	DefaultRateLimitBurst         = 20
	DefaultLogLevel               = "info"
	DefaultMongoDatabase          = "hr_admin"
	DefaultKafkaTopic             = "auth-events"
)

type Config struct {
	Env      string
	Port     string
	LogLevel string

	StoreDriver    string
	DBURL          string
	MigrateOnStart bool
	MongoURI       string
	MongoDatabase  string

	AccessTokenSecret   string
	RefreshTokenSecret  string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	RotateRefreshTokens bool

	BcryptCost             int
	MaxActiveRefreshTokens int
	LoginMaxAttempts       int
	LoginWindow            time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	OTLPEndpoint string
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// loader resolves keys from the environment first, then from the env file,
// and collects every problem instead of stopping at the first one.
type loader struct {
	file map[string]string
	errs []error
}

// Load reads config/.env.dev or config/.env.prod (chosen by ENV) and then the
// process environment, which takes precedence. Secrets are never defaulted.
func Load() (*Config, error) {
	env := getEnv("ENV", EnvDevelopment)
	l := &loader{file: readEnvFile(env)}
	cfg := &Config{
		Env:      env,
		Port:     l.getOr("PORT", DefaultPort),
		LogLevel: l.getOr("LOG_LEVEL", DefaultLogLevel),

		StoreDriver:    strings.ToLower(l.getOr("STORE_DRIVER", StoreDriverPostgres)),
		MigrateOnStart: l.bool("MIGRATE_ON_START", true),
		MongoDatabase:  l.getOr("MONGO_DATABASE", DefaultMongoDatabase),

		AccessTokenSecret:   l.required("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret:  l.required("REFRESH_TOKEN_SECRET"),
		RotateRefreshTokens: l.bool("ROTATE_REFRESH_TOKENS", false),

		BcryptCost:             l.int("BCRYPT_COST", DefaultBcryptCost),
		MaxActiveRefreshTokens: l.int("MAX_ACTIVE_REFRESH_TOKENS", DefaultMaxActiveRefreshTokens),
		LoginMaxAttempts:       l.int("LOGIN_MAX_ATTEMPTS", DefaultLoginMaxAttempts),
		LoginWindow:            l.duration("LOGIN_WINDOW", DefaultLoginWindow),

		RateLimitRPS:   l.int("RATE_LIMIT_RPS", DefaultRateLimitRPS),
		RateLimitBurst: l.int("RATE_LIMIT_BURST", DefaultRateLimitBurst),

		RedisURL:     l.get("REDIS_URL"),
		KafkaBrokers: splitList(l.get("KAFKA_BROKERS")),
		KafkaTopic:   l.getOr("KAFKA_TOPIC", DefaultKafkaTopic),

		GoogleClientID:     l.get("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: l.get("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  l.get("GOOGLE_REDIRECT_URL"),

		OTLPEndpoint: l.get("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	// Production builds must state token lifetimes explicitly.
	if cfg.IsProduction() {
		cfg.AccessTokenTTL = l.requiredDuration("ACCESS_TOKEN_TTL")
		cfg.RefreshTokenTTL = l.requiredDuration("REFRESH_TOKEN_TTL")
	} else {
		cfg.AccessTokenTTL = l.duration("ACCESS_TOKEN_TTL", DefaultAccessTokenTTL)
		cfg.RefreshTokenTTL = l.duration("REFRESH_TOKEN_TTL", DefaultRefreshTokenTTL)
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		cfg.DBURL = l.required("DB_URL")
	case StoreDriverMongo:
		cfg.MongoURI = l.required("MONGO_URI")
	default:
		l.errs = append(l.errs, fmt.Errorf("Invalid config STORE_DRIVER: %q", cfg.StoreDriver))
	}

	if cfg.AccessTokenSecret != "" && cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		l.errs = append(l.errs, errors.New("Invalid config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		l.errs = append(l.errs, fmt.Errorf("Invalid config BCRYPT_COST: %d is outside [%d, %d]",
			cfg.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
	}
	if cfg.MaxActiveRefreshTokens < 1 {
		l.errs = append(l.errs, errors.New("Invalid config MAX_ACTIVE_REFRESH_TOKENS: must be at least 1"))
	}

	if len(l.errs) > 0 {
		return nil, errors.Join(l.errs...)
	}
	return cfg, nil
}

// MustLoad terminates the process when the configuration is unusable.
func MustLoad(logger *zap.Logger) *Config {
	cfg, err := Load()
	if err != nil {
		logger.Fatal(err.Error())
	}
	return cfg
}

func readEnvFile(env string) map[string]string {
	name := ".env.dev"
	if env == EnvProduction {
		name = ".env.prod"
	}
	values, err := godotenv.Read(filepath.Join("config", name))
	if err != nil {
		// A missing file is fine; the environment may carry everything.
		return map[string]string{}
	}
	return values
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func (l *loader) get(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return l.file[key]
}

func (l *loader) getOr(key, defaultVal string) string {
	if value := l.get(key); value != "" {
		return value
	}
	return defaultVal
}

func (l *loader) required(key string) string {
	value := l.get(key)
	if value == "" {
		l.errs = append(l.errs, fmt.Errorf("Missing required config: %s", key))
	}
	return value
}

func (l *loader) requiredDuration(key string) time.Duration {
	raw := l.required(key)
	if raw == "" {
		return 0
	}
	return l.parseDuration(key, raw)
}

func (l *loader) duration(key string, defaultVal time.Duration) time.Duration {
	raw := l.get(key)
	if raw == "" {
		return defaultVal
	}
	return l.parseDuration(key, raw)
}

func (l *loader) parseDuration(key, raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		l.errs = append(l.errs, fmt.Errorf("Invalid config %s: %q is not a positive duration", key, raw))
		return 0
	}
	return d
}

func (l *loader) int(key string, defaultVal int) int {
	raw := l.get(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("Invalid config %s: %q is not an integer", key, raw))
		return defaultVal
	}
	return v
}

func (l *loader) bool(key string, defaultVal bool) bool {
	raw := l.get(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("Invalid config %s: %q is not a boolean", key, raw))
		return defaultVal
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
