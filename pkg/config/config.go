package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aryan0dhankhar/paymentsportal/internal/featureflags"
	"github.com/aryan0dhankhar/paymentsportal/pkg/database"
)

// MinBcryptCost is the lowest work factor accepted for password hashing.
const MinBcryptCost = 12

// Config holds the application configuration. It is built once by Load and
// passed by pointer to the components that need it; nothing mutates it after.
type Config struct {
	Environment        string   `mapstructure:"ENVIRONMENT"`
	ServerPort         int      `mapstructure:"SERVER_PORT"`
	LogLevel           string   `mapstructure:"LOG_LEVEL"`
	LogFormat          string   `mapstructure:"LOG_FORMAT"`
	CORSAllowedOrigins []string `mapstructure:"-"`

	StoreDriver     string `mapstructure:"STORE_DRIVER"`
	DBHost          string `mapstructure:"DB_HOST"`
	DBPort          int    `mapstructure:"DB_PORT"`
	DBUser          string `mapstructure:"DB_USER"`
	DBPassword      string `mapstructure:"DB_PASSWORD"`
	DBName          string `mapstructure:"DB_NAME"`
	DBSSLMode       string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns  int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns  int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	RedisURL        string `mapstructure:"REDIS_URL"`
	RabbitMQURL     string `mapstructure:"RABBITMQ_URL"`
	EventsExchange  string `mapstructure:"EVENTS_EXCHANGE"`
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	QueueMetricsJob string `mapstructure:"QUEUE_METRICS_SCHEDULE"`

	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	JWTIssuer      string        `mapstructure:"JWT_ISS"`
	JWTAudience    string        `mapstructure:"JWT_AUD"`
	AccessTTL      time.Duration `mapstructure:"-"`
	RefreshTTL     time.Duration `mapstructure:"-"`
	PasswordPepper string        `mapstructure:"PASSWORD_PEPPER"`
	BcryptCost     int           `mapstructure:"BCRYPT_COST"`
	HashWorkers    int           `mapstructure:"HASH_CONCURRENCY"`

	CSRFCookieName string `mapstructure:"CSRF_COOKIE_NAME"`
	CookieSecure   bool   `mapstructure:"COOKIE_SECURE"`

	AuthRateLimit  int           `mapstructure:"RATE_LIMIT_AUTH_MAX"`
	AuthRateWindow time.Duration `mapstructure:"RATE_LIMIT_AUTH_WINDOW"`
	APIRateLimit   int           `mapstructure:"RATE_LIMIT_API_MAX"`
	APIRateWindow  time.Duration `mapstructure:"RATE_LIMIT_API_WINDOW"`

	Flags *featureflags.Flags `mapstructure:"-"`
}

// ErrMissingSecret is returned when a required deployment secret is absent.
var ErrMissingSecret = errors.New("required configuration missing")

var requiredKeys = []string{
	"JWT_SECRET",
	"JWT_ISS",
	"JWT_AUD",
	"JWT_ACCESS_TTL",
	"JWT_REFRESH_TTL",
	"PASSWORD_PEPPER",
}

// Load reads configuration from an optional .env file in the working
// directory and from environment variables, which take precedence.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with an explicit directory for the optional .env file.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "payments")
	v.SetDefault("DB_PASSWORD", "dev")
	v.SetDefault("DB_NAME", "payments")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("EVENTS_EXCHANGE", "payments.events")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("QUEUE_METRICS_SCHEDULE", "@every 1m")
	v.SetDefault("BCRYPT_COST", MinBcryptCost)
	v.SetDefault("HASH_CONCURRENCY", 4)
	v.SetDefault("CSRF_COOKIE_NAME", "__Host-csrf")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("RATE_LIMIT_AUTH_MAX", 30)
	v.SetDefault("RATE_LIMIT_AUTH_WINDOW", "10m")
	v.SetDefault("RATE_LIMIT_API_MAX", 120)
	v.SetDefault("RATE_LIMIT_API_WINDOW", "1m")

	for _, key := range requiredKeys {
		_ = v.BindEnv(key)
	}
	for _, name := range featureflags.Known {
		_ = v.BindEnv(featureflags.EnvKey(name))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingSecret, strings.Join(missing, ", "))
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	var err error
	if cfg.AccessTTL, err = ParseTTL(v.GetString("JWT_ACCESS_TTL")); err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TTL: %w", err)
	}
	if cfg.RefreshTTL, err = ParseTTL(v.GetString("JWT_REFRESH_TTL")); err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_TTL: %w", err)
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, fmt.Errorf("JWT_REFRESH_TTL (%s) must exceed JWT_ACCESS_TTL (%s)", cfg.RefreshTTL, cfg.AccessTTL)
	}
	if cfg.BcryptCost < MinBcryptCost {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %d is below the minimum of %d", cfg.BcryptCost, MinBcryptCost)
	}
	if cfg.HashWorkers <= 0 {
		return nil, fmt.Errorf("invalid HASH_CONCURRENCY: %d", cfg.HashWorkers)
	}
	switch cfg.StoreDriver {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}

	cfg.CORSAllowedOrigins = parseCSV(v.GetString("CORS_ALLOWED_ORIGINS"))
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.RabbitMQURL = strings.TrimSpace(cfg.RabbitMQURL)

	flags := make(map[string]bool, len(featureflags.Known))
	for _, name := range featureflags.Known {
		flags[name] = featureflags.ParseBool(v.GetString(featureflags.EnvKey(name)))
	}
	cfg.Flags = featureflags.New(flags)

	return cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Database returns the connection pool settings derived from this config.
func (c *Config) Database() *database.Config {
	return &database.Config{
		Host:            c.DBHost,
		Port:            c.DBPort,
		User:            c.DBUser,
		Password:        c.DBPassword,
		Database:        c.DBName,
		SSLMode:         c.DBSSLMode,
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// ParseTTL parses a Go duration, additionally accepting a whole-day suffix
// such as "7d".
func ParseTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil {
			return 0, fmt.Errorf("bad day count %q", raw)
		}
		if days <= 0 {
			return 0, fmt.Errorf("ttl must be positive: %q", raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("ttl must be positive: %q", raw)
	}
	return d, nil
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
