package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Server    ServerConfig
	Mongo     MongoConfig
	Auth      AuthConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
	Tours     ToursConfig
}

type ServerConfig struct {
	Env             string
	Port            string
	LogLevel        string
	// PublicURL is the externally reachable base used in emailed links.
	PublicURL       string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret     string
	JWTExpiresIn  time.Duration
	BcryptCost    int
	ResetTokenTTL time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
	Prefix  string
}

type EmailConfig struct {
	Provider      string // smtp, mailersend or log
	Host          string
	Port          string
	User          string
	Pass          string
	FromName      string
	FromAddress   string
	MailerSendKey string
}

type ToursConfig struct {
	// ListProtected gates GET /tours behind protect + restrictTo.
	ListProtected bool
	ListRoles     []string
	MaxPageSize   int
}

// IsProduction reports whether errors must be collapsed for clients.
func (c *Config) IsProduction() bool {
	return c.Server.Env == EnvProduction
}

// Load reads a .env file when present and builds the Config from the
// environment. Missing required values are reported together.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var missing []string
	required := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	port := getEnv("PORT", "8080")
	cfg := &Config{
		Server: ServerConfig{
			Env:             getEnv("APP_ENV", EnvDevelopment),
			Port:            port,
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			PublicURL:       strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:"+port), "/"),
			RequestTimeout:  getDuration("REQUEST_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Mongo: MongoConfig{
			URI:            required("MONGO_URI"),
			Database:       required("MONGO_DB"),
			ConnectTimeout: getDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:     required("JWT_SECRET"),
			JWTExpiresIn:  getDuration("JWT_EXPIRES_IN", 90*24*time.Hour),
			BcryptCost:    getInt("BCRYPT_COST", 12),
			ResetTokenTTL: getDuration("RESET_TOKEN_TTL", 10*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBool("RATE_LIMIT_ENABLED", true),
			Limit:   getInt("RATE_LIMIT_MAX", 10),
			Window:  getDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			Prefix:  getEnv("RATE_LIMIT_PREFIX", "rl"),
		},
		Email: EmailConfig{
			Provider:      strings.ToLower(getEnv("EMAIL_PROVIDER", "log")),
			Host:          getEnv("EMAIL_HOST", ""),
			Port:          getEnv("EMAIL_PORT", "587"),
			User:          getEnv("EMAIL_USERNAME", ""),
			Pass:          getEnv("EMAIL_PASSWORD", ""),
			FromName:      getEnv("EMAIL_FROM_NAME", "Natours"),
			FromAddress:   getEnv("EMAIL_FROM", "hello@natours.io"),
			MailerSendKey: getEnv("MAILERSEND_API_KEY", ""),
		},
		Tours: ToursConfig{
			ListProtected: getBool("TOURS_LIST_PROTECTED", true),
			ListRoles:     getList("TOURS_LIST_ROLES", []string{"admin", "lead-guide", "user"}),
			MaxPageSize:   getInt("MAX_PAGE_SIZE", 100),
		},
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Server.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Server.Env)
	}
	if u, err := url.Parse(c.Server.PublicURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PUBLIC_URL must be an absolute http(s) URL, got %q", c.Server.PublicURL)
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.Auth.JWTExpiresIn <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	if c.Tours.MaxPageSize < 1 {
		return errors.New("MAX_PAGE_SIZE must be at least 1")
	}
	switch c.Email.Provider {
	case "smtp", "mailersend", "log":
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Email.Provider)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// ParseDuration accepts Go durations plus a whole-day suffix ("90d"),
// which is how token expiry is usually written in env files.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
