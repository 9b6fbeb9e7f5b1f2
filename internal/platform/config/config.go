package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	AdapterPostgres = "postgres"
	AdapterMemory   = "memory"

	// DefaultJWTSecret is only accepted outside production.
	DefaultJWTSecret = "dev-secret-key-change-in-production"

	passwordPlaceholder = "<PASSWORD>"
)

// Server captures HTTP server level configuration.
type Server struct {
	Env                string
	Port               string
	APIURL             string
	LogLevel           string
	TrustProxy         bool
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	BodyLimit          int64

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Google   GoogleConfig
	S3       S3Config
	Email    EmailConfig
}

type DatabaseConfig struct {
	// Adapter selects the document store: postgres or memory.
	Adapter         string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether Google sign-in is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string
}

// Enabled reports whether object storage is configured. Without it uploads
// are kept in memory.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether an SMTP relay is configured. Without it emails
// are logged.
func (e EmailConfig) Enabled() bool {
	return e.Host != ""
}

func (s Server) Production() bool {
	return s.Env == EnvProduction
}

// Addr is the listen address.
func (s Server) Addr() string {
	return ":" + s.Port
}

// GoogleRedirectURL is the callback registered with Google.
func (s Server) GoogleRedirectURL() string {
	return strings.TrimSuffix(s.APIURL, "/") + "/api/v1/auth/google/callback"
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Server, error) {
	r := reader{lookup: lookup}
	cfg := Server{
		Env:                r.str("APP_ENV", EnvDevelopment),
		Port:               r.str("PORT", "8000"),
		LogLevel:           r.str("LOG_LEVEL", "info"),
		TrustProxy:         r.flag("TRUST_PROXY", false),
		RateLimitPerMinute: r.number("RATE_LIMIT_PER_MINUTE", 10),
		RequestTimeout:     r.duration("REQUEST_TIMEOUT", 30*time.Second),
		BodyLimit:          int64(r.number("BODY_LIMIT_BYTES", 50<<20)),
		Database: DatabaseConfig{
			Adapter:         r.str("DB_ADAPTER", AdapterMemory),
			URL:             databaseURL(r.str("DATABASE_URL", ""), r.str("DATABASE_PASSWORD", "")),
			MaxOpenConns:    r.number("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    r.number("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: r.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          r.str("REDIS_URL", ""),
			PoolSize:     r.number("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.number("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:  r.str("JWT_SECRET", DefaultJWTSecret),
			TokenTTL:   r.duration("JWT_EXPIRES_IN", 30*24*time.Hour),
			BcryptCost: r.number("BCRYPT_COST", 12),
		},
		Google: GoogleConfig{
			ClientID:     r.str("GOOGLE_CLIENT_ID", ""),
			ClientSecret: r.str("GOOGLE_CLIENT_SECRET", ""),
		},
		S3: S3Config{
			Endpoint:  r.str("S3_ENDPOINT", ""),
			Region:    r.str("S3_REGION", "us-east-1"),
			Bucket:    r.str("S3_BUCKET", ""),
			AccessKey: r.str("S3_ACCESS_KEY", ""),
			SecretKey: r.str("S3_SECRET_KEY", ""),
			PublicURL: r.str("S3_PUBLIC_URL", ""),
		},
		Email: EmailConfig{
			Host:     r.str("EMAIL_HOST", ""),
			Port:     r.number("EMAIL_PORT", 587),
			Username: r.str("EMAIL_USERNAME", ""),
			Password: r.str("EMAIL_PASSWORD", ""),
			From:     r.str("EMAIL_FROM", "no-reply@eshop.local"),
		},
	}
	cfg.APIURL = r.str("API_URL", "http://localhost:"+cfg.Port)

	if err := errors.Join(r.errs...); err != nil {
		return Server{}, err
	}
	return cfg, cfg.validate()
}

func (s Server) validate() error {
	var errs []error
	switch s.Env {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV must be %s or %s, got %q", EnvDevelopment, EnvProduction, s.Env))
	}
	switch s.Database.Adapter {
	case AdapterMemory:
	case AdapterPostgres:
		if s.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required with DB_ADAPTER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_ADAPTER must be %s or %s, got %q", AdapterPostgres, AdapterMemory, s.Database.Adapter))
	}
	if s.Production() && s.Auth.JWTSecret == DefaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if s.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN must be positive"))
	}
	if s.RateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}
	return errors.Join(errs...)
}

// databaseURL substitutes the <PASSWORD> placeholder.
func databaseURL(raw, password string) string {
	return strings.ReplaceAll(raw, passwordPlaceholder, password)
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) str(key, fallback string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (r *reader) number(key string, fallback int) int {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (r *reader) flag(key string, fallback bool) bool {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

// duration accepts Go durations and the day suffix used by JWT_EXPIRES_IN
// ("90d").
func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
