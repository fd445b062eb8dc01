package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	strutil "contacts/pkg/platform/strings"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Server captures server level configuration. It is resolved once in main
// and passed down; no other package reads the environment.
type Server struct {
	Addr            string        `yaml:"addr"`
	APIPrefix       string        `yaml:"api_prefix"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Store       StoreConfig       `yaml:"store"`
	Pagination  PaginationConfig  `yaml:"pagination"`
	Redis       RedisConfig       `yaml:"redis"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Log         LogConfig         `yaml:"log"`
}

// StoreConfig selects and configures the contact store.
type StoreConfig struct {
	Driver         string `yaml:"driver"`
	SQLitePath     string `yaml:"sqlite_path"`
	PostgresURL    string `yaml:"postgres_url"`
	PostgresDriver string `yaml:"postgres_driver"` // pgx or postgres (lib/pq)
}

// PaginationConfig bounds list requests.
type PaginationConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// RedisConfig configures the optional Redis connection. An empty URL means
// Redis is not used.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// IdempotencyConfig controls Idempotency-Key handling.
type IdempotencyConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// RateLimitConfig caps requests per client IP on the contacts API. Zero
// Requests disables the limit.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// KafkaConfig configures the audit sink. No brokers means audit events are
// only logged.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Client captures terminal client configuration.
type Client struct {
	APIURL         string        `yaml:"api_url"`
	PageSize       int           `yaml:"page_size"`
	SearchDebounce time.Duration `yaml:"search_debounce"`
	StatusTimeout  time.Duration `yaml:"status_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Log            LogConfig     `yaml:"log"`
}

// Defaults returns the server configuration used when nothing is set.
func Defaults() Server {
	return Server{
		Addr:            ":8080",
		APIPrefix:       "/api",
		AllowedOrigins:  []string{"*"},
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Store: StoreConfig{
			Driver:         StoreSQLite,
			SQLitePath:     "contacts.db",
			PostgresDriver: "pgx",
		},
		Pagination: PaginationConfig{DefaultLimit: 5, MaxLimit: 100},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Idempotency: IdempotencyConfig{TTL: 24 * time.Hour},
		RateLimit:   RateLimitConfig{Requests: 300, Window: time.Minute},
		Kafka:       KafkaConfig{Topic: "contacts.audit"},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
}

// ClientDefaults returns the client configuration used when nothing is set.
func ClientDefaults() Client {
	return Client{
		APIURL:         "http://localhost:8080/api/contacts",
		PageSize:       5,
		SearchDebounce: 300 * time.Millisecond,
		StatusTimeout:  3 * time.Second,
		RequestTimeout: 10 * time.Second,
		Log:            LogConfig{Level: "info", Format: "json", File: os.DevNull},
	}
}

// FromEnv builds the server config from an optional YAML file named by
// CONTACTS_CONFIG, then environment overrides.
func FromEnv() (Server, error) {
	return LoadServer(os.Getenv)
}

// ClientFromEnv builds the client config the same way.
func ClientFromEnv() (Client, error) {
	return LoadClient(os.Getenv)
}

// LoadServer resolves server config using getenv for lookups.
func LoadServer(getenv func(string) string) (Server, error) {
	cfg := Defaults()
	if err := overlayFile(getenv("CONTACTS_CONFIG"), &cfg); err != nil {
		return Server{}, err
	}

	var errs []error
	setString(getenv, "CONTACTS_ADDR", &cfg.Addr)
	if cfg.Addr == Defaults().Addr {
		if port := getenv("PORT"); port != "" {
			cfg.Addr = ":" + port
		}
	}
	setString(getenv, "CONTACTS_API_PREFIX", &cfg.APIPrefix)
	setList(getenv, "CONTACTS_ALLOWED_ORIGINS", &cfg.AllowedOrigins)
	errs = append(errs, setDuration(getenv, "CONTACTS_REQUEST_TIMEOUT", &cfg.RequestTimeout))
	errs = append(errs, setDuration(getenv, "CONTACTS_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout))

	setString(getenv, "CONTACTS_STORE", &cfg.Store.Driver)
	setString(getenv, "CONTACTS_SQLITE_PATH", &cfg.Store.SQLitePath)
	setString(getenv, "CONTACTS_DATABASE_URL", &cfg.Store.PostgresURL)
	setString(getenv, "CONTACTS_PG_DRIVER", &cfg.Store.PostgresDriver)

	errs = append(errs, setInt(getenv, "CONTACTS_DEFAULT_LIMIT", &cfg.Pagination.DefaultLimit))
	errs = append(errs, setInt(getenv, "CONTACTS_MAX_LIMIT", &cfg.Pagination.MaxLimit))

	setString(getenv, "CONTACTS_REDIS_URL", &cfg.Redis.URL)
	errs = append(errs, setInt(getenv, "CONTACTS_REDIS_POOL_SIZE", &cfg.Redis.PoolSize))
	errs = append(errs, setDuration(getenv, "CONTACTS_IDEMPOTENCY_TTL", &cfg.Idempotency.TTL))
	errs = append(errs, setInt(getenv, "CONTACTS_RATE_LIMIT", &cfg.RateLimit.Requests))
	errs = append(errs, setDuration(getenv, "CONTACTS_RATE_WINDOW", &cfg.RateLimit.Window))

	setList(getenv, "CONTACTS_KAFKA_BROKERS", &cfg.Kafka.Brokers)
	setString(getenv, "CONTACTS_KAFKA_TOPIC", &cfg.Kafka.Topic)

	setString(getenv, "CONTACTS_LOG_LEVEL", &cfg.Log.Level)
	setString(getenv, "CONTACTS_LOG_FORMAT", &cfg.Log.Format)
	setString(getenv, "CONTACTS_LOG_FILE", &cfg.Log.File)

	if err := errors.Join(errs...); err != nil {
		return Server{}, err
	}
	return cfg, cfg.Validate()
}

// LoadClient resolves client config using getenv for lookups.
func LoadClient(getenv func(string) string) (Client, error) {
	cfg := ClientDefaults()
	if err := overlayFile(getenv("CONTACTS_CONFIG"), &struct {
		Client *Client `yaml:"client"`
	}{&cfg}); err != nil {
		return Client{}, err
	}

	setString(getenv, "CONTACTS_API_URL", &cfg.APIURL)
	err := errors.Join(
		setInt(getenv, "CONTACTS_PAGE_SIZE", &cfg.PageSize),
		setDuration(getenv, "CONTACTS_SEARCH_DEBOUNCE", &cfg.SearchDebounce),
		setDuration(getenv, "CONTACTS_STATUS_TIMEOUT", &cfg.StatusTimeout),
		setDuration(getenv, "CONTACTS_CLIENT_TIMEOUT", &cfg.RequestTimeout),
	)
	setString(getenv, "CONTACTS_TUI_LOG_FILE", &cfg.Log.File)
	setString(getenv, "CONTACTS_LOG_LEVEL", &cfg.Log.Level)
	if err != nil {
		return Client{}, err
	}
	if cfg.APIURL == "" {
		return Client{}, errors.New("config: api url is required")
	}
	if cfg.PageSize <= 0 {
		return Client{}, fmt.Errorf("config: page size must be positive, got %d", cfg.PageSize)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (s Server) Validate() error {
	switch s.Store.Driver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if s.Store.PostgresURL == "" {
			return errors.New("config: postgres store requires CONTACTS_DATABASE_URL")
		}
		if s.Store.PostgresDriver != "pgx" && s.Store.PostgresDriver != "postgres" {
			return fmt.Errorf("config: unknown postgres driver %q", s.Store.PostgresDriver)
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", s.Store.Driver)
	}
	if s.Pagination.DefaultLimit <= 0 || s.Pagination.MaxLimit <= 0 {
		return errors.New("config: pagination limits must be positive")
	}
	if s.RateLimit.Requests < 0 {
		return fmt.Errorf("config: rate limit must not be negative, got %d", s.RateLimit.Requests)
	}
	if s.RateLimit.Requests > 0 && s.RateLimit.Window <= 0 {
		return errors.New("config: rate limit window must be positive")
	}
	if s.Pagination.DefaultLimit > s.Pagination.MaxLimit {
		return fmt.Errorf("config: default limit %d exceeds max limit %d",
			s.Pagination.DefaultLimit, s.Pagination.MaxLimit)
	}
	return nil
}

// AllowsAnyOrigin reports whether CORS is open to every origin.
func (s Server) AllowsAnyOrigin() bool {
	for _, o := range s.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func overlayFile(path string, dst any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func setString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func setList(getenv func(string) string, key string, dst *[]string) {
	v := getenv(key)
	if v == "" {
		return
	}
	*dst = strutil.DedupeAndTrim(strings.Split(v, ","))
}

func setInt(getenv func(string) string, key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(getenv func(string) string, key string, dst *time.Duration) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}
