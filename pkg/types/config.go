package types

import (
	"errors"
	"time"
)

// Config holds backend selection and runtime parameters for the server and CLI.
type Config struct {
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	ListenAddr string `json:"listen_addr" yaml:"listen_addr" mapstructure:"listen_addr"`

	RedisAddr      string `json:"redis_addr" yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword  string `json:"redis_password" yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB        int    `json:"redis_db" yaml:"redis_db" mapstructure:"redis_db"`
	RedisNamespace string `json:"redis_namespace" yaml:"redis_namespace" mapstructure:"redis_namespace"`

	PostgresDSN string `json:"postgres_dsn" yaml:"postgres_dsn" mapstructure:"postgres_dsn"`

	PageSize    int    `json:"page_size" yaml:"page_size" mapstructure:"page_size"`
	MaxPageSize int    `json:"max_page_size" yaml:"max_page_size" mapstructure:"max_page_size"`
	SeedFile    string `json:"seed_file" yaml:"seed_file" mapstructure:"seed_file"`

	OpenF1BaseURL string        `json:"openf1_base_url" yaml:"openf1_base_url" mapstructure:"openf1_base_url"`
	OpenF1Rate    float64       `json:"openf1_rate" yaml:"openf1_rate" mapstructure:"openf1_rate"`
	OpenF1Timeout time.Duration `json:"openf1_timeout" yaml:"openf1_timeout" mapstructure:"openf1_timeout"`
	OpenF1Session string        `json:"openf1_session" yaml:"openf1_session" mapstructure:"openf1_session"`

	OTelEndpoint string `json:"otel_endpoint" yaml:"otel_endpoint" mapstructure:"otel_endpoint"`

	LogLevel  string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" mapstructure:"log_format"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Defaults applied by DefaultConfig and by the CLI config loader.
const (
	DefaultListenAddr     = ":8080"
	DefaultPageSize       = 20
	DefaultMaxPageSize    = 100
	DefaultRedisNamespace = "apexdraft:"
	DefaultOpenF1BaseURL  = "https://api.openf1.org/v1"
	DefaultOpenF1Rate     = 5.0
	DefaultOpenF1Timeout  = 10 * time.Second
	DefaultOpenF1Session  = "latest"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// Config validation errors.
var (
	ErrBackendEmpty     = errors.New("backend must not be empty")
	ErrBackendUnknown   = errors.New("unknown backend")
	ErrRedisAddrEmpty   = errors.New("redis backend requires redis_addr")
	ErrPostgresDSNEmpty = errors.New("postgres backend requires postgres_dsn")
	ErrPageSizeInvalid  = errors.New("page size must be positive and not exceed max page size")
	ErrLogFormatUnknown = errors.New("unknown log format")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendRedis:    true,
	BackendPostgres: true,
}

// DefaultConfig returns a Config for the local sqlite backend.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendSQLite,
		ListenAddr:     DefaultListenAddr,
		RedisNamespace: DefaultRedisNamespace,
		PageSize:       DefaultPageSize,
		MaxPageSize:    DefaultMaxPageSize,
		OpenF1BaseURL:  DefaultOpenF1BaseURL,
		OpenF1Rate:     DefaultOpenF1Rate,
		OpenF1Timeout:  DefaultOpenF1Timeout,
		OpenF1Session:  DefaultOpenF1Session,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
	}
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendRedis && c.RedisAddr == "" {
		return ErrRedisAddrEmpty
	}
	if c.Backend == BackendPostgres && c.PostgresDSN == "" {
		return ErrPostgresDSNEmpty
	}
	if c.PageSize < 0 || c.MaxPageSize < 0 {
		return ErrPageSizeInvalid
	}
	if c.PageSize > 0 && c.MaxPageSize > 0 && c.PageSize > c.MaxPageSize {
		return ErrPageSizeInvalid
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return ErrLogFormatUnknown
	}
	return nil
}
