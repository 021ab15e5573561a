package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/apexdraft/internal/paths"
	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "APEXDRAFT"

	cfgKeyDataDir = "data_dir"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# apexdraft configuration
# Every key can be overridden with an APEXDRAFT_<KEY> environment variable.

# Storage backend: sqlite, redis or postgres
backend: sqlite

# sqlite data directory (optional; overridable by --data-dir)
# data_dir:

# redis_addr: localhost:6379
# redis_namespace: "apexdraft:"
# postgres_dsn: postgres://apexdraft@localhost:5432/apexdraft

listen_addr: ":8080"
page_size: 20
max_page_size: 100

# YAML file with users and chats written to empty collections
# seed_file:

openf1_base_url: https://api.openf1.org/v1
openf1_rate: 5
openf1_timeout: 10s
# OpenF1 session_key for driver data; "latest" follows the current session
openf1_session: latest

# OTLP/HTTP collector, e.g. localhost:4318; empty disables tracing
# otel_endpoint:

log_level: info
log_format: text
`

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"backend":    "backend",
	"listen":     "listen_addr",
	"seed-file":  "seed_file",
	"log-level":  "log_level",
	"log-format": "log_format",
}

// loadedConfig is the result of resolving directories and reading config.yaml.
type loadedConfig struct {
	configDir string
	cfg       types.Config
}

// loadConfig resolves the config directory, creates it and a default
// config.yaml on first run, and merges file, environment and flag values
// (flags > env > file > defaults). data_dir follows its own precedence:
// flag > config.yaml > APEXDRAFT_DATA_DIR > $(CWD)/.apexdraft-db.
func loadConfig(flags *rootFlags, fs *pflag.FlagSet) (*loadedConfig, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	// Read before env binding so the environment cannot outrank the file.
	fileDataDir := v.GetString(cfgKeyDataDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.DataDir, err = paths.ResolveDataDir(flags.dataDir, fileDataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", filepath.Join(configDir, configFileExt), err)
	}
	return &loadedConfig{configDir: configDir, cfg: cfg}, nil
}

func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()
	v.SetDefault("backend", d.Backend)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_namespace", d.RedisNamespace)
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("max_page_size", d.MaxPageSize)
	v.SetDefault("seed_file", "")
	v.SetDefault("openf1_base_url", d.OpenF1BaseURL)
	v.SetDefault("openf1_rate", d.OpenF1Rate)
	v.SetDefault("openf1_timeout", d.OpenF1Timeout)
	v.SetDefault("openf1_session", d.OpenF1Session)
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
