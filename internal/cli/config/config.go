package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the memdb configuration
type Config struct {
	Fixture  string         `mapstructure:"fixture"`
	Log      LogConfig      `mapstructure:"log"`
	Identity IdentityConfig `mapstructure:"identity"`
	Query    QueryConfig    `mapstructure:"query"`
	Server   ServerConfig   `mapstructure:"server"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IdentityConfig selects the key generator
type IdentityConfig struct {
	Strategy string `mapstructure:"strategy"`
}

// QueryConfig represents query defaults
type QueryConfig struct {
	RecursiveDepth int `mapstructure:"recursive_depth"`
}

// ServerConfig represents explorer server configuration
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Metrics bool   `mapstructure:"metrics"`
}

// EnvPrefix prefixes environment overrides, e.g. MEMDB_LOG_LEVEL
const EnvPrefix = "MEMDB"

// New returns a viper instance with defaults, the memdb.yaml search path and
// environment overrides
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("identity.strategy", "uuid")
	v.SetDefault("fixture", "")
	v.SetDefault("query.recursive_depth", 3)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.metrics", true)

	v.SetConfigName("memdb")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load loads the configuration from memdb.yaml in the working directory
func Load() (*Config, error) {
	return LoadFrom(New(), "")
}

// LoadFrom reads configuration into v. An explicit path must exist; without
// one a missing memdb.yaml falls back to defaults.
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Fixture != "" && !filepath.IsAbs(config.Fixture) && v.ConfigFileUsed() != "" {
		config.Fixture = filepath.Join(filepath.Dir(v.ConfigFileUsed()), config.Fixture)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// FindConfig walks up from the working directory looking for memdb.yaml
func FindConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, name := range []string{"memdb.yaml", "memdb.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no memdb.yaml found")
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch strings.ToLower(cfg.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got: %s", cfg.Log.Format)
	}

	switch strings.ToLower(cfg.Identity.Strategy) {
	case "uuid", "ulid", "counter":
	default:
		return fmt.Errorf("identity.strategy must be uuid, ulid or counter, got: %s", cfg.Identity.Strategy)
	}

	if cfg.Query.RecursiveDepth < 0 {
		return fmt.Errorf("query.recursive_depth must not be negative, got: %d", cfg.Query.RecursiveDepth)
	}

	if cfg.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	return nil
}
