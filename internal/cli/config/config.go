package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/criteria/internal/orm/contenttype"
	"github.com/conduit-lang/criteria/internal/orm/query"
)

// EnvPrefix prefixes environment overrides, e.g. CRITERIA_DATABASE_URL
const EnvPrefix = "CRITERIA"

var aliasPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config represents the criteria compiler configuration
type Config struct {
	SchemaFile       string         `mapstructure:"schema_file"`
	ContentTypesFile string         `mapstructure:"content_types_file"`
	Dialect          string         `mapstructure:"dialect"`
	RootAlias        string         `mapstructure:"root_alias"`
	Database         DatabaseConfig `mapstructure:"database"`
	Redis            RedisConfig    `mapstructure:"redis"`
	Log              LogConfig      `mapstructure:"log"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
	// Driver is the database/sql driver name. Empty picks one from the dialect.
	Driver string `mapstructure:"driver"`
}

// RedisConfig configures content-type reload notifications
type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads the configuration from criteria.yml or criteria.yaml in the
// working directory, or from path when it is not empty
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("schema_file", "schema.yaml")
	v.SetDefault("content_types_file", "content_types.yaml")
	v.SetDefault("dialect", "postgres")
	v.SetDefault("root_alias", query.DefaultRootAlias)
	v.SetDefault("database.url", "")
	v.SetDefault("database.driver", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.channel", contenttype.DefaultReloadChannel)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("criteria")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Enable environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// DriverName returns the database/sql driver to open Database.URL with
func (c *Config) DriverName() string {
	if c.Database.Driver != "" {
		return c.Database.Driver
	}
	switch strings.ToLower(c.Dialect) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "mysql":
		return "mysql"
	default:
		return "pgx"
	}
}

// NewLogger builds the zap logger described by the log section
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if _, err := query.FlavorFor(cfg.Dialect); err != nil {
		return fmt.Errorf("dialect: %w", err)
	}
	if !aliasPattern.MatchString(cfg.RootAlias) {
		return fmt.Errorf("root_alias must be a SQL identifier, got: %q", cfg.RootAlias)
	}
	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.SchemaFile == "" {
		return fmt.Errorf("schema_file is required")
	}
	return nil
}
