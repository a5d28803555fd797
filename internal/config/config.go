package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/tigerload/internal/db"
)

// Config holds the full application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Tiger    TigerConfig    `yaml:"tiger" mapstructure:"tiger"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig configures the PostGIS connection. URL wins over the
// discrete fields when set.
type DatabaseConfig struct {
	URL      string        `yaml:"url" mapstructure:"url"`
	Host     string        `yaml:"host" mapstructure:"host"`
	Port     int           `yaml:"port" mapstructure:"port"`
	User     string        `yaml:"user" mapstructure:"user"`
	Name     string        `yaml:"name" mapstructure:"name"`
	Password string        `yaml:"password" mapstructure:"password"`
	SSLMode  string        `yaml:"sslmode" mapstructure:"sslmode"`
	Schema   string        `yaml:"schema" mapstructure:"schema"`
	Pool     db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// TigerConfig configures where TIGER files live and how they are loaded.
type TigerConfig struct {
	DataDir      string   `yaml:"data_dir" mapstructure:"data_dir"`
	Year         int      `yaml:"year" mapstructure:"year"`
	Datasets     []string `yaml:"datasets" mapstructure:"datasets"`
	BatchSize    int      `yaml:"batch_size" mapstructure:"batch_size"`
	FallbackSRID int      `yaml:"fallback_srid" mapstructure:"fallback_srid"`
	States       []string `yaml:"states" mapstructure:"states"`
	Concurrency  int      `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSec   float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, an optional tigerload.yaml and the
// environment.
func Load() (*Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("tigerload")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TIGERLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.pool.max_conns", 4)
	v.SetDefault("database.pool.min_conns", 1)
	v.SetDefault("tiger.data_dir", ".")
	v.SetDefault("tiger.year", 2024)
	v.SetDefault("tiger.datasets", []string{})
	v.SetDefault("tiger.batch_size", db.DefaultBatchSize)
	v.SetDefault("tiger.fallback_srid", 4269)
	v.SetDefault("tiger.states", []string{})
	v.SetDefault("tiger.concurrency", 3)
	v.SetDefault("tiger.rate_per_sec", 2.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// NeedsPassword reports whether a password must be supplied before DSN can
// build a usable connection string.
func (c DatabaseConfig) NeedsPassword() bool {
	return c.URL == "" && c.Password == ""
}

// DSN assembles a postgres:// connection string. When URL is set it is
// returned unchanged; otherwise the discrete fields and password are used.
func (c DatabaseConfig) DSN(password string) string {
	if c.URL != "" {
		return c.URL
	}
	if password == "" {
		password = c.Password
	}

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(c.User, password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{c.SSLMode}}.Encode()
	}
	return u.String()
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
