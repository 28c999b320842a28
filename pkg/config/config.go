package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Queue    QueueConfig    `mapstructure:"queue"`
	Runner   RunnerConfig   `mapstructure:"runner"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// QueueConfig carries the dedup-scheduler knobs: the prefix stamped onto
// every job name, the group used when a request names none, and a free-text
// label that only shows up in diagnostics.
type QueueConfig struct {
	NamePrefix      string `mapstructure:"name_prefix"`
	DefaultGroup    string `mapstructure:"default_group"`
	DiagnosticLabel string `mapstructure:"diagnostic_label"`
}

type RunnerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxWorkers   int           `mapstructure:"max_workers"`
	ClaimBatch   int           `mapstructure:"claim_batch"`
}

type DatabaseConfig struct {
	Driver                string        `mapstructure:"driver"` // mysql or sqlite
	Host                  string        `mapstructure:"host"`
	Port                  int           `mapstructure:"port"`
	Database              string        `mapstructure:"database"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	Path                  string        `mapstructure:"path"` // sqlite only
	MaxConnections        int           `mapstructure:"max_connections"`
	MaxIdleConnections    int           `mapstructure:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `mapstructure:"connection_max_lifetime"`
}

type ServerConfig struct {
	IP           string        `mapstructure:"ip"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("queue.name_prefix", "queue_")
	viper.SetDefault("queue.default_group", "queue_default")
	viper.SetDefault("queue.diagnostic_label", "dedup-scheduler")

	viper.SetDefault("runner.enabled", true)
	viper.SetDefault("runner.poll_interval", "1s")
	viper.SetDefault("runner.max_workers", 10)
	viper.SetDefault("runner.claim_batch", 20)

	viper.SetDefault("database.driver", "mysql")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.path", "dedup.db")
	viper.SetDefault("database.max_connections", 20)
	viper.SetDefault("database.max_idle_connections", 10)
	viper.SetDefault("database.connection_max_lifetime", "1h")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
