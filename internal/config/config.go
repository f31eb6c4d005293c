package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "VFXPUBLISH"

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	Publish  PublishConfig  `mapstructure:"Publish"`
	Log      LogConfig      `mapstructure:"Log"`
	Kafka    KafkaConfig    `mapstructure:"Kafka"`
	Auth     AuthConfig     `mapstructure:"Auth"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"Port"`
	GRPCPort        string        `mapstructure:"GRPCPort"`
	BaseURL         string        `mapstructure:"BaseURL"`
	ShutdownTimeout time.Duration `mapstructure:"ShutdownTimeout"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver   string `mapstructure:"Driver"`
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
	// Path is the sqlite database file.
	Path string `mapstructure:"Path"`
}

type PublishConfig struct {
	// WorkRoot overrides the "work" root of the anatomy file.
	WorkRoot           string `mapstructure:"WorkRoot"`
	AnatomyFile        string `mapstructure:"AnatomyFile"`
	ProductName        string `mapstructure:"ProductName"`
	RepresentationName string `mapstructure:"RepresentationName"`
	VersionPattern     string `mapstructure:"VersionPattern"`
}

type LogConfig struct {
	Level       string `mapstructure:"Level"`
	Format      string `mapstructure:"Format"`
	Development bool   `mapstructure:"Development"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"Brokers"`
	Topic   string   `mapstructure:"Topic"`
}

// Enabled reports whether publish notifications should be emitted.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

type AuthConfig struct {
	// Tokens are the bearer tokens accepted by the HTTP API. An empty list
	// disables authentication.
	Tokens []string `mapstructure:"Tokens"`
}

var keys = []string{
	"Server.Port", "Server.GRPCPort", "Server.BaseURL", "Server.ShutdownTimeout",
	"Database.Driver", "Database.Host", "Database.Port", "Database.User",
	"Database.Password", "Database.Name", "Database.SSLMode", "Database.Path",
	"Publish.WorkRoot", "Publish.AnatomyFile", "Publish.ProductName",
	"Publish.RepresentationName", "Publish.VersionPattern",
	"Log.Level", "Log.Format", "Log.Development",
	"Kafka.Brokers", "Kafka.Topic",
	"Auth.Tokens",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "2525")
	v.SetDefault("Server.GRPCPort", "50051")
	v.SetDefault("Server.ShutdownTimeout", 30*time.Second)
	v.SetDefault("Database.Driver", "postgres")
	v.SetDefault("Database.Port", "5432")
	v.SetDefault("Database.SSLMode", "disable")
	v.SetDefault("Database.Path", "vfxpublish.db")
	v.SetDefault("Log.Level", "info")
	v.SetDefault("Log.Format", "json")
	v.SetDefault("Kafka.Topic", "vfxpublish.version-published")
}

// NewConfig reads path (any format viper understands) and applies
// VFXPUBLISH_* environment overrides, e.g. VFXPUBLISH_DATABASE_HOST. A
// missing file falls back to environment and defaults.
func NewConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
			fmt.Fprintf(os.Stderr, "Warning: using only environment variables: %v\n", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
			return fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
				c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name)
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database configuration is incomplete: sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Publish.WorkRoot == "" && c.Publish.AnatomyFile == "" {
		return fmt.Errorf("publish configuration is incomplete: work root or anatomy file is required")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}
