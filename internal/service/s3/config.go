package s3

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Endpoint        string `mapstructure:"Endpoint"`
	Region          string `mapstructure:"Region"`
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	Bucket          string `mapstructure:"Bucket"`
	// Prefix is prepended to every mirrored key.
	Prefix       string `mapstructure:"Prefix"`
	UsePathStyle bool   `mapstructure:"UsePathStyle"`
}

// NewConfig reads the S3 settings from path, with VFXPUBLISH_S3_* environment
// overrides.
func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("Region", "us-east-1")
	v.SetEnvPrefix("VFXPUBLISH_S3")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{"Endpoint", "Region", "AccessKeyID", "SecretAccessKey", "Bucket", "Prefix", "UsePathStyle"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("cannot read config from %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.AccessKeyID == "" {
		return fmt.Errorf("AccessKeyID is required")
	}
	if c.SecretAccessKey == "" {
		return fmt.Errorf("SecretAccessKey is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("Bucket is required")
	}
	return nil
}
