package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// FromEnv reads the configuration from the environment. When CONFIG_FILE
// names a YAML file, the file is read first and the environment overrides it.
//
//	PORT, ENVIRONMENT, CORS_ORIGIN
//	DATABASE_URL   memory | postgres://... | sqlite://path
//	DB_SCHEMA, RUN_MIGRATIONS
//	STORAGE_URL    memory:// | file:///dir | s3://bucket/prefix
//	AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_S3_*
//	PUBLIC_BASE_URL, ASSET_PREFIX
//	CACHE_TTL, CACHE_INVALIDATE_ON_WRITE, MAX_UPLOAD_BYTES
func FromEnv() Option {
	return func(c *ServerConfig) error {
		if path, ok := os.LookupEnv("CONFIG_FILE"); ok && path != "" {
			return WithConfigFile(path)(c)
		}
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithConfigFile reads a YAML file, then applies environment overrides.
func WithConfigFile(path string) Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// Usage describes the environment variables understood by FromEnv.
func Usage() string {
	var cfg ServerConfig
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
