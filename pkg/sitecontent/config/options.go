package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabaseURL selects the repository backend
func WithDatabaseURL(url string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithMigrations toggles schema migration at startup
func WithMigrations(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.RunMigrations = enabled
		return nil
	}
}

// WithStorageURL selects the asset store
func WithStorageURL(url string) Option {
	return func(c *ServerConfig) error {
		c.StorageURL = url
		return nil
	}
}

// WithS3 sets the S3 credentials and options
func WithS3(s3 S3Config) Option {
	return func(c *ServerConfig) error {
		c.S3 = s3
		return nil
	}
}

// WithPublicBaseURL makes read responses carry absolute asset URLs
func WithPublicBaseURL(url string) Option {
	return func(c *ServerConfig) error {
		c.PublicBaseURL = url
		return nil
	}
}

// WithCacheTTL sets the homepage cache TTL
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		if ttl < 0 {
			return fmt.Errorf("cache TTL cannot be negative")
		}
		c.CacheTTL = ttl
		return nil
	}
}

// WithCacheInvalidateOnWrite toggles dropping cached slots after writes
func WithCacheInvalidateOnWrite(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.CacheInvalidateOnWrite = enabled
		return nil
	}
}

// WithMaxUploadBytes bounds write request bodies
func WithMaxUploadBytes(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max upload bytes must be positive")
		}
		c.MaxUploadBytes = n
		return nil
	}
}
