// Package config loads server configuration and builds the content store
// from it.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-sitecontent/pkg/sitecontent/assetref"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                   "8080",
		Environment:            "development",
		DatabaseURL:            "memory",
		DBSchema:               "sitecontent",
		RunMigrations:          true,
		StorageURL:             "memory://",
		AssetPrefix:            assetref.DefaultPrefix,
		CacheTTL:               60 * time.Second,
		CacheInvalidateOnWrite: true,
		MaxUploadBytes:         10 << 20,
		S3:                     S3Config{Region: "us-east-1"},
	}
}

// ServerConfig represents server configuration for the site content service
type ServerConfig struct {
	Port        string `yaml:"port" env:"PORT" env-default:"8080" env-description:"HTTP listen port"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development" env-description:"development, production or testing"` // development, production, testing
	CORSOrigin  string `yaml:"cors_origin" env:"CORS_ORIGIN" env-description:"Allowed CORS origin (development defaults to *)"`

	// Database configuration: "memory", "postgres://...", "sqlite://path"
	DatabaseURL   string `yaml:"database_url" env:"DATABASE_URL" env-default:"memory" env-description:"memory, postgres://... or sqlite://path"`
	DBSchema      string `yaml:"db_schema" env:"DB_SCHEMA" env-default:"sitecontent" env-description:"Postgres schema holding dynamic_parts"`
	RunMigrations bool   `yaml:"run_migrations" env:"RUN_MIGRATIONS" env-default:"true" env-description:"Apply Postgres migrations at startup"`

	// Asset storage: "memory://", "file:///dir", "s3://bucket/prefix"
	StorageURL    string   `yaml:"storage_url" env:"STORAGE_URL" env-default:"memory://" env-description:"memory://, file:///dir or s3://bucket/prefix"`
	S3            S3Config `yaml:"s3"`
	AssetPrefix   string   `yaml:"asset_prefix" env:"ASSET_PREFIX" env-default:"/dynamic-parts" env-description:"Root-relative directory of stored image references"`
	PublicBaseURL string   `yaml:"public_base_url" env:"PUBLIC_BASE_URL" env-description:"Base URL prepended to image references in read responses"`

	CacheTTL               time.Duration `yaml:"cache_ttl" env:"CACHE_TTL" env-default:"60s" env-description:"Homepage cache TTL"`
	CacheInvalidateOnWrite bool          `yaml:"cache_invalidate_on_write" env:"CACHE_INVALIDATE_ON_WRITE" env-default:"true" env-description:"Drop cached slots after writes"`
	MaxUploadBytes         int64         `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" env-default:"10485760" env-description:"Maximum write request body size"`
}

// S3Config holds the S3 settings not carried by STORAGE_URL
type S3Config struct {
	Region                 string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
	AccessKeyID            string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey        string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint               string `yaml:"endpoint" env:"AWS_S3_ENDPOINT"`
	UsePathStyle           bool   `yaml:"use_path_style" env:"AWS_S3_USE_PATH_STYLE"`
	EnableSSE              bool   `yaml:"enable_sse" env:"AWS_S3_ENABLE_SSE"`
	SSEAlgorithm           string `yaml:"sse_algorithm" env:"AWS_S3_SSE_ALGORITHM"`
	SSEKMSKeyID            string `yaml:"sse_kms_key_id" env:"AWS_S3_SSE_KMS_KEY_ID"`
	CreateBucketIfNotExist bool   `yaml:"create_bucket_if_not_exist" env:"AWS_S3_CREATE_BUCKET"`
}

// Database kinds
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

// Storage kinds
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// Database splits DatabaseURL into its kind and the driver DSN.
func (c *ServerConfig) Database() (kind, dsn string, err error) {
	raw := strings.TrimSpace(c.DatabaseURL)
	switch {
	case raw == "" || raw == "memory":
		return DatabaseMemory, "", nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DatabasePostgres, raw, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return "", "", errors.New("sqlite path cannot be empty in DATABASE_URL")
		}
		return DatabaseSQLite, path, nil
	}
	return "", "", fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgres://...' or 'sqlite://path')", raw)
}

// StorageTarget is a parsed STORAGE_URL.
type StorageTarget struct {
	Kind   string
	Dir    string // fs
	Bucket string // s3
	Prefix string // s3 key prefix
}

// Storage parses StorageURL.
func (c *ServerConfig) Storage() (StorageTarget, error) {
	raw := strings.TrimSpace(c.StorageURL)
	if raw == "" || raw == "memory" || raw == "memory://" {
		return StorageTarget{Kind: StorageMemory}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return StorageTarget{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}

	switch u.Scheme {
	case "file":
		dir := u.Path
		if u.Host != "" {
			dir = u.Host + u.Path
		}
		if dir == "" {
			return StorageTarget{}, errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
		return StorageTarget{Kind: StorageFS, Dir: dir}, nil
	case "s3":
		if u.Host == "" {
			return StorageTarget{}, errors.New("S3 bucket name cannot be empty in STORAGE_URL")
		}
		return StorageTarget{Kind: StorageS3, Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
	}

	return StorageTarget{}, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if _, _, err := c.Database(); err != nil {
		return err
	}
	if _, err := c.Storage(); err != nil {
		return err
	}
	if _, err := assetref.NewResolver(c.PublicBaseURL); err != nil {
		return fmt.Errorf("public_base_url: %w", err)
	}
	if c.CacheTTL < 0 {
		return errors.New("cache_ttl cannot be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	return nil
}
