package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/roomchat/internal/service/rooms"
)

// Blob backends accepted in blob_backend.
const (
	BlobBackendDisk = "disk"
	BlobBackendNATS = "nats"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTRequired bool   `mapstructure:"jwt_required" yaml:"jwt_required"`

	MaxMessageBytes    int64    `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	HistoryLimit       int      `mapstructure:"history_limit" yaml:"history_limit"`
	AllowedOrigins     []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	PublicBaseURL  string `mapstructure:"public_base_url" yaml:"public_base_url"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	BlobBackend    string `mapstructure:"blob_backend" yaml:"blob_backend"`
	UploadDir      string `mapstructure:"upload_dir" yaml:"upload_dir"`
	NATSURL        string `mapstructure:"nats_url" yaml:"nats_url"`
	NATSBucket     string `mapstructure:"nats_bucket" yaml:"nats_bucket"`

	DefaultRooms []rooms.Seed `mapstructure:"default_rooms" yaml:"default_rooms"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		DatabasePath:       "roomchat.db",
		JWTSecret:          "change-me",
		JWTIssuer:          "roomchat",
		JWTAudience:        "roomchat-clients",
		MaxMessageBytes:    1 << 20,
		RateLimitPerMinute: 120,
		HistoryLimit:       50,
		PublicBaseURL:      "http://localhost:8080",
		MaxUploadBytes:     10 << 20,
		BlobBackend:        BlobBackendDisk,
		UploadDir:          "uploads",
		NATSURL:            "nats://127.0.0.1:4222",
		NATSBucket:         "roomchat-files",
		DefaultRooms:       rooms.DefaultSeeds(),
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	}
	switch strings.ToLower(c.BlobBackend) {
	case BlobBackendDisk:
		if c.UploadDir == "" {
			errs = append(errs, errors.New("upload_dir is required for the disk backend"))
		}
	case BlobBackendNATS:
		if c.NATSURL == "" || c.NATSBucket == "" {
			errs = append(errs, errors.New("nats_url and nats_bucket are required for the nats backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob_backend %q", c.BlobBackend))
	}
	return errors.Join(errs...)
}
