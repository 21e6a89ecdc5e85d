// Package config provides centralized configuration management for the tool.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Convert  ConvertConfig
	Batch    BatchConfig
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// ConvertConfig holds CSV transcoding settings.
type ConvertConfig struct {
	// SniffBytes is how much of the input is inspected for a ';' delimiter (default: 1024)
	SniffBytes int `env:"CONVERT_SNIFF_BYTES" default:"1024"`

	// UseCRLF terminates output lines with \r\n (default: true)
	UseCRLF bool `env:"CONVERT_USE_CRLF" default:"true"`

	// InputEncoding is the encoding of source files: utf-8, latin1, windows-1252 (default: utf-8)
	InputEncoding string `env:"CONVERT_INPUT_ENCODING" default:"utf-8"`

	// SanitizeUTF8 replaces invalid UTF-8 bytes with '?' instead of passing them through (default: false)
	SanitizeUTF8 bool `env:"CONVERT_SANITIZE_UTF8" default:"false"`
}

// BatchConfig holds settings for converting a directory of exports.
type BatchConfig struct {
	// Dir is the directory holding the Lovable exports (default: .)
	Dir string `env:"BATCH_DIR" default:"."`

	// Manifest is an optional YAML file overriding the candidate file list
	Manifest string `env:"BATCH_MANIFEST"`
}

// DatabaseConfig holds database connection settings for the import command.
type DatabaseConfig struct {
	// URL is the PostgreSQL (Supabase) connection string, only required for import
	// Supports both DATABASE_URL and SUPABASE_DB_URL env vars
	URL string `env:"DATABASE_URL" envAlt:"SUPABASE_DB_URL"`

	// Schema is the target schema for imported tables (default: public)
	Schema string `env:"DB_SCHEMA" default:"public"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// ImportTimeout bounds a single file import (default: 10m)
	ImportTimeout time.Duration `env:"DB_IMPORT_TIMEOUT" default:"10m"`
}

// ServerConfig holds HTTP server settings for the serve command.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// MaxBodySize is the largest accepted upload in bytes (default: 32MB)
	MaxBodySize int64 `env:"SERVER_MAX_BODY_SIZE" default:"33554432"`

	// MaxConcurrent is the maximum number of parallel conversions (default: 4)
	MaxConcurrent int `env:"SERVER_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a conversion slot (default: 10s)
	MaxWaitTime time.Duration `env:"SERVER_MAX_WAIT_TIME" default:"10s"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP / X-Forwarded-For headers are honored
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`

	// APIKeys is a comma-separated list of keys accepted in X-API-Key for /api
	// routes. Empty disables authentication
	APIKeys []string `env:"SERVER_API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
