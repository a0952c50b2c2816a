package config

import "time"

// Message store backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath   string `mapstructure:"database_path" yaml:"database_path"`
	MessageBackend string `mapstructure:"message_backend" yaml:"message_backend"`
	BadgerPath     string `mapstructure:"badger_path" yaml:"badger_path"`

	MediaDir       string `mapstructure:"media_dir" yaml:"media_dir"`
	MediaURLPrefix string `mapstructure:"media_url_prefix" yaml:"media_url_prefix"`
	MaxImageBytes  int64  `mapstructure:"max_image_bytes" yaml:"max_image_bytes"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// PushBuffer is the per-connection outbound event buffer.
	PushBuffer int `mapstructure:"push_buffer" yaml:"push_buffer"`
	// WSRateLimit caps inbound websocket messages per minute, 0 disables.
	WSRateLimit int `mapstructure:"ws_rate_limit" yaml:"ws_rate_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "pairchat.db",
		MessageBackend:    BackendSQLite,
		BadgerPath:        "data/messages",
		MediaDir:          "data/media",
		MediaURLPrefix:    "/media",
		MaxImageBytes:     5 << 20,
		JWTSecret:         "change-me",
		JWTIssuer:         "pairchat",
		JWTAudience:       "pairchat",
		JWTTTL:            24 * time.Hour,
		PushBuffer:        32,
		WSRateLimit:       120,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.MessageBackend != "" {
		c.MessageBackend = other.MessageBackend
	}
	if other.BadgerPath != "" {
		c.BadgerPath = other.BadgerPath
	}
	if other.MediaDir != "" {
		c.MediaDir = other.MediaDir
	}
	if other.MediaURLPrefix != "" {
		c.MediaURLPrefix = other.MediaURLPrefix
	}
	if other.MaxImageBytes != 0 {
		c.MaxImageBytes = other.MaxImageBytes
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.JWTTTL != 0 {
		c.JWTTTL = other.JWTTTL
	}
	if other.PushBuffer != 0 {
		c.PushBuffer = other.PushBuffer
	}
	if other.WSRateLimit != 0 {
		c.WSRateLimit = other.WSRateLimit
	}
}
