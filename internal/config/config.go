// Package config provides configuration loading for dbstudio.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. See LoadWithFile for precedence rules.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the complete dbstudio configuration.
type Config struct {
	API         APIConfig         `koanf:"api"`
	Auth        AuthConfig        `koanf:"auth"`
	Upload      UploadConfig      `koanf:"upload"`
	Diagnostics DiagnosticsConfig `koanf:"diagnostics"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// APIConfig holds backend endpoint configuration.
type APIConfig struct {
	BaseURL string   `koanf:"base_url"`
	Timeout Duration `koanf:"timeout"`
}

// AuthConfig holds session token configuration.
//
// Token takes precedence over TokenFile. RedirectDelay is the UX debounce
// before navigating to the login surface when no token is present.
type AuthConfig struct {
	Token         Secret   `koanf:"token"`
	TokenFile     string   `koanf:"token_file"`
	LoginURL      string   `koanf:"login_url"`
	RedirectDelay Duration `koanf:"redirect_delay"`
}

// UploadConfig holds file-upload worker configuration.
type UploadConfig struct {
	MaxFileSizeMB int `koanf:"max_file_size_mb"`
	MaxFiles      int `koanf:"max_files"`
}

// DiagnosticsConfig holds the local diagnostics HTTP server configuration.
type DiagnosticsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: Duration(30 * time.Second),
		},
		Auth: AuthConfig{
			LoginURL:      "/log-in",
			RedirectDelay: Duration(1500 * time.Millisecond),
		},
		Upload: UploadConfig{
			MaxFileSizeMB: 100,
			MaxFiles:      10,
		},
		Diagnostics: DiagnosticsConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    9090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("api.base_url must be an http(s) URL: %q", c.API.BaseURL)
	}
	if c.API.Timeout.Duration() <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.Upload.MaxFileSizeMB <= 0 {
		return fmt.Errorf("upload.max_file_size_mb must be positive")
	}
	if c.Upload.MaxFiles <= 0 {
		return fmt.Errorf("upload.max_files must be positive")
	}
	if c.Diagnostics.Enabled {
		if c.Diagnostics.Port < 1 || c.Diagnostics.Port > 65535 {
			return fmt.Errorf("diagnostics.port out of range: %d", c.Diagnostics.Port)
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json: %q", c.Logging.Format)
	}
	return nil
}

// applyDefaults fills in zero values with defaults.
func applyDefaults(cfg *Config) {
	def := NewDefaultConfig()
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = def.API.BaseURL
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = def.API.Timeout
	}
	if cfg.Auth.LoginURL == "" {
		cfg.Auth.LoginURL = def.Auth.LoginURL
	}
	if cfg.Auth.RedirectDelay == 0 {
		cfg.Auth.RedirectDelay = def.Auth.RedirectDelay
	}
	if cfg.Upload.MaxFileSizeMB == 0 {
		cfg.Upload.MaxFileSizeMB = def.Upload.MaxFileSizeMB
	}
	if cfg.Upload.MaxFiles == 0 {
		cfg.Upload.MaxFiles = def.Upload.MaxFiles
	}
	if cfg.Diagnostics.Host == "" {
		cfg.Diagnostics.Host = def.Diagnostics.Host
	}
	if cfg.Diagnostics.Port == 0 {
		cfg.Diagnostics.Port = def.Diagnostics.Port
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}
