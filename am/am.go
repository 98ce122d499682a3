package am

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config represents the nutsdash configuration
type Config struct {
	API    APIConfig    `mapstructure:"api" toml:"api" json:"api" yaml:"api"`
	View   ViewConfig   `mapstructure:"view" toml:"view" json:"view" yaml:"view"`
	Server ServerConfig `mapstructure:"server" toml:"server" json:"server" yaml:"server"`
	Log    LogConfig    `mapstructure:"log" toml:"log" json:"log" yaml:"log"`
}

// APIConfig configures the connection to the nuts scheduling service
type APIConfig struct {
	BaseURL           string  `mapstructure:"base_url" toml:"base_url" json:"base_url" yaml:"base_url"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`         // per-request timeout (default: 10)
	RequestsPerSecond float64 `mapstructure:"requests_per_second" toml:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second"` // 0 = unlimited
}

// ViewConfig configures live view revalidation
type ViewConfig struct {
	RefreshIntervalSeconds int `mapstructure:"refresh_interval_seconds" toml:"refresh_interval_seconds" json:"refresh_interval_seconds" yaml:"refresh_interval_seconds"` // default: 5
	DetailIdleSeconds      int `mapstructure:"detail_idle_seconds" toml:"detail_idle_seconds" json:"detail_idle_seconds" yaml:"detail_idle_seconds"`                     // unread workflow views close after this (default: 120)
}

// ServerConfig configures the dashboard server
type ServerConfig struct {
	Host           string   `mapstructure:"host" toml:"host" json:"host" yaml:"host"`
	Port           int      `mapstructure:"port" toml:"port" json:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins" json:"allowed_origins" yaml:"allowed_origins"`
}

// LogConfig configures the global logger
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json" json:"json" yaml:"json"`
}

// Defaults
const (
	DefaultBaseURL                = "http://localhost:8000"
	DefaultTimeoutSeconds         = 10
	DefaultRefreshIntervalSeconds = 5
	DefaultDetailIdleSeconds      = 120
	DefaultServerHost             = "127.0.0.1"
	DefaultServerPort             = 8820
)

// File permissions for config directories and files
const (
	DefaultDirPermissions  = 0750
	DefaultFilePermissions = 0644
)

// Timeout returns the per-request backend timeout
func (c *Config) Timeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// RefreshInterval returns the live view polling interval
func (c *Config) RefreshInterval() time.Duration {
	if c.View.RefreshIntervalSeconds <= 0 {
		return DefaultRefreshIntervalSeconds * time.Second
	}
	return time.Duration(c.View.RefreshIntervalSeconds) * time.Second
}

// DetailIdleTTL returns how long an unread workflow detail view keeps polling
func (c *Config) DetailIdleTTL() time.Duration {
	if c.View.DetailIdleSeconds <= 0 {
		return DefaultDetailIdleSeconds * time.Second
	}
	return time.Duration(c.View.DetailIdleSeconds) * time.Second
}

// ServerAddress returns host:port for the dashboard server
func (c *Config) ServerAddress() string {
	host := c.Server.Host
	if host == "" {
		host = DefaultServerHost
	}
	port := c.Server.Port
	if port == 0 {
		port = DefaultServerPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{API: %s, Refresh: %s, Server: %s}",
		c.API.BaseURL, c.RefreshInterval(), c.ServerAddress())
}
