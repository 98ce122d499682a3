package am

import (
	"github.com/spf13/viper"
)

// defaultAllowedOrigins are the CORS origins accepted when none are configured
var defaultAllowedOrigins = []string{
	"http://localhost",
	"https://localhost",
	"http://127.0.0.1",
	"https://127.0.0.1",
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Backend
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.timeout_seconds", DefaultTimeoutSeconds)
	v.SetDefault("api.requests_per_second", 0.0) // unlimited

	// Live views
	v.SetDefault("view.refresh_interval_seconds", DefaultRefreshIntervalSeconds)
	v.SetDefault("view.detail_idle_seconds", DefaultDetailIdleSeconds)

	// Dashboard server
	v.SetDefault("server.host", DefaultServerHost)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", defaultAllowedOrigins)

	v.SetDefault("log.json", false)
}

// BindEnvVars binds configuration keys that have well-known environment names.
// NUTS_API_URL is the variable the nuts UI has always read.
func BindEnvVars(v *viper.Viper) {
	v.BindEnv("api.base_url", "NUTSDASH_API_BASE_URL", "NUTS_API_URL")
}

// GetServerAllowedOrigins returns the allowed CORS origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return defaultAllowedOrigins
	}
	return c.Server.AllowedOrigins
}
