package am

import (
	"net/url"

	"github.com/nutsq/nutsdash/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil {
			return errors.Wrapf(err, "api.base_url %q is not a URL", c.API.BaseURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.Newf("api.base_url must use http or https, got %q", c.API.BaseURL)
		}
	}

	// 0 = default, negative = invalid
	if c.API.TimeoutSeconds < 0 {
		return errors.Newf("api.timeout_seconds must be >= 0, got %d", c.API.TimeoutSeconds)
	}
	if c.API.RequestsPerSecond < 0 {
		return errors.Newf("api.requests_per_second must be >= 0, got %f", c.API.RequestsPerSecond)
	}
	if c.View.RefreshIntervalSeconds < 0 {
		return errors.Newf("view.refresh_interval_seconds must be >= 0, got %d", c.View.RefreshIntervalSeconds)
	}

	if c.View.DetailIdleSeconds < 0 {
		return errors.Newf("view.detail_idle_seconds must be >= 0, got %d", c.View.DetailIdleSeconds)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be in 0..65535, got %d", c.Server.Port)
	}

	return nil
}
