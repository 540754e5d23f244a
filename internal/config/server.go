package config

import "time"

// ServerConfig holds HTTP server settings for the editor and publisher apps.
type ServerConfig struct {
	EditorPort      int    `yaml:"editor_port,omitempty"`    // authoring app + editor API
	PublisherPort   int    `yaml:"publisher_port,omitempty"` // public site serving
	MetricsPort     int    `yaml:"metrics_port,omitempty"`   // prometheus scrape endpoint
	ReadTimeout     string `yaml:"read_timeout,omitempty"`
	WriteTimeout    string `yaml:"write_timeout,omitempty"`
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty"`
}

// ReadTimeoutDuration parses the read timeout, falling back to 15s.
func (s ServerConfig) ReadTimeoutDuration() time.Duration {
	return parseDurationOr(s.ReadTimeout, 15*time.Second)
}

// WriteTimeoutDuration parses the write timeout, falling back to 30s.
func (s ServerConfig) WriteTimeoutDuration() time.Duration {
	return parseDurationOr(s.WriteTimeout, 30*time.Second)
}

// ShutdownTimeoutDuration parses the shutdown grace period, falling back to 10s.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return parseDurationOr(s.ShutdownTimeout, 10*time.Second)
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
