// Package config loads and validates the SkyCMS configuration file.
//
// The file is YAML with environment variable expansion: ${VAR} references are
// resolved from the process environment after an optional .env file is loaded.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Version       string            `yaml:"version"`
	Server        ServerConfig      `yaml:"server"`
	Tenants       []*TenantConfig   `yaml:"tenants"`
	DefaultTenant string            `yaml:"default_tenant,omitempty"`
	Storage       StorageConfig     `yaml:"storage"`
	Publish       PublishConfig     `yaml:"publish,omitempty"`
	Scheduler     SchedulerConfig   `yaml:"scheduler,omitempty"`
	Contact       ContactConfig     `yaml:"contact,omitempty"`
	Events        EventsConfig      `yaml:"events,omitempty"`
	Deploy        DeployConfig      `yaml:"deploy,omitempty"`
	Monitoring    *MonitoringConfig `yaml:"monitoring,omitempty"`
}

// EventsConfig wires the optional NATS bridge for publish lifecycle events.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// DeployConfig controls mirroring published artifacts into a git repository.
type DeployConfig struct {
	Enabled     bool           `yaml:"enabled,omitempty"`
	RepoPath    string         `yaml:"repo_path,omitempty"` // local mirror repository
	Remote      string         `yaml:"remote,omitempty"`    // push target URL
	Branch      string         `yaml:"branch,omitempty"`    // defaults to main
	AuthorName  string         `yaml:"author_name,omitempty"`
	AuthorEmail string         `yaml:"author_email,omitempty"`
	Push        bool           `yaml:"push,omitempty"`
	Auth        *GitAuthConfig `yaml:"auth,omitempty"`
}

// GitAuthConfig holds credentials for pushing the deploy mirror.
type GitAuthConfig struct {
	Type     string `yaml:"type"` // ssh|token|basic|none
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// Load loads a configuration file.
func Load(configPath string) (*Config, error) {
	// Load .env if present; existing environment wins.
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				fmt.Fprintf(os.Stderr, "Note: %s could not be loaded: %v\n", envPath, err)
			}
			break
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Version != "" && config.Version != "1.0" {
		return nil, fmt.Errorf("unsupported configuration version: %s (expected 1.0)", config.Version)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Tenant returns the tenant config with the given ID, or nil.
func (c *Config) Tenant(id string) *TenantConfig {
	for _, t := range c.Tenants {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Version: "1.0",
		Server: ServerConfig{
			EditorPort:    8080,
			PublisherPort: 8081,
			MetricsPort:   9090,
		},
		Tenants: []*TenantConfig{
			{
				ID:           "default",
				Name:         "Example Site",
				Hostname:     "edit.example.com",
				DSN:          "file:skycms-default.db",
				CookieDomain: ".example.com",
				PublisherURL: "https://www.example.com",
				CDN: &CDNConfig{
					Provider: CDNCloudflare,
					ZoneID:   "${CLOUDFLARE_ZONE_ID}",
					APIToken: "${CLOUDFLARE_API_TOKEN}",
				},
			},
		},
		DefaultTenant: "default",
		Storage: StorageConfig{
			Root: "./public",
			Retry: RetryConfig{
				Backoff:      "exponential",
				InitialDelay: "500ms",
				MaxDelay:     "8s",
				MaxRetries:   3,
			},
		},
		Publish: PublishConfig{
			Concurrency: 4,
			QueueSize:   64,
			Workers:     2,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			SweepInterval: "1m",
		},
		Contact: ContactConfig{
			Enabled:            true,
			RateLimitPerMinute: 5,
			Captcha: CaptchaConfig{
				Enabled:   true,
				SiteKey:   "${CAPTCHA_SITE_KEY}",
				Secret:    "${CAPTCHA_SECRET}",
				VerifyURL: "https://www.google.com/recaptcha/api/siteverify",
			},
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
