package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

// validate performs validation in order of dependencies.
func (cv *configurationValidator) validate() error {
	if err := cv.validateServer(); err != nil {
		return err
	}
	if err := cv.validateTenants(); err != nil {
		return err
	}
	if err := cv.validateStorage(); err != nil {
		return err
	}
	if err := cv.validateScheduler(); err != nil {
		return err
	}
	if err := cv.validateContact(); err != nil {
		return err
	}
	return cv.validateDeploy()
}

func (cv *configurationValidator) validateServer() error {
	s := cv.config.Server
	ports := map[string]int{
		"editor_port":    s.EditorPort,
		"publisher_port": s.PublisherPort,
		"metrics_port":   s.MetricsPort,
	}
	seen := make(map[int]string, len(ports))
	for name, port := range ports {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("server.%s out of range: %d", name, port)
		}
		if other, dup := seen[port]; dup {
			return fmt.Errorf("server.%s and server.%s share port %d", name, other, port)
		}
		seen[port] = name
	}
	return nil
}

func (cv *configurationValidator) validateTenants() error {
	if len(cv.config.Tenants) == 0 {
		return errors.New("at least one tenant must be configured")
	}

	ids := make(map[string]bool)
	hostnames := make(map[string]bool)
	for _, t := range cv.config.Tenants {
		if t.ID == "" {
			return errors.New("tenant id cannot be empty")
		}
		if ids[t.ID] {
			return fmt.Errorf("duplicate tenant id: %s", t.ID)
		}
		ids[t.ID] = true

		if t.Hostname == "" {
			return fmt.Errorf("tenant %s: hostname is required", t.ID)
		}
		if hostnames[t.Hostname] {
			return fmt.Errorf("duplicate tenant hostname: %s", t.Hostname)
		}
		hostnames[t.Hostname] = true

		if t.DSN == "" {
			return fmt.Errorf("tenant %s: dsn is required", t.ID)
		}
		if t.PublisherURL == "" {
			return fmt.Errorf("tenant %s: publisher_url is required", t.ID)
		}
		if u, err := url.Parse(t.PublisherURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("tenant %s: publisher_url must be an absolute URL: %s", t.ID, t.PublisherURL)
		}

		if err := cv.validateCDN(t); err != nil {
			return err
		}
	}

	if cv.config.DefaultTenant != "" && !ids[cv.config.DefaultTenant] {
		return fmt.Errorf("default_tenant %s does not match any tenant id", cv.config.DefaultTenant)
	}
	return nil
}

func (cv *configurationValidator) validateCDN(t *TenantConfig) error {
	if t.CDN == nil || t.CDN.Provider == CDNNone {
		return nil
	}
	if !t.CDN.Provider.Valid() {
		return fmt.Errorf("tenant %s: unknown cdn provider: %s", t.ID, t.CDN.Provider)
	}
	switch t.CDN.Provider {
	case CDNCloudflare:
		if t.CDN.ZoneID == "" || t.CDN.APIToken == "" {
			return fmt.Errorf("tenant %s: cloudflare cdn requires zone_id and api_token", t.ID)
		}
	case CDNSucuri:
		if t.CDN.APIKey == "" || t.CDN.APISecret == "" {
			return fmt.Errorf("tenant %s: sucuri cdn requires api_key and api_secret", t.ID)
		}
	case CDNAzure:
		if t.CDN.SubscriptionID == "" || t.CDN.ResourceGroup == "" || t.CDN.ProfileName == "" || t.CDN.EndpointName == "" {
			return fmt.Errorf("tenant %s: azurecdn requires subscription_id, resource_group, profile_name, endpoint_name", t.ID)
		}
	case CDNNone:
	}
	return nil
}

func (cv *configurationValidator) validateStorage() error {
	if cv.config.Storage.Root == "" {
		return errors.New("storage.root is required")
	}
	r := cv.config.Storage.Retry
	if r.InitialDelay != "" {
		if _, err := time.ParseDuration(r.InitialDelay); err != nil {
			return fmt.Errorf("storage.retry.initial_delay invalid: %w", err)
		}
	}
	if r.MaxDelay != "" {
		if _, err := time.ParseDuration(r.MaxDelay); err != nil {
			return fmt.Errorf("storage.retry.max_delay invalid: %w", err)
		}
	}
	if r.MaxRetries < 0 {
		return errors.New("storage.retry.max_retries cannot be negative")
	}
	return nil
}

func (cv *configurationValidator) validateScheduler() error {
	if !cv.config.Scheduler.Enabled {
		return nil
	}
	if cv.config.Scheduler.SweepInterval != "" {
		d, err := time.ParseDuration(cv.config.Scheduler.SweepInterval)
		if err != nil {
			return fmt.Errorf("scheduler.sweep_interval invalid: %w", err)
		}
		if d < time.Second {
			return errors.New("scheduler.sweep_interval must be at least 1s")
		}
	}
	return nil
}

func (cv *configurationValidator) validateContact() error {
	c := cv.config.Contact
	if !c.Enabled {
		return nil
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("contact.rate_limit_per_minute must be positive")
	}
	if c.Captcha.Enabled && c.Captcha.Secret == "" {
		return errors.New("contact.captcha.secret is required when captcha is enabled")
	}
	return nil
}

func (cv *configurationValidator) validateDeploy() error {
	d := cv.config.Deploy
	if !d.Enabled {
		return nil
	}
	if d.RepoPath == "" {
		return errors.New("deploy.repo_path is required when deploy is enabled")
	}
	return nil
}
