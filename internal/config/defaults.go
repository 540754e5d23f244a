package config

// applyDefaults fills zero-valued fields with operational defaults.
// Runs after unmarshal and before validation so canonical values drive checks.
func applyDefaults(c *Config) {
	if c.Version == "" {
		c.Version = "1.0"
	}

	if c.Server.EditorPort == 0 {
		c.Server.EditorPort = 8080
	}
	if c.Server.PublisherPort == 0 {
		c.Server.PublisherPort = 8081
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9090
	}

	if c.Storage.Root == "" {
		c.Storage.Root = "./public"
	}
	if c.Storage.Retry.Backoff == "" {
		c.Storage.Retry.Backoff = "exponential"
	}
	if c.Storage.Retry.InitialDelay == "" {
		c.Storage.Retry.InitialDelay = "500ms"
	}
	if c.Storage.Retry.MaxDelay == "" {
		c.Storage.Retry.MaxDelay = "8s"
	}
	if c.Storage.Retry.MaxRetries == 0 {
		c.Storage.Retry.MaxRetries = 3
	}

	if c.Publish.Concurrency <= 0 {
		c.Publish.Concurrency = 4
	}
	if c.Publish.QueueSize <= 0 {
		c.Publish.QueueSize = 64
	}
	if c.Publish.Workers <= 0 {
		c.Publish.Workers = 2
	}

	if c.Scheduler.SweepInterval == "" {
		c.Scheduler.SweepInterval = "1m"
	}
	if c.Scheduler.NightlyRebuild && c.Scheduler.RebuildAt == "" {
		c.Scheduler.RebuildAt = "03:30"
	}

	if c.Contact.RateLimitPerMinute <= 0 {
		c.Contact.RateLimitPerMinute = 5
	}
	if c.Contact.Captcha.VerifyURL == "" {
		c.Contact.Captcha.VerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}

	if c.Deploy.Branch == "" {
		c.Deploy.Branch = "main"
	}

	if len(c.Tenants) == 1 && c.DefaultTenant == "" {
		c.DefaultTenant = c.Tenants[0].ID
	}

	for _, t := range c.Tenants {
		if t.Name == "" {
			t.Name = t.ID
		}
		if t.CDN != nil {
			// Canonicalize known providers and aliases; unknown values are
			// left for validation to reject.
			if res := ParseCDNProvider(string(t.CDN.Provider)); res.IsOk() {
				t.CDN.Provider = res.Unwrap()
			}
		}
	}
}
