package config

// TenantConfig describes one tenant site: its editor hostname, database,
// publisher URL, and CDN settings.
type TenantConfig struct {
	ID           string     `yaml:"id"`                      // stable identifier, used for artifact subtree
	Name         string     `yaml:"name,omitempty"`          // friendly name
	Hostname     string     `yaml:"hostname"`                // matched against x-origin-hostname
	DSN          string     `yaml:"dsn"`                     // tenant database connection string
	CookieDomain string     `yaml:"cookie_domain,omitempty"` // auth cookie scoping
	PathPrefix   string     `yaml:"path_prefix,omitempty"`   // optional prefix for artifacts and toc.json
	PublisherURL string     `yaml:"publisher_url"`           // public base URL, used for CDN purge paths
	CDN          *CDNConfig `yaml:"cdn,omitempty"`
}

// CDNConfig holds provider-specific cache purge credentials. Only the fields
// for the selected provider need to be set.
type CDNConfig struct {
	Provider CDNProvider `yaml:"provider"`

	// Cloudflare
	ZoneID   string `yaml:"zone_id,omitempty"`
	APIToken string `yaml:"api_token,omitempty"`

	// Sucuri
	APIKey    string `yaml:"api_key,omitempty"`
	APISecret string `yaml:"api_secret,omitempty"`

	// Azure CDN
	SubscriptionID string `yaml:"subscription_id,omitempty"`
	ResourceGroup  string `yaml:"resource_group,omitempty"`
	ProfileName    string `yaml:"profile_name,omitempty"`
	EndpointName   string `yaml:"endpoint_name,omitempty"`
	AccessToken    string `yaml:"access_token,omitempty"`

	// BaseURL overrides the provider API base, used in tests.
	BaseURL string `yaml:"base_url,omitempty"`
}
