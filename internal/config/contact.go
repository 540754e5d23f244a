package config

// ContactConfig controls the shared contact form API.
type ContactConfig struct {
	Enabled            bool          `yaml:"enabled,omitempty"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute,omitempty"`
	Captcha            CaptchaConfig `yaml:"captcha,omitempty"`
}

// CaptchaConfig holds the siteverify-style CAPTCHA settings. The verify URL
// shape is shared by reCAPTCHA, hCaptcha, and Turnstile.
type CaptchaConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	SiteKey   string `yaml:"site_key,omitempty"`
	Secret    string `yaml:"secret,omitempty"`
	VerifyURL string `yaml:"verify_url,omitempty"`
}
