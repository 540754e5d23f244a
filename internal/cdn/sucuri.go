package cdn

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skycms/skycms/internal/config"
	"github.com/skycms/skycms/internal/foundation/errors"
)

const sucuriAPIURL = "https://waf.sucuri.net/api"

// Sucuri purges through the WAF cache API. The API clears either the
// whole cache or a single file per call.
type Sucuri struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
}

// NewSucuri creates a Sucuri purge client.
func NewSucuri(cfg *config.CDNConfig) (*Sucuri, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.ConfigError("sucuri cdn requires api_key and api_secret").Build()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sucuriAPIURL
	}
	return &Sucuri{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *Sucuri) Name() string { return "sucuri" }

// Purge invalidates the given paths. The whole-site path "/" clears the
// entire cache; other paths are cleared one call each, reduced to their
// site-relative form since the file parameter takes a path.
func (s *Sucuri) Purge(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	if sitePurge(paths) {
		return s.clearCache(ctx, "")
	}
	for _, p := range paths {
		if err := s.clearCache(ctx, sitePath(p)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sucuri) clearCache(ctx context.Context, file string) error {
	params := url.Values{}
	params.Set("v2", "1")
	params.Set("k", s.apiKey)
	params.Set("s", s.apiSecret)
	params.Set("a", "clear_cache")
	if file != "" {
		params.Set("file", file)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, strings.NewReader(params.Encode()))
	if err != nil {
		return errors.CDNError("failed to build purge request").WithCause(err).Build()
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.CDNError("sucuri purge request failed").WithCause(err).Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.CDNError("sucuri purge rejected").
			WithContext("status", resp.Status).
			WithContext("body", strings.TrimSpace(string(body))).
			Build()
	}
	return nil
}
