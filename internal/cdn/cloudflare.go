package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/skycms/skycms/internal/config"
	"github.com/skycms/skycms/internal/foundation/errors"
)

const cloudflareAPIURL = "https://api.cloudflare.com/client/v4"

// Cloudflare purges through the zone purge_cache endpoint.
type Cloudflare struct {
	zoneID     string
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewCloudflare creates a Cloudflare purge client.
func NewCloudflare(cfg *config.CDNConfig) (*Cloudflare, error) {
	if cfg.ZoneID == "" || cfg.APIToken == "" {
		return nil, errors.ConfigError("cloudflare cdn requires zone_id and api_token").Build()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = cloudflareAPIURL
	}
	return &Cloudflare{
		zoneID:     cfg.ZoneID,
		token:      cfg.APIToken,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Cloudflare) Name() string { return "cloudflare" }

type cloudflarePurgeRequest struct {
	PurgeEverything bool     `json:"purge_everything,omitempty"`
	Files           []string `json:"files,omitempty"`
}

type cloudflarePurgeResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Purge invalidates the given paths. The whole-site path "/" becomes a
// purge_everything request, since Cloudflare only purges full URLs.
func (c *Cloudflare) Purge(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	body := cloudflarePurgeRequest{}
	if sitePurge(paths) {
		body.PurgeEverything = true
	} else {
		body.Files = paths
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return errors.CDNError("failed to encode purge request").WithCause(err).Build()
	}

	url := fmt.Sprintf("%s/zones/%s/purge_cache", c.baseURL, c.zoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return errors.CDNError("failed to build purge request").WithCause(err).Build()
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.CDNError("cloudflare purge request failed").WithCause(err).Build()
	}
	defer resp.Body.Close()

	var result cloudflarePurgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errors.CDNError("failed to decode cloudflare response").
			WithCause(err).
			WithContext("status", resp.Status).
			Build()
	}

	if resp.StatusCode >= 400 || !result.Success {
		msg := "cloudflare purge rejected"
		if len(result.Errors) > 0 {
			msg = fmt.Sprintf("cloudflare purge rejected: %s", result.Errors[0].Message)
		}
		return errors.CDNError(msg).WithContext("status", resp.Status).Build()
	}
	return nil
}
