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

const (
	azureManagementURL = "https://management.azure.com"
	azureAPIVersion    = "2024-02-01"
)

// AzureCDN purges through the Azure management-plane endpoint purge
// operation.
type AzureCDN struct {
	subscriptionID string
	resourceGroup  string
	profileName    string
	endpointName   string
	accessToken    string
	baseURL        string
	httpClient     *http.Client
}

// NewAzureCDN creates an Azure CDN purge client.
func NewAzureCDN(cfg *config.CDNConfig) (*AzureCDN, error) {
	if cfg.SubscriptionID == "" || cfg.ResourceGroup == "" || cfg.ProfileName == "" || cfg.EndpointName == "" {
		return nil, errors.ConfigError("azure cdn requires subscription_id, resource_group, profile_name and endpoint_name").Build()
	}
	if cfg.AccessToken == "" {
		return nil, errors.ConfigError("azure cdn requires access_token").Build()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = azureManagementURL
	}
	return &AzureCDN{
		subscriptionID: cfg.SubscriptionID,
		resourceGroup:  cfg.ResourceGroup,
		profileName:    cfg.ProfileName,
		endpointName:   cfg.EndpointName,
		accessToken:    cfg.AccessToken,
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *AzureCDN) Name() string { return "azure" }

type azurePurgeRequest struct {
	ContentPaths []string `json:"contentPaths"`
}

// Purge invalidates the given paths. The whole-site path "/" becomes
// the wildcard "/*". The purge API takes content paths, so absolute
// URLs are reduced to their path first.
func (a *AzureCDN) Purge(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	var contentPaths []string
	if sitePurge(paths) {
		contentPaths = []string{"/*"}
	} else {
		contentPaths = make([]string, 0, len(paths))
		for _, p := range paths {
			contentPaths = append(contentPaths, sitePath(p))
		}
	}

	jsonBody, err := json.Marshal(azurePurgeRequest{ContentPaths: contentPaths})
	if err != nil {
		return errors.CDNError("failed to encode purge request").WithCause(err).Build()
	}

	url := fmt.Sprintf(
		"%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Cdn/profiles/%s/endpoints/%s/purge?api-version=%s",
		a.baseURL, a.subscriptionID, a.resourceGroup, a.profileName, a.endpointName, azureAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return errors.CDNError("failed to build purge request").WithCause(err).Build()
	}
	req.Header.Set("Authorization", "Bearer "+a.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errors.CDNError("azure purge request failed").WithCause(err).Build()
	}
	defer resp.Body.Close()

	// The purge operation is async; Azure answers 200 or 202.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return errors.CDNError("azure purge rejected").WithContext("status", resp.Status).Build()
	}
	return nil
}
