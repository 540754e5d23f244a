package config

import (
	"fmt"

	"github.com/skycms/skycms/internal/foundation"
	"github.com/skycms/skycms/internal/foundation/errors"
)

// CDNProvider identifies a supported CDN purge backend.
type CDNProvider string

const (
	CDNCloudflare CDNProvider = "cloudflare"
	CDNSucuri     CDNProvider = "sucuri"
	CDNAzure      CDNProvider = "azurecdn"
	CDNNone       CDNProvider = "none"
)

var (
	cdnProviderNormalizer = foundation.NewNormalizer(map[string]CDNProvider{
		"cloudflare": CDNCloudflare,
		"sucuri":     CDNSucuri,
		"azurecdn":   CDNAzure,
		"azure":      CDNAzure,
		"none":       CDNNone,
		"":           CDNNone,
	}, CDNNone)

	cdnProviderValidator = foundation.OneOf("cdn.provider", []CDNProvider{
		CDNCloudflare, CDNSucuri, CDNAzure, CDNNone,
	})
)

// String returns the string representation of the provider.
func (p CDNProvider) String() string {
	return string(p)
}

// Valid checks whether the provider is one of the known backends.
func (p CDNProvider) Valid() bool {
	return cdnProviderValidator(p).Valid
}

// ParseCDNProvider parses a string into a CDNProvider with error handling.
func ParseCDNProvider(s string) foundation.Result[CDNProvider, error] {
	provider, err := cdnProviderNormalizer.NormalizeWithError(s)
	if err != nil {
		return foundation.Err[CDNProvider, error](
			errors.ConfigError(fmt.Sprintf("invalid cdn provider: %s", s)).
				WithContext("input", s).
				WithContext("valid_values", cdnProviderNormalizer.ValidKeys()).
				Build(),
		)
	}
	return foundation.Ok[CDNProvider, error](provider)
}

// NormalizeCDNProvider normalizes a string to a CDNProvider, returning none if unknown.
func NormalizeCDNProvider(s string) CDNProvider {
	return cdnProviderNormalizer.Normalize(s)
}
