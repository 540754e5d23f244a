// Package cdn purges published pages from the CDN cache layer in front
// of each tenant's publisher. Purge failures never fail a publish; the
// pipeline logs them and moves on, since origins serve fresh content
// regardless.
package cdn

import (
	"context"
	"net/url"

	"github.com/skycms/skycms/internal/config"
	"github.com/skycms/skycms/internal/foundation/errors"
)

// Provider purges cached paths from a CDN.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// Purge invalidates the given paths. A path of "/" means the whole
	// site (the front page changed, so listings and navigation did too).
	Purge(ctx context.Context, paths []string) error
}

// New builds the provider for a tenant's CDN configuration. Tenants
// without a CDN get the no-op provider.
func New(cfg *config.CDNConfig) (Provider, error) {
	if cfg == nil {
		return Noop{}, nil
	}

	switch config.NormalizeCDNProvider(string(cfg.Provider)) {
	case config.CDNNone:
		return Noop{}, nil
	case config.CDNCloudflare:
		return NewCloudflare(cfg)
	case config.CDNSucuri:
		return NewSucuri(cfg)
	case config.CDNAzure:
		return NewAzureCDN(cfg)
	default:
		return nil, errors.ConfigError("unknown cdn provider").
			WithContext("provider", string(cfg.Provider)).
			Build()
	}
}

// Noop is the provider for tenants without a CDN.
type Noop struct{}

func (Noop) Name() string { return "none" }

func (Noop) Purge(ctx context.Context, paths []string) error { return nil }

// sitePurge reports whether the path set includes the whole-site path.
func sitePurge(paths []string) bool {
	for _, p := range paths {
		if p == "/" {
			return true
		}
	}
	return false
}

// sitePath reduces an absolute purge URL to its site-relative path, for
// providers whose APIs take paths rather than full URLs.
func sitePath(p string) string {
	u, err := url.Parse(p)
	if err != nil || u.Host == "" {
		return p
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
