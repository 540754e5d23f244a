// Package tenant resolves incoming hostnames to tenant configurations
// and carries the resolved tenant through request contexts.
package tenant

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/skycms/skycms/internal/config"
)

type contextKey string

const tenantContextKey contextKey = "tenant"

var (
	// ErrNoTenant is returned when a context carries no tenant.
	ErrNoTenant = errors.New("no tenant in context")

	// ErrUnknownHost is returned when a hostname matches no configured
	// tenant and no default tenant is configured.
	ErrUnknownHost = errors.New("unknown tenant hostname")
)

// Tenant is a resolved site: one content database, one publisher origin,
// and optionally one CDN in front of it.
type Tenant struct {
	ID           string
	Name         string
	Hostname     string
	DSN          string
	CookieDomain string
	PathPrefix   string
	PublisherURL string
	CDN          *config.CDNConfig
}

// FromConfig builds a Tenant from its configuration block.
func FromConfig(tc *config.TenantConfig) *Tenant {
	return &Tenant{
		ID:           tc.ID,
		Name:         tc.Name,
		Hostname:     tc.Hostname,
		DSN:          tc.DSN,
		CookieDomain: tc.CookieDomain,
		PathPrefix:   tc.PathPrefix,
		PublisherURL: tc.PublisherURL,
		CDN:          tc.CDN,
	}
}

// WithTenant returns a context carrying the tenant.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey, t)
}

// FromContext extracts the tenant from the context.
func FromContext(ctx context.Context) (*Tenant, error) {
	t, ok := ctx.Value(tenantContextKey).(*Tenant)
	if !ok || t == nil {
		return nil, ErrNoTenant
	}
	return t, nil
}

// MustFromContext extracts the tenant or panics. Only for handlers that
// run strictly behind the tenant middleware.
func MustFromContext(ctx context.Context) *Tenant {
	t, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return t
}

// Registry maps hostnames to tenants. The tenant set can be swapped at
// runtime via Reload, so all lookups go through the read lock.
type Registry struct {
	mu        sync.RWMutex
	byHost    map[string]*Tenant
	byID      map[string]*Tenant
	defaultID string
	ordered   []*Tenant
}

// NewRegistry builds a registry from the loaded configuration. Hostname
// matching is case-insensitive. Both the editor hostname and the host
// of the publisher URL resolve to the tenant, so the same registry
// serves both apps.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		byHost:    make(map[string]*Tenant),
		byID:      make(map[string]*Tenant),
		defaultID: cfg.DefaultTenant,
	}
	for _, tc := range cfg.Tenants {
		t := FromConfig(tc)
		r.byHost[strings.ToLower(t.Hostname)] = t
		if h := publisherHost(t.PublisherURL); h != "" {
			if _, taken := r.byHost[h]; !taken {
				r.byHost[h] = t
			}
		}
		r.byID[t.ID] = t
		r.ordered = append(r.ordered, t)
	}
	return r
}

func publisherHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Reload replaces the tenant set with one built from a freshly loaded
// configuration. In-flight requests keep the tenant pointer they
// resolved; only new lookups see the new set.
func (r *Registry) Reload(cfg *config.Config) {
	next := NewRegistry(cfg)
	r.mu.Lock()
	r.byHost = next.byHost
	r.byID = next.byID
	r.defaultID = next.defaultID
	r.ordered = next.ordered
	r.mu.Unlock()
}

// Resolve returns the tenant for a hostname. Ports are stripped before
// matching. Unmatched hostnames fall back to the default tenant when one
// is configured, otherwise ErrUnknownHost.
func (r *Registry) Resolve(hostname string) (*Tenant, error) {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.byHost[host]; ok {
		return t, nil
	}
	if r.defaultID != "" {
		if t, ok := r.byID[r.defaultID]; ok {
			return t, nil
		}
	}
	return nil, ErrUnknownHost
}

// ByID returns the tenant with the given id, or nil.
func (r *Registry) ByID(id string) *Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Default returns the default tenant, or nil when none is configured.
func (r *Registry) Default() *Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultID == "" {
		return nil
	}
	return r.byID[r.defaultID]
}

// All returns the tenants in configuration order. The returned slice is
// a snapshot; Reload never mutates it in place.
func (r *Registry) All() []*Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ordered
}
