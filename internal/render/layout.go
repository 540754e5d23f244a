package render

import (
	"context"
	"sync"

	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/model"
)

// Fallback returns the built-in layout used when a tenant has not
// defined one yet. It carries no chrome beyond a content wrapper, so a
// fresh site publishes readable pages out of the box.
func Fallback() *model.Layout {
	return &model.Layout{
		Name:      "default",
		IsDefault: true,
		Head:      `<style>body{font-family:sans-serif;max-width:48rem;margin:0 auto;padding:0 1rem}</style>`,
	}
}

// LayoutLoader fetches the default layout for a tenant from storage.
type LayoutLoader func(ctx context.Context, tenantID string) (*model.Layout, error)

// LayoutCache caches each tenant's default layout. The layout is loaded
// lazily on first use and shared across publish operations; editors
// invalidate the entry when they save a layout.
type LayoutCache struct {
	mu      sync.RWMutex
	layouts map[string]*model.Layout
	load    LayoutLoader
}

// NewLayoutCache creates a cache backed by the given loader.
func NewLayoutCache(load LayoutLoader) *LayoutCache {
	return &LayoutCache{
		layouts: make(map[string]*model.Layout),
		load:    load,
	}
}

// Get returns the tenant's default layout, loading it on first use.
// Tenants without a stored layout get the built-in fallback. Safe for
// concurrent use; concurrent first calls load once.
func (c *LayoutCache) Get(ctx context.Context, tenantID string) (*model.Layout, error) {
	c.mu.RLock()
	l, ok := c.layouts[tenantID]
	c.mu.RUnlock()
	if ok {
		return l, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check under the write lock.
	if l, ok := c.layouts[tenantID]; ok {
		return l, nil
	}

	l, err := c.load(ctx, tenantID)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			l = Fallback()
		} else {
			return nil, err
		}
	}

	c.layouts[tenantID] = l
	return l, nil
}

// Invalidate drops the cached layout for a tenant so the next Get
// reloads it.
func (c *LayoutCache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.layouts, tenantID)
	c.mu.Unlock()
}
