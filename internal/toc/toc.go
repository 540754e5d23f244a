// Package toc builds and publishes the machine-readable table of
// contents: a JSON array of the live pages, consumed by site navigation
// and feed generators.
package toc

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/model"
	"github.com/skycms/skycms/internal/pathrule"
	"github.com/skycms/skycms/internal/render"
	"github.com/skycms/skycms/internal/storage"
)

// Build converts published pages into TOC entries. Pages not yet live
// (scheduled) or past their expiry are excluded, as is the front page
// itself. Entries come back newest-published first.
func Build(pages []model.PublishedPage, now time.Time) []model.TocEntry {
	entries := make([]model.TocEntry, 0, len(pages))
	for i := range pages {
		p := &pages[i]
		if !p.IsLive(now) || pathrule.IsRoot(p.URLPath) {
			continue
		}
		entries = append(entries, model.TocEntry{
			Title:       p.Title,
			URLPath:     pathrule.PagePath(p.URLPath),
			Summary:     render.Summary(p.Summary, p.Content),
			BannerImage: p.BannerImage,
			AuthorName:  p.AuthorName,
			Published:   p.Published,
			Updated:     p.UpdatedAt,
		})
	}

	// ListPages orders by URL path; the TOC wants recency.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Published.After(entries[j].Published)
	})
	return entries
}

// Marshal encodes TOC entries as the published JSON document.
func Marshal(entries []model.TocEntry) ([]byte, error) {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, errors.PublishError("failed to encode table of contents").WithCause(err).Build()
	}
	return append(data, '\n'), nil
}

// Write builds the TOC for the given pages and stores it at the
// tenant's TOC path (prefix-scoped when the tenant has a path prefix).
// Callers pass pages already scoped to the tenant's prefix; the
// database prefix listing does that filtering.
func Write(ctx context.Context, store storage.ArtifactStore, tenantID, prefix string, pages []model.PublishedPage, now time.Time) error {
	entries := Build(pages, now)
	data, err := Marshal(entries)
	if err != nil {
		return err
	}
	return store.Write(ctx, tenantID, pathrule.TocPath(prefix), data)
}
