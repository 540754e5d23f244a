package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/logfields"
	"github.com/skycms/skycms/internal/pathrule"
	"github.com/skycms/skycms/internal/publish"
	"github.com/skycms/skycms/internal/render"
	"github.com/skycms/skycms/internal/storage"
	"github.com/skycms/skycms/internal/tenant"
	"github.com/skycms/skycms/internal/toc"
)

// SiteHandlers serves the published site: static artifacts first, with
// a dynamic render from the published pages table when an artifact is
// missing.
type SiteHandlers struct {
	manager   *tenant.Manager
	store     storage.ArtifactStore
	publisher *publish.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewSiteHandlers creates a new site handlers instance.
func NewSiteHandlers(manager *tenant.Manager, store storage.ArtifactStore, publisher *publish.Publisher, logger *slog.Logger) *SiteHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &SiteHandlers{
		manager:   manager,
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleSite is the publisher catch-all. The request path maps onto the
// artifact layout: "/" serves /index.html, everything else serves its
// normalized path.
func (h *SiteHandlers) HandleSite(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())

	reqPath := pathrule.Normalize(r.URL.Path)
	artifactPath := reqPath
	if reqPath == "/" {
		artifactPath = "/index.html"
	}

	data, err := h.store.Read(r.Context(), t.ID, artifactPath)
	if err == nil {
		serveArtifact(w, artifactPath, data)
		return
	}
	if !errors.HasCategory(err, errors.CategoryNotFound) {
		h.logger.Error("artifact read failed",
			logfields.Tenant(t.ID),
			logfields.Path(artifactPath),
			logfields.Error(err))
		h.serveError(w)
		return
	}

	if reqPath == pathrule.TocPath(t.PathPrefix) {
		h.serveDynamicTOC(w, r, t)
		return
	}
	h.serveDynamicPage(w, r, t, reqPath)
}

// serveDynamicPage renders a live page straight from the published
// pages table. This keeps content reachable when artifacts were lost or
// the site has not been rebuilt yet.
func (h *SiteHandlers) serveDynamicPage(w http.ResponseWriter, r *http.Request, t *tenant.Tenant, reqPath string) {
	db, err := h.manager.DB(t)
	if err != nil {
		h.logger.Error("tenant database unavailable", logfields.Tenant(t.ID), logfields.Error(err))
		h.serveError(w)
		return
	}

	urlPath := pathrule.RootPath
	if reqPath != "/" {
		urlPath = strings.TrimPrefix(reqPath, "/")
	}
	page, err := db.GetPageByPath(r.Context(), urlPath)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			h.serveNotFound(w)
			return
		}
		h.logger.Error("page lookup failed", logfields.Tenant(t.ID), logfields.Error(err))
		h.serveError(w)
		return
	}
	if !page.IsLive(h.now()) {
		h.serveNotFound(w)
		return
	}

	layout, err := h.publisher.Layout(r.Context(), t.ID)
	if err != nil {
		h.logger.Error("layout load failed", logfields.Tenant(t.ID), logfields.Error(err))
		h.serveError(w)
		return
	}
	html, err := render.Page(layout, page)
	if err != nil {
		h.logger.Error("dynamic render failed",
			logfields.Tenant(t.ID),
			logfields.URLPath(page.URLPath),
			logfields.Error(err))
		h.serveError(w)
		return
	}

	h.logger.Debug("served page dynamically",
		logfields.Tenant(t.ID),
		logfields.URLPath(page.URLPath))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// serveDynamicTOC builds the table of contents from the database when
// no stored toc.json exists yet.
func (h *SiteHandlers) serveDynamicTOC(w http.ResponseWriter, r *http.Request, t *tenant.Tenant) {
	db, err := h.manager.DB(t)
	if err != nil {
		h.logger.Error("tenant database unavailable", logfields.Tenant(t.ID), logfields.Error(err))
		h.serveError(w)
		return
	}
	pages, err := db.ListPagesByPrefix(r.Context(), t.PathPrefix)
	if err != nil {
		h.logger.Error("page listing failed", logfields.Tenant(t.ID), logfields.Error(err))
		h.serveError(w)
		return
	}
	entries := toc.Build(pages, h.now())
	data, err := toc.Marshal(entries)
	if err != nil {
		h.serveError(w)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func serveArtifact(w http.ResponseWriter, artifactPath string, data []byte) {
	if strings.HasSuffix(artifactPath, ".json") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=300")
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *SiteHandlers) serveNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = fmt.Fprint(w, `<!doctype html><html><head><meta charset="utf-8"><title>Not Found</title></head><body><h1>Page not found</h1><p>The page you requested does not exist or is no longer published.</p></body></html>`)
}

func (h *SiteHandlers) serveError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = fmt.Fprint(w, `<!doctype html><html><head><meta charset="utf-8"><title>Error</title></head><body><h1>Something went wrong</h1><p>The page could not be served. Try again shortly.</p></body></html>`)
}
