package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skycms/skycms/internal/events"
	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/logfields"
	"github.com/skycms/skycms/internal/model"
	"github.com/skycms/skycms/internal/publish"
	"github.com/skycms/skycms/internal/tenant"
)

// LayoutHandlers contains the editor's layout endpoints. Saving a
// layout invalidates the publisher's cached chrome so subsequent
// renders pick it up.
type LayoutHandlers struct {
	manager      *tenant.Manager
	publisher    *publish.Publisher
	bus          *events.Bus
	logger       *slog.Logger
	errorAdapter *errors.HTTPErrorAdapter
}

// NewLayoutHandlers creates a new layout handlers instance. bus may be
// nil when no event fanout is configured.
func NewLayoutHandlers(manager *tenant.Manager, publisher *publish.Publisher, bus *events.Bus) *LayoutHandlers {
	return &LayoutHandlers{
		manager:      manager,
		publisher:    publisher,
		bus:          bus,
		logger:       slog.Default(),
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleList handles GET /api/layouts.
func (h *LayoutHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())
	db, err := h.manager.DB(t)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	layouts, err := db.ListLayouts(r.Context())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if layouts == nil {
		layouts = []model.Layout{}
	}
	_ = writeJSONPretty(w, r, http.StatusOK, layouts)
}

// HandleGet handles GET /api/layouts/{name}.
func (h *LayoutHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())
	db, err := h.manager.DB(t)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	l, err := db.GetLayout(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, l)
}

// HandleSave handles PUT /api/layouts/{name}, upserting the layout and
// invalidating the cached chrome.
func (h *LayoutHandlers) HandleSave(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())
	db, err := h.manager.DB(t)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	var l model.Layout
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.ValidationError("invalid layout payload").WithCause(err).Build())
		return
	}
	l.Name = chi.URLParam(r, "name")

	if err := db.SaveLayout(r.Context(), &l); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	h.publisher.InvalidateLayout(t.ID)
	h.publishEvent(r, events.LayoutSaved{
		Tenant:    t.ID,
		Name:      l.Name,
		IsDefault: l.IsDefault,
		Timestamp: time.Now().UTC(),
	})
	_ = writeJSON(w, http.StatusOK, &l)
}

// HandleDelete handles DELETE /api/layouts/{name}.
func (h *LayoutHandlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())
	db, err := h.manager.DB(t)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if err := db.DeleteLayout(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	h.publisher.InvalidateLayout(t.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *LayoutHandlers) publishEvent(r *http.Request, evt events.LayoutSaved) {
	if h.bus == nil {
		return
	}
	if err := h.bus.Publish(r.Context(), evt); err != nil {
		h.logger.Warn("layout event dropped", logfields.Error(err))
	}
}
