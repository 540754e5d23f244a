package handlers

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/skycms/skycms/internal/config"
	"github.com/skycms/skycms/internal/contact"
	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/model"
	"github.com/skycms/skycms/internal/ratelimit"
	"github.com/skycms/skycms/internal/server/responses"
	"github.com/skycms/skycms/internal/tenant"
)

// ContactHandlers serves the embeddable form script and accepts
// submissions. The snippet endpoint lives on both apps so editors can
// preview the form; submissions land wherever the script posts.
type ContactHandlers struct {
	cfg          config.ContactConfig
	service      *contact.Service
	manager      *tenant.Manager
	errorAdapter *errors.HTTPErrorAdapter
}

// NewContactHandlers creates a new contact handlers instance.
func NewContactHandlers(cfg config.ContactConfig, service *contact.Service, manager *tenant.Manager) *ContactHandlers {
	return &ContactHandlers{
		cfg:          cfg,
		service:      service,
		manager:      manager,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleSnippet handles GET /_api/contact/skycms-contact.js.
func (h *ContactHandlers) HandleSnippet(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())

	js := contact.Snippet(t.PublisherURL, h.cfg.Captcha.SiteKey)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(js))
}

// HandleSubmit handles POST /_api/contact/submit. Rate limited clients
// receive 429 with a Retry-After header.
func (h *ContactHandlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())

	var sub contact.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.ValidationError("invalid submission payload").WithCause(err).Build())
		return
	}

	msg, err := h.service.Submit(r.Context(), t, sub, clientIP(r.RemoteAddr))
	if err != nil {
		var limitErr *ratelimit.LimitError
		if stderrors.As(err, &limitErr) {
			retryAfter := int(limitErr.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			_ = writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "too many submissions, slow down",
			})
			return
		}
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	_ = writeJSON(w, http.StatusCreated, &responses.SubmitResponse{
		Status:    "accepted",
		MessageID: msg.ID,
		Timestamp: time.Now().UTC(),
	})
}

// HandleListMessages handles GET /api/contacts on the editor API. The
// limit query parameter caps the result, defaulting to 50.
func (h *ContactHandlers) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())
	db, err := h.manager.DB(t)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	msgs, err := db.ListContacts(r.Context(), limit)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []model.ContactMessage{}
	}
	_ = writeJSONPretty(w, r, http.StatusOK, msgs)
}
