package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skycms/skycms/internal/database"
	"github.com/skycms/skycms/internal/foundation"
	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/model"
	"github.com/skycms/skycms/internal/pathrule"
	"github.com/skycms/skycms/internal/publish"
	"github.com/skycms/skycms/internal/render"
	"github.com/skycms/skycms/internal/server/responses"
	"github.com/skycms/skycms/internal/tenant"
)

// ArticleHandlers contains the editor's article CRUD and publish
// endpoints. All handlers run behind the tenant middleware.
type ArticleHandlers struct {
	manager      *tenant.Manager
	queue        *publish.Queue
	publisher    *publish.Publisher
	errorAdapter *errors.HTTPErrorAdapter
}

// NewArticleHandlers creates a new article handlers instance.
func NewArticleHandlers(manager *tenant.Manager, queue *publish.Queue, publisher *publish.Publisher) *ArticleHandlers {
	return &ArticleHandlers{
		manager:      manager,
		queue:        queue,
		publisher:    publisher,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

func (h *ArticleHandlers) db(r *http.Request) (*tenantDB, error) {
	t := tenant.MustFromContext(r.Context())
	db, err := h.manager.DB(t)
	if err != nil {
		return nil, err
	}
	return &tenantDB{tenant: t, DB: db}, nil
}

// urlParamInt64 parses a chi URL parameter as a positive integer.
func urlParamInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.ValidationError("invalid "+name).
			WithContext(name, raw).
			Build()
	}
	return n, nil
}

// HandleList handles GET /api/articles.
func (h *ArticleHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	db, err := h.db(r)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	articles, err := db.ListArticles(r.Context())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if articles == nil {
		articles = []model.Article{}
	}
	_ = writeJSONPretty(w, r, http.StatusOK, articles)
}

// HandleCreate handles POST /api/articles. The body is an article
// draft; number, version, and ID are assigned server-side, and a
// missing URL path is derived from the title.
func (h *ArticleHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	db, err := h.db(r)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	var a model.Article
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.ValidationError("invalid article payload").WithCause(err).Build())
		return
	}
	a.ID = ""
	a.Number = 0
	a.Version = 0
	a.Published = foundation.None[time.Time]()
	if a.URLPath == "" {
		a.URLPath = pathrule.Slug(a.Title)
	}
	a.URLPath = pathrule.Canonical(a.URLPath)
	if a.ContentFormat == "" {
		a.ContentFormat = model.FormatMarkdown
	}
	a.Fingerprint = render.Fingerprint(&a)

	if err := db.CreateArticle(r.Context(), &a); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, &a)
}

// HandleGet handles GET /api/articles/{number}, returning the latest
// version.
func (h *ArticleHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	number, err := urlParamInt64(r, "number")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	db, err := h.db(r)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	a, err := db.GetArticle(r.Context(), number)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, a)
}

// HandleSave handles PUT /api/articles/{number}: every save creates a
// new draft version carrying the submitted content.
func (h *ArticleHandlers) HandleSave(w http.ResponseWriter, r *http.Request) {
	number, err := urlParamInt64(r, "number")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	db, err := h.db(r)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	var a model.Article
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.ValidationError("invalid article payload").WithCause(err).Build())
		return
	}
	a.Number = number
	a.URLPath = pathrule.Canonical(a.URLPath)
	if a.ContentFormat == "" {
		a.ContentFormat = model.FormatMarkdown
	}
	a.Fingerprint = render.Fingerprint(&a)

	saved, err := db.SaveVersion(r.Context(), &a)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, saved)
}

// HandleVersions handles GET /api/articles/{number}/versions.
func (h *ArticleHandlers) HandleVersions(w http.ResponseWriter, r *http.Request) {
	number, err := urlParamInt64(r, "number")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	db, err := h.db(r)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	versions, err := db.ListVersions(r.Context(), number)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, versions)
}

// HandleGetVersion handles GET /api/articles/{number}/versions/{version}.
func (h *ArticleHandlers) HandleGetVersion(w http.ResponseWriter, r *http.Request) {
	number, err := urlParamInt64(r, "number")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	version, err := urlParamInt64(r, "version")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	db, err := h.db(r)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	a, err := db.GetArticleVersion(r.Context(), number, int(version))
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, a)
}

// HandleUpdateVersion handles PUT /api/articles/{number}/versions/{version},
// overwriting a draft version's content in place.
func (h *ArticleHandlers) HandleUpdateVersion(w http.ResponseWriter, r *http.Request) {
	number, err := urlParamInt64(r, "number")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	version, err := urlParamInt64(r, "version")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	db, err := h.db(r)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	current, err := db.GetArticleVersion(r.Context(), number, int(version))
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	var a model.Article
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.ValidationError("invalid article payload").WithCause(err).Build())
		return
	}
	a.ID = current.ID
	a.Number = number
	a.Version = int(version)
	a.Published = current.Published
	a.URLPath = pathrule.Canonical(a.URLPath)
	if a.ContentFormat == "" {
		a.ContentFormat = current.ContentFormat
	}
	a.Fingerprint = render.Fingerprint(&a)

	if err := db.UpdateArticle(r.Context(), &a); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, &a)
}

// HandleDelete handles DELETE /api/articles/{number}. A live page is
// taken down before the versions are removed.
func (h *ArticleHandlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	number, err := urlParamInt64(r, "number")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	db, err := h.db(r)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	if _, err := h.publisher.UnpublishArticle(r.Context(), db.tenant, number); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if err := db.DeleteArticle(r.Context(), number); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// publishRequest is the body of a publish trigger. A zero version means
// the latest; a zero publish_at means immediately.
type publishRequest struct {
	Version   int       `json:"version"`
	PublishAt time.Time `json:"publish_at"`
}

// HandlePublish handles POST /api/articles/{number}/publish. The work
// runs on the publish queue; the response carries the job ID to poll.
func (h *ArticleHandlers) HandlePublish(w http.ResponseWriter, r *http.Request) {
	number, err := urlParamInt64(r, "number")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	db, err := h.db(r)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	var req publishRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.errorAdapter.WriteErrorResponse(w, r,
				errors.ValidationError("invalid publish payload").WithCause(err).Build())
			return
		}
	}
	if req.Version == 0 {
		latest, err := db.GetArticle(r.Context(), number)
		if err != nil {
			h.errorAdapter.WriteErrorResponse(w, r, err)
			return
		}
		req.Version = latest.Version
	}

	job := publish.NewPublishJob(db.tenant.ID, number, req.Version, req.PublishAt)
	if err := h.queue.Enqueue(job); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusAccepted, &responses.TriggerResponse{
		Status:    "queued",
		JobID:     job.ID,
		Timestamp: time.Now().UTC(),
	})
}

// HandleUnpublish handles POST /api/articles/{number}/unpublish.
func (h *ArticleHandlers) HandleUnpublish(w http.ResponseWriter, r *http.Request) {
	number, err := urlParamInt64(r, "number")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	db, err := h.db(r)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	job := publish.NewUnpublishJob(db.tenant.ID, number)
	if err := h.queue.Enqueue(job); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusAccepted, &responses.TriggerResponse{
		Status:    "queued",
		JobID:     job.ID,
		Timestamp: time.Now().UTC(),
	})
}

// HandlePreview handles POST /api/articles/preview. The draft body is
// rendered through the tenant's layout without touching stored state.
func (h *ArticleHandlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())

	var a model.Article
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.ValidationError("invalid article payload").WithCause(err).Build())
		return
	}
	if a.ContentFormat == "" {
		a.ContentFormat = model.FormatMarkdown
	}

	body, err := render.Body(a.ContentFormat, a.Content)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	layout, err := h.publisher.Layout(r.Context(), t.ID)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	page := &model.PublishedPage{
		Title:        a.Title,
		URLPath:      a.URLPath,
		Summary:      a.Summary,
		Content:      body,
		HeadScript:   a.HeadScript,
		FooterScript: a.FooterScript,
		BannerImage:  a.BannerImage,
		AuthorName:   a.AuthorName,
		Published:    time.Now().UTC(),
	}
	html, err := render.Page(layout, page)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// tenantDB pairs a tenant with its open database handle.
type tenantDB struct {
	tenant *tenant.Tenant
	*database.DB
}
