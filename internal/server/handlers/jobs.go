package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/publish"
	"github.com/skycms/skycms/internal/server/responses"
	"github.com/skycms/skycms/internal/tenant"
)

// JobHandlers exposes the publish queue: triggering rebuilds and
// polling job state.
type JobHandlers struct {
	queue        *publish.Queue
	errorAdapter *errors.HTTPErrorAdapter
}

// NewJobHandlers creates a new job handlers instance.
func NewJobHandlers(queue *publish.Queue) *JobHandlers {
	return &JobHandlers{
		queue:        queue,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleRebuild handles POST /api/rebuild, queueing a full site rebuild
// for the request's tenant.
func (h *JobHandlers) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())

	job := publish.NewRebuildJob(t.ID)
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

// HandleTocRebuild handles POST /api/toc, queueing a TOC-only
// regeneration. Cheaper than a full rebuild when only navigation
// consumers need refreshing.
func (h *JobHandlers) HandleTocRebuild(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())

	job := publish.NewTocJob(t.ID)
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

// jobsResponse is the queue overview payload.
type jobsResponse struct {
	QueueLength int            `json:"queue_length"`
	Active      []*publish.Job `json:"active"`
	History     []*publish.Job `json:"history"`
}

// HandleJobs handles GET /api/jobs, returning active jobs and recent
// history.
func (h *JobHandlers) HandleJobs(w http.ResponseWriter, r *http.Request) {
	resp := &jobsResponse{
		QueueLength: h.queue.Length(),
		Active:      h.queue.Active(),
		History:     h.queue.History(),
	}
	if resp.Active == nil {
		resp.Active = []*publish.Job{}
	}
	if resp.History == nil {
		resp.History = []*publish.Job{}
	}
	_ = writeJSONPretty(w, r, http.StatusOK, resp)
}

// HandleGetJob handles GET /api/jobs/{id}.
func (h *JobHandlers) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job := h.queue.Job(id)
	if job == nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.NotFoundError("job "+id+" not found").Build())
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, job)
}
