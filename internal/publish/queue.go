package publish

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/logfields"
	"github.com/skycms/skycms/internal/metrics"
)

// JobType enumerates the work a queue job carries.
type JobType string

const (
	JobTypePublish   JobType = "publish"
	JobTypeUnpublish JobType = "unpublish"
	JobTypeRebuild   JobType = "rebuild"
	JobTypeSweep     JobType = "sweep"
	JobTypeToc       JobType = "toc"
)

// JobStatus tracks a job through its lifecycle.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is one unit of queued pipeline work.
type Job struct {
	ID            string        `json:"id"`
	Type          JobType       `json:"type"`
	Tenant        string        `json:"tenant"`
	ArticleNumber int64         `json:"article_number,omitempty"`
	Version       int           `json:"version,omitempty"`
	PublishAt     time.Time     `json:"publish_at"`
	Status        JobStatus     `json:"status"`
	Error         string        `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`

	cancel context.CancelFunc
}

// NewPublishJob queues publication of one article version. A zero
// publishAt publishes immediately.
func NewPublishJob(tenantID string, number int64, version int, publishAt time.Time) *Job {
	return &Job{
		ID:            uuid.NewString(),
		Type:          JobTypePublish,
		Tenant:        tenantID,
		ArticleNumber: number,
		Version:       version,
		PublishAt:     publishAt,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewUnpublishJob queues a takedown of an article.
func NewUnpublishJob(tenantID string, number int64) *Job {
	return &Job{
		ID:            uuid.NewString(),
		Type:          JobTypeUnpublish,
		Tenant:        tenantID,
		ArticleNumber: number,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewRebuildJob queues a full-site rebuild for a tenant.
func NewRebuildJob(tenantID string) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Type:      JobTypeRebuild,
		Tenant:    tenantID,
		CreatedAt: time.Now().UTC(),
	}
}

// NewSweepJob queues a scheduler sweep for a tenant.
func NewSweepJob(tenantID string) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Type:      JobTypeSweep,
		Tenant:    tenantID,
		CreatedAt: time.Now().UTC(),
	}
}

// NewTocJob queues a TOC-only regeneration for a tenant.
func NewTocJob(tenantID string) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Type:      JobTypeToc,
		Tenant:    tenantID,
		CreatedAt: time.Now().UTC(),
	}
}

// Queue serializes pipeline work through a bounded worker pool. Jobs
// are accepted without blocking; a full queue is an error the caller
// reports back to the editor.
type Queue struct {
	jobs        chan *Job
	workers     int
	maxSize     int
	mu          sync.RWMutex
	pending     map[string]*Job
	active      map[string]*Job
	history     []*Job
	historySize int
	stopChan    chan struct{}
	wg          sync.WaitGroup
	publisher   *Publisher
	recorder    metrics.Recorder
	logger      *slog.Logger
}

// NewQueue builds a queue around a publisher. Non-positive sizes fall
// back to the defaults (64 slots, 2 workers).
func NewQueue(publisher *Publisher, maxSize, workers int) *Queue {
	if maxSize <= 0 {
		maxSize = 64
	}
	if workers <= 0 {
		workers = 2
	}
	return &Queue{
		jobs:        make(chan *Job, maxSize),
		workers:     workers,
		maxSize:     maxSize,
		pending:     make(map[string]*Job),
		active:      make(map[string]*Job),
		historySize: 50,
		stopChan:    make(chan struct{}),
		publisher:   publisher,
		recorder:    publisher.recorder,
		logger:      publisher.logger,
	}
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) {
	q.logger.Info("starting publish queue", slog.Int("workers", q.workers), slog.Int("max_size", q.maxSize))
	for i := range q.workers {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop cancels active jobs and waits for the workers to drain.
func (q *Queue) Stop() {
	close(q.stopChan)

	q.mu.Lock()
	for _, job := range q.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("publish queue stopped")
}

// Enqueue adds a job without blocking.
func (q *Queue) Enqueue(job *Job) error {
	if job == nil {
		return errors.ValidationError("job cannot be nil").Build()
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.Status = JobStatusQueued

	// Track the job before handing it to the channel so a poll right
	// after Enqueue returns always finds it, even if no worker has
	// picked it up yet.
	q.mu.Lock()
	q.pending[job.ID] = job
	q.mu.Unlock()

	select {
	case q.jobs <- job:
		q.recorder.SetQueueDepth(len(q.jobs))
		q.logger.Info("job enqueued",
			logfields.JobID(job.ID), slog.String("type", string(job.Type)), logfields.Tenant(job.Tenant))
		return nil
	default:
		q.mu.Lock()
		delete(q.pending, job.ID)
		q.mu.Unlock()
		return errors.PublishError("publish queue is full").WithContext("capacity", q.maxSize).Build()
	}
}

// Length returns the number of jobs waiting in the queue.
func (q *Queue) Length() int {
	return len(q.jobs)
}

// Active returns a snapshot of currently running jobs. Jobs are copied
// so callers never observe a worker mid-update.
func (q *Queue) Active() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	active := make([]*Job, 0, len(q.active))
	for _, job := range q.active {
		c := *job
		active = append(active, &c)
	}
	return active
}

// History returns recently completed jobs, oldest first.
func (q *Queue) History() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	history := make([]*Job, 0, len(q.history))
	for _, job := range q.history {
		c := *job
		history = append(history, &c)
	}
	return history
}

// Job looks up a job by ID among queued, active, and completed jobs.
func (q *Queue) Job(id string) *Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if job, ok := q.active[id]; ok {
		c := *job
		return &c
	}
	if job, ok := q.pending[id]; ok {
		c := *job
		return &c
	}
	for i := len(q.history) - 1; i >= 0; i-- {
		if q.history[i].ID == id {
			c := *q.history[i]
			return &c
		}
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	q.logger.Debug("queue worker started", slog.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case job := <-q.jobs:
			if job != nil {
				q.process(ctx, job)
			}
		}
	}
}

// process runs one job. Job fields are only mutated under the queue
// mutex; Active/History/Job hand out copies.
func (q *Queue) process(ctx context.Context, job *Job) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := time.Now()
	q.mu.Lock()
	delete(q.pending, job.ID)
	job.StartedAt = &started
	job.Status = JobStatusRunning
	job.cancel = cancel
	q.active[job.ID] = job
	q.mu.Unlock()
	q.recorder.SetQueueDepth(len(q.jobs))

	err := q.run(jobCtx, job)

	completed := time.Now()
	duration := completed.Sub(started)
	q.mu.Lock()
	job.CompletedAt = &completed
	job.Duration = duration
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = JobStatusCompleted
	}
	delete(q.active, job.ID)
	q.appendHistory(job)
	q.mu.Unlock()

	if err != nil {
		q.recorder.IncJobResult(string(job.Type), false)
		q.logger.Error("job failed",
			logfields.JobID(job.ID), slog.String("type", string(job.Type)),
			logfields.Tenant(job.Tenant), logfields.Error(err))
		return
	}
	q.recorder.IncJobResult(string(job.Type), true)
	q.logger.Info("job completed",
		logfields.JobID(job.ID), slog.String("type", string(job.Type)),
		logfields.DurationMS(float64(duration.Milliseconds())))
}

func (q *Queue) run(ctx context.Context, job *Job) error {
	t := q.publisher.registry.ByID(job.Tenant)
	if t == nil {
		return errors.TenantError("unknown tenant " + job.Tenant).Build()
	}
	switch job.Type {
	case JobTypePublish:
		_, err := q.publisher.PublishArticle(ctx, t, job.ArticleNumber, job.Version, job.PublishAt)
		return err
	case JobTypeUnpublish:
		_, err := q.publisher.UnpublishArticle(ctx, t, job.ArticleNumber)
		return err
	case JobTypeRebuild:
		_, err := q.publisher.RebuildSite(ctx, t)
		return err
	case JobTypeSweep:
		_, err := q.publisher.Sweep(ctx, t, time.Now().UTC())
		return err
	case JobTypeToc:
		return q.publisher.RegenerateTOC(ctx, t)
	default:
		return errors.ValidationError("unknown job type " + string(job.Type)).Build()
	}
}

func (q *Queue) appendHistory(job *Job) {
	q.history = append(q.history, job)
	if len(q.history) > q.historySize {
		copy(q.history, q.history[len(q.history)-q.historySize:])
		q.history = q.history[:q.historySize]
	}
}
