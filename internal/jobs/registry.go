// internal/jobs/registry.go
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"codeharvest/internal/crawler"
)

// ErrJobActive is returned when a crawl is requested while another one is
// still running. Crawls serialize because they share the metadata log.
var ErrJobActive = errors.New("a crawl job is already running")

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Job is one tracked crawl run.
type Job struct {
	ID              int64   `json:"id"`
	Query           string  `json:"query"`
	State           State   `json:"state"`
	StartedAt       string  `json:"started_at,omitempty"`
	FinishedAt      string  `json:"finished_at,omitempty"`
	FilesDownloaded int     `json:"files_downloaded"`
	SuitableFiles   int     `json:"suitable_files"`
	UnsuitableFiles int     `json:"unsuitable_files"`
	Error           *string `json:"error,omitempty"`
}

// Runner executes the actual crawl for an enqueued job.
type Runner func(ctx context.Context) (crawler.Result, error)

// Registry tracks crawl jobs for the API. At most one job runs at a time;
// finished jobs stay queryable for the life of the process.
type Registry struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID int64
	jobs   []*Job
	active bool
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger, nextID: 1}
}

// Enqueue starts run in the background and returns the tracking job, still
// pending until the background goroutine picks it up. It fails with
// ErrJobActive while a previous job is still running.
func (r *Registry) Enqueue(ctx context.Context, query string, run Runner) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return Job{}, ErrJobActive
	}

	job := &Job{
		ID:    r.nextID,
		Query: query,
		State: StatePending,
	}
	r.nextID++
	r.jobs = append(r.jobs, job)
	r.active = true

	go r.execute(ctx, job, run)
	return *job, nil
}

func (r *Registry) execute(ctx context.Context, job *Job, run Runner) {
	r.mu.Lock()
	job.State = StateRunning
	job.StartedAt = time.Now().UTC().Format(time.RFC3339)
	r.mu.Unlock()

	res, err := run(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	job.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	job.FilesDownloaded = res.FilesDownloaded
	job.SuitableFiles = res.SuitableFiles
	job.UnsuitableFiles = res.UnsuitableFiles
	if err != nil {
		msg := err.Error()
		job.Error = &msg
		job.State = StateFailed
		r.logger.Error("crawl job failed", "job_id", job.ID, "error", err)
		return
	}
	job.State = StateCompleted
	r.logger.Info("crawl job finished", "job_id", job.ID,
		"downloaded", res.FilesDownloaded, "suitable", res.SuitableFiles)
}

// Get returns a job by id.
func (r *Registry) Get(id int64) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.ID == id {
			return *job, true
		}
	}
	return Job{}, false
}

// List returns all jobs, most recent first.
func (r *Registry) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.jobs))
	for i := len(r.jobs) - 1; i >= 0; i-- {
		out = append(out, *r.jobs[i])
	}
	return out
}
