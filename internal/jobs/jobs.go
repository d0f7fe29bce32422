// Package jobs tracks asynchronous multi-stage operations: creation,
// progress updates, terminal transitions, and garbage collection of
// finished records. Records live only for the process lifetime.
package jobs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calder-ai/ragserver/internal/metrics"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Type identifies the kind of work a job performs.
type Type string

const (
	TypeFileIngestion   Type = "file_ingestion"
	TypeURLScraping     Type = "url_scraping"
	TypeWebsiteCrawling Type = "website_crawling"
	TypeRepoIngestion   Type = "repo_ingestion"
)

// job is the internal mutable record. Only the Manager touches it, always
// under the table lock; everyone else sees copied-out Snapshots.
type job struct {
	id          string
	typ         Type
	status      Status
	progress    float64
	message     string
	createdAt   time.Time
	completedAt *time.Time
	result      map[string]any
	err         string
}

// Snapshot is a read-only, JSON-safe copy of a job's state.
type Snapshot struct {
	ID          string         `json:"job_id"`
	Type        Type           `json:"job_type"`
	Status      Status         `json:"status"`
	Progress    float64        `json:"progress"`
	Message     string         `json:"message"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at"`
	Result      map[string]any `json:"result"`
	Error       string         `json:"error,omitempty"`
}

// Terminal reports whether the snapshot is in a final state.
func (s Snapshot) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Manager owns the job table. All operations are total: an unknown id is a
// no-op or a not-found result, never a raised error.
type Manager struct {
	mu   sync.Mutex
	jobs map[string]*job
	log  *slog.Logger
}

// NewManager creates an empty job manager.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		jobs: make(map[string]*job),
		log:  log,
	}
}

// Create allocates a fresh job in the pending state with zero progress.
func (m *Manager) Create(typ Type) string {
	id := uuid.New().String()

	m.mu.Lock()
	m.jobs[id] = &job{
		id:        id,
		typ:       typ,
		status:    StatusPending,
		message:   "Job created",
		createdAt: time.Now().UTC(),
	}
	m.mu.Unlock()

	m.log.Info("created job", "job_id", id, "job_type", typ)
	return id
}

// Start transitions a pending job to processing. Unknown ids and jobs
// already past pending are left untouched.
func (m *Manager) Start(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || j.status != StatusPending {
		return
	}
	j.status = StatusProcessing
	j.message = "Job started"
	m.log.Info("started job", "job_id", id)
}

// UpdateProgress records progress for a processing job. The fraction is
// clamped to [0,1]. Updates addressed to a job in any other state are
// silently ignored so stale reports cannot corrupt a final record.
func (m *Manager) UpdateProgress(id string, progress float64, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || j.status != StatusProcessing {
		return
	}
	j.progress = clamp(progress)
	if message != "" {
		j.message = message
	}
	m.log.Debug("job progress", "job_id", id, "progress", j.progress, "message", j.message)
}

// Complete commits a successful terminal state, setting progress to 1.0.
// Allowed from any non-terminal state; once a job is terminal the first
// commit wins and later calls are no-ops.
func (m *Manager) Complete(id string, result map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || terminal(j.status) {
		return
	}
	now := time.Now().UTC()
	j.status = StatusCompleted
	j.progress = 1.0
	j.completedAt = &now
	j.result = result
	j.message = "Job completed successfully"
	metrics.JobsFinished.WithLabelValues(string(j.typ), string(StatusCompleted)).Inc()
	m.log.Info("job completed", "job_id", id)
}

// Fail commits a failed terminal state with the given error. Allowed from
// any non-terminal state, including pending, which covers validation
// failures before processing starts.
func (m *Manager) Fail(id string, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || terminal(j.status) {
		return
	}
	now := time.Now().UTC()
	j.status = StatusFailed
	j.completedAt = &now
	j.err = errMsg
	j.message = "Job failed: " + errMsg
	metrics.JobsFinished.WithLabelValues(string(j.typ), string(StatusFailed)).Inc()
	m.log.Error("job failed", "job_id", id, "error", errMsg)
}

// Get returns a snapshot of the job, or false if the id is unknown.
func (m *Manager) Get(id string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return snapshot(j), true
}

// List returns up to limit snapshots ordered newest first.
func (m *Manager) List(limit int) []Snapshot {
	m.mu.Lock()
	all := make([]Snapshot, 0, len(m.jobs))
	for _, j := range m.jobs {
		all = append(all, snapshot(j))
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, k int) bool {
		return all[i].CreatedAt.After(all[k].CreatedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Cleanup removes completed and failed jobs whose completion timestamp is
// older than maxAge and returns the number removed. Pending and processing
// jobs are never touched.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	removed := 0
	for id, j := range m.jobs {
		if !terminal(j.status) || j.completedAt == nil {
			continue
		}
		if now.Sub(*j.completedAt) >= maxAge {
			delete(m.jobs, id)
			removed++
			m.log.Info("cleaned up job", "job_id", id)
		}
	}
	return removed
}

// StartCleanup runs Cleanup on a ticker until ctx is cancelled.
func (m *Manager) StartCleanup(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup(maxAge)
			}
		}
	}()
}

func snapshot(j *job) Snapshot {
	var completed *time.Time
	if j.completedAt != nil {
		t := *j.completedAt
		completed = &t
	}
	var result map[string]any
	if j.result != nil {
		result = make(map[string]any, len(j.result))
		for k, v := range j.result {
			result[k] = v
		}
	}
	return Snapshot{
		ID:          j.id,
		Type:        j.typ,
		Status:      j.status,
		Progress:    j.progress,
		Message:     j.message,
		CreatedAt:   j.createdAt,
		CompletedAt: completed,
		Result:      result,
		Error:       j.err,
	}
}

func terminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
