package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

const JobTypeProjectAnalysis = "project_analysis"

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Job tracks progress of an asynchronous analysis run. Callers poll it.
type Job struct {
	ID             uuid.UUID  `json:"id"`
	JobType        string     `json:"job_type"`
	ProjectID      string     `json:"project_id"`
	Model          string     `json:"model,omitempty"`
	Status         JobStatus  `json:"status"`
	TotalStories   int        `json:"total_stories"`
	ProcessedCount int        `json:"processed_count"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func NewJob(projectID, model string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New(),
		JobType:   JobTypeProjectAnalysis,
		ProjectID: projectID,
		Model:     model,
		Status:    JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start moves a pending job to processing.
func (j *Job) Start(total int) error {
	if j.Status != JobPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobProcessing)
	}
	j.Status = JobProcessing
	j.TotalStories = total
	j.touch()
	return nil
}

// Advance records one finished transcript.
func (j *Job) Advance() error {
	if j.Status != JobProcessing {
		return fmt.Errorf("%w: advance while %s", ErrInvalidTransition, j.Status)
	}
	if j.ProcessedCount < j.TotalStories {
		j.ProcessedCount++
	}
	j.touch()
	return nil
}

func (j *Job) Complete() error {
	return j.finish(JobCompleted, "")
}

func (j *Job) Fail(reason string) error {
	return j.finish(JobFailed, reason)
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

func (j *Job) finish(to JobStatus, reason string) error {
	if j.Done() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	j.Error = reason
	j.touch()
	at := j.UpdatedAt
	j.CompletedAt = &at
	return nil
}

func (j *Job) touch() {
	j.UpdatedAt = time.Now().UTC()
}

// JobStore persists job snapshots.
type JobStore interface {
	SaveJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, id uuid.UUID) (Job, error)
}

// MemoryJobStore keeps jobs in process. It is used when no database is
// configured and in tests.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[uuid.UUID]Job)}
}

func (m *MemoryJobStore) SaveJob(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *MemoryJobStore) GetJob(_ context.Context, id uuid.UUID) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}
