package jobs

import (
	"context"
	"sync"
	"time"

	"study-notes-platform/models"
	"study-notes-platform/utils"
)

// MemoryStore keeps jobs in process memory. Terminal jobs older than the
// retention window are removed by Sweep.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*models.Job
	retention time.Duration
	now       func() time.Time
}

func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*models.Job),
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(_ context.Context, payload models.JobPayload) (*models.Job, error) {
	job := newJob(payload)
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok || s.expired(job) {
		return nil, utils.ErrJobNotFound
	}
	cp := *job
	if job.Result != nil {
		r := *job.Result
		cp.Result = &r
	}
	return &cp, nil
}

func (s *MemoryStore) MarkActive(_ context.Context, id string) error {
	return s.update(id, func(job *models.Job) error {
		if job.State.Terminal() {
			return ErrJobTerminal
		}
		job.State = models.JobActive
		return nil
	})
}

func (s *MemoryStore) SetProgress(_ context.Context, id string, progress int) error {
	return s.update(id, func(job *models.Job) error {
		if job.State != models.JobActive {
			return nil
		}
		job.Progress = max(job.Progress, clampProgress(progress))
		return nil
	})
}

func (s *MemoryStore) Complete(_ context.Context, id string, result models.JobResult) error {
	return s.update(id, func(job *models.Job) error {
		if job.State.Terminal() {
			return ErrJobTerminal
		}
		job.State = models.JobCompleted
		job.Progress = 100
		job.Result = &result
		return nil
	})
}

func (s *MemoryStore) Fail(_ context.Context, id string, reason string) error {
	return s.update(id, func(job *models.Job) error {
		if job.State.Terminal() {
			return ErrJobTerminal
		}
		job.State = models.JobFailed
		job.FailureReason = reason
		return nil
	})
}

// Sweep drops expired terminal jobs and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if s.expired(job) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) expired(job *models.Job) bool {
	return s.retention > 0 && job.State.Terminal() && s.now().Sub(job.UpdatedAt) > s.retention
}

func (s *MemoryStore) update(id string, fn func(*models.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || s.expired(job) {
		return utils.ErrJobNotFound
	}
	if err := fn(job); err != nil {
		return err
	}
	job.UpdatedAt = s.now()
	return nil
}
