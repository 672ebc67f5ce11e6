// Package jobs tracks ingestion job status and runs ingestion work.
//
// A job moves waiting -> active -> completed|failed exactly once. Progress
// only grows while the job is active. Terminal records stay readable for a
// retention window and are then dropped by the backing store.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"study-notes-platform/models"
)

// ErrJobTerminal is returned when a transition targets a finished job.
var ErrJobTerminal = errors.New("job already finished")

// Store persists job status records. Implementations must make every
// transition atomic with respect to concurrent callers.
type Store interface {
	Create(ctx context.Context, payload models.JobPayload) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	MarkActive(ctx context.Context, id string) error
	SetProgress(ctx context.Context, id string, progress int) error
	Complete(ctx context.Context, id string, result models.JobResult) error
	Fail(ctx context.Context, id string, reason string) error
}

func newJob(payload models.JobPayload) *models.Job {
	now := time.Now().UTC()
	return &models.Job{
		ID:        uuid.NewString(),
		State:     models.JobWaiting,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func clampProgress(p int) int {
	return min(max(p, 0), 100)
}
