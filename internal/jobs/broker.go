package jobs

import (
	"context"
	"errors"
	"sync"

	"study-notes-platform/models"
)

// ErrBrokerClosed is returned by Publish after Close.
var ErrBrokerClosed = errors.New("broker closed")

// Task is one unit of ingestion work as delivered to a worker.
type Task struct {
	JobID   string            `json:"jobId"`
	Payload models.JobPayload `json:"payload"`
}

// Publisher hands a task to a queue. It returns once the task is accepted.
type Publisher interface {
	Publish(ctx context.Context, task Task) error
}

// MemoryBroker is an in-process bounded queue. Tasks are lost on restart.
type MemoryBroker struct {
	tasks chan Task

	mu     sync.RWMutex
	closed bool
}

func NewMemoryBroker(capacity int) *MemoryBroker {
	return &MemoryBroker{tasks: make(chan Task, max(capacity, 1))}
}

// Publish blocks while the queue is full, until ctx is done.
func (b *MemoryBroker) Publish(ctx context.Context, task Task) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}
	select {
	case b.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tasks is the receive side consumed by a Pool.
func (b *MemoryBroker) Tasks() <-chan Task {
	return b.tasks
}

// Close stops accepting tasks. Queued tasks are still delivered.
func (b *MemoryBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.tasks)
	}
}
