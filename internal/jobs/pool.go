package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"study-notes-platform/internal/logger"
	"study-notes-platform/utils"
)

// Handler runs one delivery of a task. final is true when no further
// delivery will follow a failure.
type Handler func(ctx context.Context, task Task, final bool) error

type PoolOptions struct {
	Workers  int
	MaxRetry int
	Backoff  time.Duration
}

// Pool runs tasks from a channel on a fixed number of workers. Each worker
// finishes a task, including its retries, before taking the next one.
type Pool struct {
	tasks   <-chan Task
	handler Handler
	opts    PoolOptions
	log     *slog.Logger
	wg      sync.WaitGroup
}

func NewPool(tasks <-chan Task, handler Handler, opts PoolOptions) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxRetry < 0 {
		opts.MaxRetry = 0
	}
	return &Pool{tasks: tasks, handler: handler, opts: opts, log: logger.With("worker_pool")}
}

// Start launches the workers. They exit when ctx is cancelled or the task
// channel is closed and drained.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info("starting worker pool", "workers", p.opts.Workers, "max_retry", p.opts.MaxRetry)
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.process(ctx, id, task)
		}
	}
}

func (p *Pool) process(ctx context.Context, worker int, task Task) {
	for attempt := 0; ; attempt++ {
		final := attempt >= p.opts.MaxRetry
		err := p.safeHandle(ctx, task, final)
		if err == nil {
			return
		}
		if final || utils.IsPermanent(err) || errors.Is(err, ErrJobTerminal) || ctx.Err() != nil {
			p.log.Warn("task abandoned", "worker", worker, "job_id", task.JobID, "attempt", attempt+1, "error", err)
			return
		}
		p.log.Info("retrying task", "worker", worker, "job_id", task.JobID, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.opts.Backoff * time.Duration(attempt+1)):
		}
	}
}

func (p *Pool) safeHandle(ctx context.Context, task Task, final bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("task panicked", "job_id", task.JobID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.handler(ctx, task, final)
}
