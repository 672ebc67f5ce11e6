package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"study-notes-platform/internal/config"
	"study-notes-platform/internal/jobs"
	"study-notes-platform/internal/logger"
	"study-notes-platform/utils"
)

const (
	TaskIngestDocument = "document:ingest"

	QueueIngest = "ingest"
)

// NewIngestTask wraps a job as an asynq task. The job id doubles as the
// asynq task id so a job cannot be enqueued twice.
func NewIngestTask(task jobs.Task, maxRetry int, retention time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.TaskID(task.JobID),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(15*time.Minute),
		asynq.Queue(QueueIngest),
		asynq.Retention(retention),
	), nil
}

// AsynqPublisher enqueues ingestion tasks into Redis.
type AsynqPublisher struct {
	client    *asynq.Client
	maxRetry  int
	retention time.Duration
}

func NewAsynqPublisher(client *asynq.Client, cfg *config.Config) *AsynqPublisher {
	return &AsynqPublisher{client: client, maxRetry: cfg.JobMaxRetry, retention: cfg.JobRetention}
}

func (p *AsynqPublisher) Publish(ctx context.Context, task jobs.Task) error {
	t, err := NewIngestTask(task, p.maxRetry, p.retention)
	if err != nil {
		return err
	}
	info, err := p.client.EnqueueContext(ctx, t)
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", task.JobID, err)
	}
	logger.Debug("task enqueued", "job_id", task.JobID, "queue", info.Queue)
	return nil
}

// TaskProcessor adapts a jobs.Handler to asynq deliveries.
type TaskProcessor struct {
	handler jobs.Handler
	log     *slog.Logger
}

func NewTaskProcessor(handler jobs.Handler) *TaskProcessor {
	return &TaskProcessor{handler: handler, log: logger.With("asynq")}
}

func (p *TaskProcessor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	var task jobs.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	final := retried >= maxRetry

	err := p.handler(ctx, task, final)
	if err == nil {
		return nil
	}
	if utils.IsPermanent(err) || errors.Is(err, jobs.ErrJobTerminal) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// NewServer builds the asynq server that consumes ingestion tasks.
func NewServer(cfg *config.Config) (*asynq.Server, error) {
	redisOpt, err := RedisConnOpt(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.With("asynq")

	return asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				QueueIngest: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				id, _ := asynq.GetTaskID(ctx)
				log.Error("task failed", "type", task.Type(), "job_id", id, "error", err)
			}),
		},
	), nil
}

// NewMux registers the ingestion handler.
func NewMux(p *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskIngestDocument, p.ProcessIngest)
	return mux
}

// RedisConnOpt converts REDIS_URL (URI or host:port) into asynq options.
func RedisConnOpt(cfg *config.Config) (asynq.RedisConnOpt, error) {
	opts, err := config.RedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}
