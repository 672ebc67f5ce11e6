package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-notes-platform/internal/config"
	"study-notes-platform/internal/jobs"
	"study-notes-platform/models"
	"study-notes-platform/utils"
)

func TestNewIngestTask(t *testing.T) {
	task := jobs.Task{JobID: "job-1", Payload: models.JobPayload{DocumentID: "doc-1", FileName: "a.pdf"}}
	at, err := NewIngestTask(task, 2, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, TaskIngestDocument, at.Type())
	assert.Contains(t, string(at.Payload()), `"jobId":"job-1"`)
}

func TestProcessIngestDecodesAndDelegates(t *testing.T) {
	var got jobs.Task
	var gotFinal bool
	p := NewTaskProcessor(func(_ context.Context, task jobs.Task, final bool) error {
		got, gotFinal = task, final
		return nil
	})

	at, err := NewIngestTask(jobs.Task{JobID: "job-2", Payload: models.JobPayload{DocumentID: "d"}}, 0, time.Minute)
	require.NoError(t, err)
	require.NoError(t, p.ProcessIngest(context.Background(), at))
	assert.Equal(t, "job-2", got.JobID)
	assert.True(t, gotFinal, "no retry metadata means this is the last delivery")
}

func TestProcessIngestSkipsRetryWhenPointless(t *testing.T) {
	bad := asynq.NewTask(TaskIngestDocument, []byte("{not json"))
	p := NewTaskProcessor(func(context.Context, jobs.Task, bool) error { return nil })
	assert.ErrorIs(t, p.ProcessIngest(context.Background(), bad), asynq.SkipRetry)

	at, _ := NewIngestTask(jobs.Task{JobID: "j"}, 1, time.Minute)
	cases := []struct {
		name string
		err  error
		skip bool
	}{
		{"unsupported", utils.ErrUnsupportedFileType, true},
		{"terminal", jobs.ErrJobTerminal, true},
		{"transient", errors.New("embedding quota"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewTaskProcessor(func(context.Context, jobs.Task, bool) error { return tc.err })
			err := p.ProcessIngest(context.Background(), at)
			require.Error(t, err)
			assert.Equal(t, tc.skip, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestRedisConnOpt(t *testing.T) {
	opt, err := RedisConnOpt(&config.Config{RedisURL: "redis://:secret@cache:6380/2"})
	require.NoError(t, err)
	c := opt.(asynq.RedisClientOpt)
	assert.Equal(t, "cache:6380", c.Addr)
	assert.Equal(t, "secret", c.Password)
	assert.Equal(t, 2, c.DB)

	opt, err = RedisConnOpt(&config.Config{RedisURL: "localhost:6379", RedisDB: 1})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opt.(asynq.RedisClientOpt).Addr)
	assert.Equal(t, 1, opt.(asynq.RedisClientOpt).DB)
}
