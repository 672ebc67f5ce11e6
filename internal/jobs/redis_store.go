package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"study-notes-platform/models"
	"study-notes-platform/utils"
)

const (
	jobKeyPrefix = "job:"
	// Jobs that never finish still expire eventually.
	pendingTTL = 7 * 24 * time.Hour
)

// Script results: -1 missing, 0 rejected, 1 applied.
var (
	activateScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then return -1 end
if state == 'completed' or state == 'failed' then return 0 end
redis.call('HSET', KEYS[1], 'state', 'active', 'updated_at', ARGV[1])
return 1
`)

	progressScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then return -1 end
if state ~= 'active' then return 1 end
local cur = tonumber(redis.call('HGET', KEYS[1], 'progress') or '0')
if tonumber(ARGV[1]) > cur then
  redis.call('HSET', KEYS[1], 'progress', ARGV[1], 'updated_at', ARGV[2])
end
return 1
`)

	finishScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then return -1 end
if state == 'completed' or state == 'failed' then return 0 end
redis.call('HSET', KEYS[1], 'state', ARGV[1], 'updated_at', ARGV[2], ARGV[4], ARGV[5])
if ARGV[6] ~= '' then redis.call('HSET', KEYS[1], 'progress', ARGV[6]) end
if tonumber(ARGV[3]) > 0 then redis.call('EXPIRE', KEYS[1], ARGV[3]) end
return 1
`)
)

// RedisStore keeps each job in a hash at job:<id>. Transitions run as Lua
// scripts so concurrent workers and pollers never observe a reopened job.
type RedisStore struct {
	rdb       redis.UniversalClient
	retention time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, retention time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, retention: retention}
}

func jobKey(id string) string { return jobKeyPrefix + id }

func (s *RedisStore) Create(ctx context.Context, payload models.JobPayload) (*models.Job, error) {
	job := newJob(payload)
	raw, err := json.Marshal(job.Payload)
	if err != nil {
		return nil, err
	}
	key := jobKey(job.ID)
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"state", string(job.State),
			"progress", 0,
			"payload", raw,
			"created_at", job.CreatedAt.Format(time.RFC3339Nano),
			"updated_at", job.UpdatedAt.Format(time.RFC3339Nano),
		)
		p.Expire(ctx, key, pendingTTL)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Job, error) {
	fields, err := s.rdb.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, utils.ErrJobNotFound
	}

	job := &models.Job{ID: id, State: models.JobState(fields["state"]), FailureReason: fields["failure_reason"]}
	job.Progress, _ = strconv.Atoi(fields["progress"])
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err := json.Unmarshal([]byte(fields["payload"]), &job.Payload); err != nil {
		return nil, fmt.Errorf("decode job %s payload: %w", id, err)
	}
	if raw, ok := fields["result"]; ok && raw != "" {
		var result models.JobResult
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("decode job %s result: %w", id, err)
		}
		job.Result = &result
	}
	return job, nil
}

func (s *RedisStore) MarkActive(ctx context.Context, id string) error {
	return s.run(ctx, activateScript, id, now())
}

func (s *RedisStore) SetProgress(ctx context.Context, id string, progress int) error {
	return s.run(ctx, progressScript, id, clampProgress(progress), now())
}

func (s *RedisStore) Complete(ctx context.Context, id string, result models.JobResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.run(ctx, finishScript, id, string(models.JobCompleted), now(), s.retentionSeconds(), "result", raw, 100)
}

func (s *RedisStore) Fail(ctx context.Context, id string, reason string) error {
	return s.run(ctx, finishScript, id, string(models.JobFailed), now(), s.retentionSeconds(), "failure_reason", reason, "")
}

func (s *RedisStore) retentionSeconds() int64 {
	return int64(s.retention / time.Second)
}

func (s *RedisStore) run(ctx context.Context, script *redis.Script, id string, args ...any) error {
	code, err := script.Run(ctx, s.rdb, []string{jobKey(id)}, args...).Int()
	if err != nil {
		return fmt.Errorf("job %s transition: %w", id, err)
	}
	switch code {
	case -1:
		return utils.ErrJobNotFound
	case 0:
		return ErrJobTerminal
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
