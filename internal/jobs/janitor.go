package jobs

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"study-notes-platform/internal/logger"
)

// Janitor runs periodic cleanup tasks such as retention sweeps.
type Janitor struct {
	scheduler *gocron.Scheduler
	log       *slog.Logger
}

func NewJanitor() *Janitor {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Janitor{scheduler: s, log: logger.With("janitor")}
}

// Every registers sweep to run at the given interval under a unique tag.
// sweep returns how many items it removed.
func (j *Janitor) Every(tag string, interval time.Duration, sweep func() (int, error)) error {
	_, err := j.scheduler.Every(interval).Tag(tag).Do(func() {
		removed, err := sweep()
		if err != nil {
			j.log.Error("sweep failed", "task", tag, "error", err)
			return
		}
		if removed > 0 {
			j.log.Info("sweep finished", "task", tag, "removed", removed)
		}
	})
	return err
}

// Tags lists the registered sweeps.
func (j *Janitor) Tags() []string {
	var tags []string
	for _, job := range j.scheduler.Jobs() {
		tags = append(tags, job.Tags()...)
	}
	return tags
}

func (j *Janitor) Start() {
	j.scheduler.StartAsync()
}

func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

// MemorySweep adapts MemoryStore.Sweep to Janitor.Every.
func MemorySweep(s *MemoryStore) func() (int, error) {
	return func() (int, error) { return s.Sweep(), nil }
}
