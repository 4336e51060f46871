// Package pipeline runs a task list across a bounded worker pool and
// collects the ids of the tasks that failed, so a retry manifest can be
// built instead of rerunning the whole batch.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hydrosight/waterbodies/internal/metrics"
	"github.com/hydrosight/waterbodies/internal/tasks"
)

// TaskFunc processes one task.
type TaskFunc func(ctx context.Context, t tasks.Task) error

// Run fans the tasks out over workers goroutines and returns the ids of the
// tasks whose TaskFunc returned an error, sorted. A cancelled context stops
// feeding new tasks; in-flight tasks finish or fail on their own.
func Run(ctx context.Context, log zerolog.Logger, met *metrics.Provider, stage string, ts []tasks.Task, workers int, fn TaskFunc) []string {
	if workers <= 0 {
		workers = 1
	}

	work := make(chan tasks.Task)
	var mu sync.Mutex
	var failed []string
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range work {
				start := time.Now()
				err := fn(ctx, t)
				met.TaskDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
				if err != nil {
					met.TasksFailed.WithLabelValues(stage).Inc()
					log.Error().Err(err).Str("stage", stage).Str("task", t.ID()).Msg("task failed")
					mu.Lock()
					failed = append(failed, t.ID())
					mu.Unlock()
					continue
				}
				met.TasksProcessed.WithLabelValues(stage).Inc()
			}
		}()
	}

feed:
	for _, t := range ts {
		if ctx.Err() != nil {
			log.Warn().Str("stage", stage).Msg("run cancelled, draining workers")
			break
		}
		select {
		case work <- t:
		case <-ctx.Done():
			log.Warn().Str("stage", stage).Msg("run cancelled, draining workers")
			break feed
		}
	}
	close(work)
	wg.Wait()

	sort.Strings(failed)
	return failed
}
