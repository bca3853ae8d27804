package background

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Runner supervises fire-and-forget work. Spawn never blocks the caller and
// never returns the task's error to it; failures and panics are logged so
// they neither crash the process nor vanish silently. Concurrent execution
// is bounded by a semaphore.
type Runner struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
	log zerolog.Logger
}

func NewRunner(maxInFlight int64, log zerolog.Logger) *Runner {
	if maxInFlight <= 0 {
		maxInFlight = 16
	}
	return &Runner{sem: semaphore.NewWeighted(maxInFlight), log: log}
}

func (r *Runner) Spawn(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// acquire inside the goroutine so Spawn itself never waits
		if err := r.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer r.sem.Release(1)
		defer func() {
			if p := recover(); p != nil {
				r.log.Error().Str("task", name).Interface("panic", p).Msg("background task panicked")
			}
		}()
		if err := fn(context.Background()); err != nil {
			r.log.Warn().Str("task", name).Err(err).Msg("background task failed")
		}
	}()
}

// Wait blocks until every spawned task has finished. Used on shutdown and in
// tests.
func (r *Runner) Wait() { r.wg.Wait() }
