package reports

import (
	"context"
	"fmt"
	"sync"

	"github.com/umarkhanovv/roadwatch/internal/logging"
)

// TaskRunner schedules fire-and-forget background work. A durable queue can
// replace GoroutineRunner without changing Service.
type TaskRunner interface {
	Go(name string, fn func(ctx context.Context))
}

// GoroutineRunner runs each task on its own goroutine with a
// non-cancellable context.
type GoroutineRunner struct {
	wg     sync.WaitGroup
	logger *logging.Logger
}

// NewGoroutineRunner creates a runner.
func NewGoroutineRunner(logger *logging.Logger) *GoroutineRunner {
	return &GoroutineRunner{logger: logger}
}

// Go starts fn in the background.
func (r *GoroutineRunner) Go(name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil && r.logger != nil {
				r.logger.Error("Background task panicked", logging.WithFields(map[string]interface{}{
					"task":  name,
					"panic": fmt.Sprint(rec),
				}))
			}
		}()
		fn(context.Background())
	}()
}

// Wait blocks until every started task has returned.
func (r *GoroutineRunner) Wait() {
	r.wg.Wait()
}

var _ TaskRunner = (*GoroutineRunner)(nil)
