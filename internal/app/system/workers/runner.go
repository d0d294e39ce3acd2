// internal/app/system/workers/runner.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/referralhub/internal/app/system/tasks"
	"go.uber.org/zap"
)

const defaultJobTimeout = 30 * time.Second

// Runner runs each job on its own ticker until stopped.
type Runner struct {
	jobs   []tasks.Job
	log    *zap.Logger
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewRunner creates a runner for jobs. Jobs with a non-positive interval
// or nil Run are skipped.
func NewRunner(logger *zap.Logger, jobs ...tasks.Job) *Runner {
	return &Runner{
		jobs:   jobs,
		log:    logger,
		stopCh: make(chan struct{}),
	}
}

// Start launches one goroutine per job.
func (w *Runner) Start() {
	for _, job := range w.jobs {
		if job.Interval <= 0 || job.Run == nil {
			w.log.Warn("skipping invalid job", zap.String("job", job.Name))
			continue
		}
		w.wg.Add(1)
		go w.loop(job)
		w.log.Info("background job started",
			zap.String("job", job.Name),
			zap.Duration("interval", job.Interval))
	}
}

// Stop signals every job to stop and waits for in-flight runs to finish.
// It is safe to call more than once.
func (w *Runner) Stop() {
	w.once.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("background jobs stopped")
}

func (w *Runner) loop(job tasks.Job) {
	defer w.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.runOnce(job)
		}
	}
}

func (w *Runner) runOnce(job tasks.Job) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			w.log.Error("background job panicked", zap.String("job", job.Name), zap.Any("panic", rec))
		}
	}()

	if err := job.Run(ctx); err != nil {
		w.log.Error("background job failed", zap.String("job", job.Name), zap.Error(err))
	}
}
