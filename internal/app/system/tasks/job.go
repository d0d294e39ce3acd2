// internal/app/system/tasks/job.go
package tasks

import (
	"context"
	"time"
)

// Job is a named unit of periodic background work.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means 30 seconds.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}
