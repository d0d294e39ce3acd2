// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/referralhub/internal/app/store/oauthstate"
	"github.com/dalemusser/referralhub/internal/app/store/sessions"
	"github.com/dalemusser/referralhub/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// InactiveSessionCleanupJob closes sessions inactive for the given threshold.
// Closed sessions stop authenticating but are kept for audit.
func InactiveSessionCleanupJob(sessStore *sessions.Store, logger *zap.Logger, threshold time.Duration) Job {
	return Job{
		Name:     "inactive-session-cleanup",
		Interval: 1 * time.Minute,
		Run: func(ctx context.Context) error {
			count, err := sessStore.CloseInactive(ctx, threshold)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Info("closed inactive sessions",
					zap.Int64("count", count),
					zap.Duration("threshold", threshold))
			}
			return nil
		},
	}
}

// OAuthStateCleanupJob removes expired OAuth state tokens.
// This is a backup for when MongoDB's TTL index cleanup is delayed.
func OAuthStateCleanupJob(stateStore *oauthstate.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "oauth-state-cleanup",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := stateStore.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired OAuth states", zap.Int64("count", count))
			}
			return nil
		},
	}
}

// Sweeper is anything holding expiring in-memory entries.
type Sweeper interface {
	Sweep() int
}

var _ Sweeper = (*ratelimit.Limiter)(nil)

// RateLimitSweepJob drops idle rate-limit buckets so memory stays bounded.
func RateLimitSweepJob(logger *zap.Logger, sweepers ...Sweeper) Job {
	return Job{
		Name:     "rate-limit-sweep",
		Interval: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			removed := 0
			for _, s := range sweepers {
				removed += s.Sweep()
			}
			if removed > 0 {
				logger.Debug("swept rate-limit buckets", zap.Int("removed", removed))
			}
			return nil
		},
	}
}
