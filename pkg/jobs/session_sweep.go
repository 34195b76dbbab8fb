package jobs

import (
	"context"
	"log/slog"
	"time"
)

// IdleSweeper drops sessions unused for longer than ttl and reports how many it dropped.
type IdleSweeper interface {
	SweepIdle(ttl time.Duration) int
}

// SessionSweepJob releases workspaces of users who stopped making requests.
type SessionSweepJob struct {
	sessions IdleSweeper
	ttl      time.Duration
	logger   *slog.Logger
}

// NewSessionSweepJob creates a new session sweep job.
func NewSessionSweepJob(sessions IdleSweeper, ttl time.Duration, logger *slog.Logger) *SessionSweepJob {
	return &SessionSweepJob{
		sessions: sessions,
		ttl:      ttl,
		logger:   logger,
	}
}

// Name returns the job name.
func (j *SessionSweepJob) Name() string {
	return "session_sweep"
}

// Execute drops idle sessions.
func (j *SessionSweepJob) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if dropped := j.sessions.SweepIdle(j.ttl); dropped > 0 {
		j.logger.Info("dropped idle sessions", "count", dropped, "ttl", j.ttl)
	}
	return nil
}
