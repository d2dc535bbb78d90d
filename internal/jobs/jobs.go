// Package jobs runs periodic maintenance for pd serve: expiring approved
// requests past their date or use budget, and purging dead refresh and
// upload tokens.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named unit of periodic work.
type Job struct {
	Name     string
	Schedule string
	Run      func() error
}

// Scheduler runs jobs on their cron schedules in UTC.
type Scheduler struct {
	cron *cron.Cron
}

// Start schedules every job and starts the cron loop. Overlapping runs of the
// same job are skipped.
func Start(jobs ...Job) (*Scheduler, error) {
	logger := slogLogger{}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	for _, j := range jobs {
		j := j
		if _, err := c.AddFunc(j.Schedule, func() { runJob(j) }); err != nil {
			return nil, fmt.Errorf("scheduling %s (%q): %w", j.Name, j.Schedule, err)
		}
	}

	c.Start()
	slog.Info("jobs started", "count", len(jobs))
	return &Scheduler{cron: c}, nil
}

// Stop stops scheduling and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("jobs still running at shutdown")
	}
}

func runJob(j Job) {
	start := time.Now()
	if err := j.Run(); err != nil {
		slog.Error("job failed", "job", j.Name, "error", err)
		return
	}
	slog.Debug("job finished", "job", j.Name, "duration", time.Since(start).String())
}

// RequestExpirer is implemented by request.Service.
type RequestExpirer interface {
	ExpireDue() (int, error)
}

// ExpireRequests moves approved requests past their limit to EXPIRED.
func ExpireRequests(svc RequestExpirer, schedule string) Job {
	return Job{
		Name:     "request-expiry",
		Schedule: schedule,
		Run: func() error {
			n, err := svc.ExpireDue()
			if n > 0 {
				slog.Info("requests expired", "count", n)
			}
			return err
		},
	}
}

// TokenCleaner is implemented by auth.RefreshStore.
type TokenCleaner interface {
	Cleanup() (int64, error)
}

// CleanupRefreshTokens removes revoked and expired refresh tokens.
func CleanupRefreshTokens(store TokenCleaner, schedule string) Job {
	return Job{
		Name:     "refresh-token-cleanup",
		Schedule: schedule,
		Run: func() error {
			n, err := store.Cleanup()
			if n > 0 {
				slog.Info("refresh tokens removed", "count", n)
			}
			return err
		},
	}
}

// CleanupUploadTokens removes used and expired presigned upload tokens.
func CleanupUploadTokens(store TokenCleaner, schedule string) Job {
	return Job{
		Name:     "upload-token-cleanup",
		Schedule: schedule,
		Run: func() error {
			n, err := store.Cleanup()
			if n > 0 {
				slog.Info("upload tokens removed", "count", n)
			}
			return err
		},
	}
}

// slogLogger adapts cron's logger to slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
