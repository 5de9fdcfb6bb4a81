package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"marketalerts/internal/config"
	"marketalerts/internal/logger"
)

// Refresher runs one ingestion cycle, returning the snapshot count.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// jobTimeout bounds each scheduled invocation; a pass still runs its
// alert batch to completion within this window.
const jobTimeout = 5 * time.Minute

// Jobs owns the two recurring server-side jobs, price-refresh and
// alert-check, each on its own cron expression and timezone.
type Jobs struct {
	cron *cron.Cron
}

// StartJobs registers and starts both jobs. The caller stops them via
// Stop during shutdown.
func StartJobs(refresher Refresher, scheduler *Scheduler, refresh, check config.JobConfig) (*Jobs, error) {
	runner := cron.New()

	refreshSpec := withTimezone(refresh)
	if _, err := runner.AddFunc(refreshSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		updated, err := refresher.Refresh(ctx)
		if err != nil {
			logger.Log.Error("price-refresh job failed", zap.Error(err))
			return
		}
		logger.Log.Info("price-refresh job complete", zap.Int("updated", updated))
	}); err != nil {
		return nil, fmt.Errorf("registering price-refresh job %q: %w", refreshSpec, err)
	}

	checkSpec := withTimezone(check)
	if _, err := runner.AddFunc(checkSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		scheduler.RunPass(ctx, "scheduled")
	}); err != nil {
		return nil, fmt.Errorf("registering alert-check job %q: %w", checkSpec, err)
	}

	runner.Start()
	logger.Log.Info("scheduled jobs started",
		zap.String("price_refresh", refreshSpec),
		zap.String("alert_check", checkSpec),
	)
	return &Jobs{cron: runner}, nil
}

// Stop halts scheduling and waits for any running job to finish.
func (j *Jobs) Stop() {
	<-j.cron.Stop().Done()
	logger.Log.Info("scheduled jobs stopped")
}

func withTimezone(job config.JobConfig) string {
	spec := strings.TrimSpace(job.Cron)
	if job.Timezone != "" && !strings.HasPrefix(spec, "CRON_TZ=") && !strings.HasPrefix(spec, "TZ=") {
		spec = "CRON_TZ=" + job.Timezone + " " + spec
	}
	return spec
}
