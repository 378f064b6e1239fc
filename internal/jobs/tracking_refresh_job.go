package jobs

import (
	"context"
	"time"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/features/shipments/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher pulls tracking for every shipment that has not reached a final status.
type Refresher interface {
	RefreshActiveShipments(ctx context.Context) (*service.RefreshSummary, error)
}

// TrackingRefreshJob runs the tracking refresh on a cron schedule. A run that
// is still going when the next tick fires makes that tick a no-op.
type TrackingRefreshJob struct {
	refresher Refresher
	schedule  string
	timeout   time.Duration
	cron      *cron.Cron
	log       *zap.Logger
}

// NewTrackingRefreshJob creates the job. schedule uses the six-field cron
// format with seconds; timeout bounds a single run.
func NewTrackingRefreshJob(refresher Refresher, schedule string, timeout time.Duration) *TrackingRefreshJob {
	log := logger.Component("tracking_refresh_job")
	return &TrackingRefreshJob{
		refresher: refresher,
		schedule:  schedule,
		timeout:   timeout,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log: log,
	}
}

// Start schedules the job. An invalid schedule is returned as an error.
func (j *TrackingRefreshJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.Run); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info("Tracking refresh job started", zap.String("schedule", j.schedule))
	return nil
}

// Run performs one refresh.
func (j *TrackingRefreshJob) Run() {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	started := time.Now()
	summary, err := j.refresher.RefreshActiveShipments(ctx)
	if err != nil {
		j.log.Error("Tracking refresh failed", zap.Error(err))
		return
	}
	j.log.Info("Tracking refresh finished",
		zap.Int("total", summary.Total),
		zap.Int("status_changed", summary.StatusChanged),
		zap.Int("events_added", summary.EventsAdded),
		zap.Int("failed", summary.Failed),
		zap.Duration("took", time.Since(started)),
	)
}

// Stop waits for a running refresh to finish.
func (j *TrackingRefreshJob) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("Tracking refresh job stopped")
}
