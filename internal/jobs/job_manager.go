// Package jobs runs scheduled background work on robfig/cron.
package jobs

import (
	"fmt"
	"time"
)

// JobManager starts and stops the scheduled jobs together.
type JobManager struct {
	trackingRefresh *TrackingRefreshJob
}

// NewJobManager creates the manager. An empty schedule disables the tracking refresh.
func NewJobManager(refresher Refresher, trackingSchedule string, runTimeout time.Duration) *JobManager {
	jm := &JobManager{}
	if trackingSchedule != "" {
		jm.trackingRefresh = NewTrackingRefreshJob(refresher, trackingSchedule, runTimeout)
	}
	return jm
}

// StartAll starts every enabled job.
func (jm *JobManager) StartAll() error {
	if jm.trackingRefresh != nil {
		if err := jm.trackingRefresh.Start(); err != nil {
			return fmt.Errorf("failed to start tracking refresh job: %w", err)
		}
	}
	return nil
}

// StopAll stops every enabled job and waits for running work.
func (jm *JobManager) StopAll() {
	if jm.trackingRefresh != nil {
		jm.trackingRefresh.Stop()
	}
}
