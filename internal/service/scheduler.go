package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// MatchSyncer runs one full sync
type MatchSyncer interface {
	SyncMatches(ctx context.Context) SyncMatchesResult
}

// Scheduler in-process cadence for full syncs; a tick never overlaps the previous one
type Scheduler struct {
	sched  gocron.Scheduler
	logger *logrus.Logger
}

// NewScheduler registers the sync job, the first run starts immediately on Start
func NewScheduler(syncer MatchSyncer, interval time.Duration, logger *logrus.Logger) (*Scheduler, error) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			res := syncer.SyncMatches(ctx)
			logger.WithFields(logrus.Fields{
				"run_id": res.RunID,
				"errors": res.ErrorCount,
			}).Debug("scheduled sync tick done")
		}),
		gocron.WithName("sync-matches"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("register sync job: %w", err)
	}

	logger.WithField("interval", interval.String()).Info("sync scheduler configured")
	return &Scheduler{sched: sched, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

// Shutdown waits for a running tick to finish
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
