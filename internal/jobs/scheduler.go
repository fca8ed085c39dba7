// Package jobs runs the audit on a cron schedule for deployments that want
// the bot resident instead of driven by an external crontab. With an empty
// schedule the bot runs once and exits; see cmd/bot.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"toolforge.org/rights-audit/internal/common"
)

// RunFunc executes one full audit pass.
type RunFunc func(ctx context.Context) error

// Scheduler triggers runs on a cron expression.
type Scheduler struct {
	cron *cron.Cron
	spec string
	run  RunFunc
}

// NewScheduler creates a scheduler pinned to UTC. All audit horizons are
// UTC math, so the schedule is too.
func NewScheduler(spec string, run RunFunc) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		spec: spec,
		run:  run,
	}
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		log.Info("[CRON] Starting scheduled audit run")
		err := s.run(ctx)
		switch {
		case errors.Is(err, common.ErrDisabled):
			log.Info("[CRON] Run skipped, bot is disabled")
		case err != nil:
			log.WithError(err).Error("[CRON] Audit run failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.WithField("schedule", s.spec).Info("Scheduler started (UTC)")
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Scheduler stopped")
}
