package jobs

import (
	"fmt"

	"github.com/robfig/cron/v3"

	applogger "HeatPulse/pkg/logger"
)

// Scheduler drives registered jobs on fixed cadences through the
// Tracker, so scheduled and ad hoc runs share the same concurrency
// guard. A cadence firing while the job still runs is skipped.
type Scheduler struct {
	cron    *cron.Cron
	tracker *Tracker
	l       *applogger.Logger
}

func NewScheduler(tracker *Tracker, l *applogger.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		tracker: tracker,
		l:       l,
	}
}

// Schedule runs job name on the given cron spec. "@every 10m" style
// intervals are accepted alongside standard five-field specs.
func (s *Scheduler) Schedule(spec, name string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.tracker.Trigger(name); err != nil {
			s.l.Warn("scheduled trigger skipped",
				applogger.String("job", name),
				applogger.Error(err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%s): %w", name, spec, err)
	}
	s.l.Info("job scheduled",
		applogger.String("job", name),
		applogger.String("cron", spec),
	)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started")
}

// Stop halts scheduling and waits for in-flight cron callbacks.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.l.Info("scheduler stopped")
}
