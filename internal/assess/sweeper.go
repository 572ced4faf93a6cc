package assess

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
)

// Sweeper periodically force-submits expired timed assignments. In-process
// session timers die with the process; the sweeper picks those sessions up
// after a restart.
type Sweeper struct {
	scheduler *gocron.Scheduler
	svc       *Service
}

func NewSweeper(svc *Service) *Sweeper {
	return &Sweeper{scheduler: gocron.NewScheduler(time.UTC), svc: svc}
}

// Start schedules the sweep and runs it in the background.
func (s *Sweeper) Start(interval time.Duration) error {
	if _, err := s.scheduler.Every(interval).Do(func() {
		s.svc.SweepExpired(context.Background())
	}); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}
