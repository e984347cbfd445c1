package delivery

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"masterclass-pods/internal/logger"
)

const (
	TagDeliveryPoll = "delivery-poll"
	TagAdvanceDays  = "advance-days"
)

// Scheduler runs the periodic delivery jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	// a slow tick must not overlap the next one
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// ScheduleInterval runs job every interval, starting immediately.
func (s *Scheduler) ScheduleInterval(tag string, interval time.Duration, job func(ctx context.Context) error) error {
	_, err := s.scheduler.Every(interval).Tag(tag).Do(s.wrap(tag, job))
	return err
}

// ScheduleCron runs job on a cron expression.
func (s *Scheduler) ScheduleCron(tag, cronExpr string, job func(ctx context.Context) error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(s.wrap(tag, job))
	return err
}

func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

func (s *Scheduler) GetJobs() []*gocron.Job {
	return s.scheduler.Jobs()
}

func (s *Scheduler) wrap(tag string, job func(ctx context.Context) error) func() {
	return func() {
		if err := job(s.ctx); err != nil {
			logger.Error("Scheduled job failed", "job", tag, "error", err)
		}
	}
}

// RegisterDefaults wires the delivery poll and the day advance.
func RegisterDefaults(s *Scheduler, poller *Poller, pollInterval time.Duration, advanceCron string, advance func(ctx context.Context) (int, error)) error {
	err := s.ScheduleInterval(TagDeliveryPoll, pollInterval, func(ctx context.Context) error {
		_, err := poller.Tick(ctx)
		return err
	})
	if err != nil {
		return err
	}
	return s.ScheduleCron(TagAdvanceDays, advanceCron, func(ctx context.Context) error {
		n, err := advance(ctx)
		if n > 0 {
			logger.Info("Advanced pod days", "scheduled", n)
		}
		return err
	})
}
