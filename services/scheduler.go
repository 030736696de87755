package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"tradeQuestAPI/internal/metrics"
)

const (
	jobTimeout          = 5 * time.Minute
	notificationReadTTL = 30 * 24 * time.Hour
	notificationMaxAge  = 90 * 24 * time.Hour
)

// ScheduledJob is one recurring task, run at the given UTC time of day.
type ScheduledJob struct {
	Name   string
	Hour   uint
	Minute uint
	Run    func(ctx context.Context) (int, error)
}

type Scheduler struct {
	sched gocron.Scheduler
	jobs  []ScheduledJob
}

// DefaultJobs wires the progression and notification maintenance tasks.
func DefaultJobs(progression *ProgressionService, notifications *NotificationService) []ScheduledJob {
	return []ScheduledJob{
		{Name: "settle_seasons", Hour: 0, Minute: 5, Run: progression.SettleSeasons},
		{Name: "streak_reminders", Hour: 18, Minute: 0, Run: progression.RemindStreaksAtRisk},
		{Name: "notification_cleanup", Hour: 3, Minute: 30, Run: func(ctx context.Context) (int, error) {
			n, err := notifications.Cleanup(ctx, notificationReadTTL, notificationMaxAge)
			return int(n), err
		}},
	}
}

func NewScheduler(clock clockwork.Clock, jobs []ScheduledJob) (*Scheduler, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	sched, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{sched: sched, jobs: jobs}
	for _, job := range jobs {
		job := job
		_, err := sched.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(job.Hour, job.Minute, 0))),
			gocron.NewTask(func() { RunJob(context.Background(), job) }),
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	log.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
}

func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}

// RunJob executes job once with a bounded context and records the outcome.
func RunJob(ctx context.Context, job ScheduledJob) error {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := job.Run(ctx)
	if err != nil {
		metrics.ScheduledJobRuns.WithLabelValues(job.Name, "error").Inc()
		log.Error().Err(err).Str("job", job.Name).Msg("scheduled job failed")
		return err
	}

	metrics.ScheduledJobRuns.WithLabelValues(job.Name, "ok").Inc()
	log.Info().Str("job", job.Name).Int("affected", n).Dur("took", time.Since(start)).Msg("scheduled job done")
	return nil
}

// JobNames lists the registered jobs.
func (s *Scheduler) JobNames() []string {
	jobs := s.sched.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}
