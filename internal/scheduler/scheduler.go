package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jgivc/tagsync/internal/common"
	"github.com/jgivc/tagsync/internal/entity"
	"github.com/jgivc/tagsync/internal/service/reconcile"
	"github.com/robfig/cron/v3"
)

const clockLayout = "15:04"

type SyncService interface {
	Run(ctx context.Context, opts reconcile.Options) (*entity.RunResult, error)
}

// Scheduler runs a sync once a day at a fixed local wall clock time.
type Scheduler struct {
	srv      SyncService
	opts     reconcile.Options
	schedule cron.Schedule
	cron     *cron.Cron
	log      *slog.Logger
}

func NewScheduler(srv SyncService, at string, opts reconcile.Options, log *slog.Logger) (*Scheduler, error) {
	t, err := time.Parse(clockLayout, at)
	if err != nil {
		return nil, fmt.Errorf("invalid time of day %q: %w", at, err)
	}

	schedule, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()))
	if err != nil {
		return nil, fmt.Errorf("cannot build schedule for %q: %w", at, err)
	}

	return newScheduler(srv, schedule, opts, log), nil
}

func newScheduler(srv SyncService, schedule cron.Schedule, opts reconcile.Options, log *slog.Logger) *Scheduler {
	log = log.With(slog.String("item", "Scheduler"))
	cl := &cronLogger{log: log}

	s := &Scheduler{
		srv:      srv,
		opts:     opts,
		schedule: schedule,
		log:      log,
		cron: cron.New(
			cron.WithLocation(time.Local),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.tick))

	return s
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Next sync scheduled", slog.Time("at", s.schedule.Next(time.Now())))
}

// Stop stops scheduling and waits for a sync in progress to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tick() {
	_, err := s.srv.Run(context.Background(), s.opts)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrSyncAlreadyRunning):
		s.log.Warn("Skip scheduled sync, another one is running")
	default:
		s.log.Error("Scheduled sync failed", slog.Any("error", err))
	}
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
