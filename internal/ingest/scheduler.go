package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/localnerve/juriiq/internal/logging"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner is anything that can run an ingestion pass
type Runner interface {
	Run(ctx context.Context, trigger Trigger) (*RunResult, error)
}

// Scheduler runs the pipeline on a cron spec and on demand. Every run gets
// the scheduler's context, which Stop cancels.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// NewScheduler registers runner under spec, a standard five-field cron
// expression or a descriptor such as @daily or @hourly
func NewScheduler(runner Runner, spec string, log *zap.Logger) (*Scheduler, error) {
	log = logging.OrNop(log).Named("scheduler")
	clog := cronLogger{log: log.Sugar()}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner: runner,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		cron: cron.New(
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
	}

	if _, err := s.cron.AddFunc(spec, func() {
		_, _ = s.Trigger(TriggerSchedule)
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid ingestion schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins the cron loop
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("ingestion scheduler started", zap.Time("next", s.Next()))
}

// Next is the next scheduled run time
func (s *Scheduler) Next() (next time.Time) {
	for _, e := range s.cron.Entries() {
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}

// Trigger runs the pipeline now on the calling goroutine
func (s *Scheduler) Trigger(trigger Trigger) (*RunResult, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, context.Canceled
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	res, err := s.runner.Run(s.ctx, trigger)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.log.Info("ingestion run skipped, another run is in progress", zap.String("trigger", string(trigger)))
	case err != nil:
		s.log.Error("ingestion run failed", zap.String("trigger", string(trigger)), zap.Error(err))
	}
	return res, err
}

// TriggerAsync starts a run in the background
func (s *Scheduler) TriggerAsync(trigger Trigger) {
	go func() {
		_, _ = s.Trigger(trigger)
	}()
}

// Stop halts the cron loop, cancels any running pass and waits for it,
// or for ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("ingestion scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
