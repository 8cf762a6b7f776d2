package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/config"
	"github.com/tazhate/fiscalbot/internal/calendar"
	"github.com/tazhate/fiscalbot/internal/service"
)

// Notifier delivers scheduled messages, usually the Telegram bot.
type Notifier interface {
	SendMorningDigest(ctx context.Context) error
	NotifyGeneration(ctx context.Context, result service.GenerationResult) error
}

// jobTimeout bounds a single scheduled run.
const jobTimeout = 5 * time.Minute

type Scheduler struct {
	cron      *cron.Cron
	cfg       *config.Config
	generator *service.Generator
	holidays  *calendar.HolidayCache
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.RWMutex
	notifier Notifier
	ctx      context.Context
}

func New(cfg *config.Config, generator *service.Generator, holidays *calendar.HolidayCache, logger *zap.Logger) *Scheduler {
	logger = logger.Named("scheduler")
	c := cron.New(
		cron.WithLocation(cfg.Timezone),
		cron.WithChain(
			cron.Recover(cronLogger{logger.Sugar()}),
			cron.SkipIfStillRunning(cronLogger{logger.Sugar()}),
		),
	)

	return &Scheduler{
		cron:      c,
		cfg:       cfg,
		generator: generator,
		holidays:  holidays,
		logger:    logger,
		now:       time.Now,
		ctx:       context.Background(),
	}
}

func (s *Scheduler) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *Scheduler) getNotifier() Notifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifier
}

// dailySpec turns "HH:MM" into a five-field cron spec.
func dailySpec(clock string) (string, error) {
	hour, minute, err := config.ParseClock(clock)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// register adds the jobs without starting the cron loop.
func (s *Scheduler) register() error {
	generationSpec, err := dailySpec(s.cfg.GenerationTime)
	if err != nil {
		return fmt.Errorf("generation time: %w", err)
	}
	if _, err := s.cron.AddFunc(generationSpec, s.job(s.runGeneration)); err != nil {
		return fmt.Errorf("add generation: %w", err)
	}

	morningSpec, err := dailySpec(s.cfg.MorningTime)
	if err != nil {
		return fmt.Errorf("morning time: %w", err)
	}
	if _, err := s.cron.AddFunc(morningSpec, s.job(s.morningDigest)); err != nil {
		return fmt.Errorf("add morning digest: %w", err)
	}

	// Covers the year rollover and retries a warm-up that failed earlier.
	if _, err := s.cron.AddFunc("30 3 1 * *", s.job(s.warmHolidays)); err != nil {
		return fmt.Errorf("add holiday warm-up: %w", err)
	}
	return nil
}

// Start warms the holiday cache, runs one generation pass, then runs the
// jobs on schedule until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.register(); err != nil {
		return err
	}

	s.job(s.warmHolidays)()
	s.job(s.runGeneration)()

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("timezone", s.cfg.Timezone.String()),
		zap.String("generation", s.cfg.GenerationTime),
		zap.String("morning", s.cfg.MorningTime),
	)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// job adapts fn to cron, deriving a bounded context from the Start context.
func (s *Scheduler) job(fn func(context.Context)) func() {
	return func() {
		s.mu.RLock()
		parent := s.ctx
		s.mu.RUnlock()

		ctx, cancel := context.WithTimeout(parent, jobTimeout)
		defer cancel()
		fn(ctx)
	}
}

func (s *Scheduler) runGeneration(ctx context.Context) {
	result, err := s.generator.CheckAndGenerateRecurrences(ctx)
	if err != nil {
		s.logger.Error("generation pass failed", zap.Error(err))
		return
	}

	if n := s.getNotifier(); n != nil {
		if err := n.NotifyGeneration(ctx, result); err != nil {
			s.logger.Error("generation notification failed", zap.Error(err))
		}
	}
}

func (s *Scheduler) morningDigest(ctx context.Context) {
	n := s.getNotifier()
	if n == nil {
		return
	}
	if err := n.SendMorningDigest(ctx); err != nil {
		s.logger.Error("morning digest failed", zap.Error(err))
	}
}

func (s *Scheduler) warmHolidays(ctx context.Context) {
	year := s.now().In(s.cfg.Timezone).Year()
	s.holidays.Warm(ctx, year, year+1)
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
