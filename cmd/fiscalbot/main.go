package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tazhate/fiscalbot/config"
	"github.com/tazhate/fiscalbot/internal/api"
	"github.com/tazhate/fiscalbot/internal/bot"
	"github.com/tazhate/fiscalbot/internal/calendar"
	"github.com/tazhate/fiscalbot/internal/clients/caldav"
	"github.com/tazhate/fiscalbot/internal/clients/holidays"
	"github.com/tazhate/fiscalbot/internal/logger"
	"github.com/tazhate/fiscalbot/internal/recurrence"
	"github.com/tazhate/fiscalbot/internal/scheduler"
	"github.com/tazhate/fiscalbot/internal/service"
	"github.com/tazhate/fiscalbot/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(fiscalbot())
}

// fiscalbot runs the daemon and returns the process exit code once every
// deferred cleanup, including the log flush, has run.
func fiscalbot() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("fiscalbot failed", zap.Error(err))
		return 1
	}
	return 0
}

func holidaySource(cfg *config.Config) calendar.HolidaySource {
	sources := holidays.Merged{holidays.NewClient(cfg.HolidaysAPIURL, cfg.HolidayTimeout, cfg.Timezone)}
	if cfg.HolidaysICSURL != "" {
		sources = append(sources, holidays.NewICSSource(cfg.HolidaysICSURL, cfg.HolidayTimeout, cfg.Timezone))
	}
	return sources
}

func run(cfg *config.Config, log *zap.Logger) error {
	store, err := storage.New(cfg.DatabasePath, cfg.Timezone)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	holidayCache := calendar.NewHolidayCache(holidaySource(cfg), cfg.Timezone, log)
	adjuster := calendar.NewAdjuster(holidayCache)
	engine := recurrence.NewEngine(adjuster)
	events := service.NewEvents()

	calendarSvc := service.NewCalendarService(store,
		caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendar),
		log, cfg.Timezone)
	if cfg.CalDAVEnabled() {
		unsubscribe := calendarSvc.Subscribe(events)
		defer unsubscribe()
	}

	obligationSvc := service.NewObligationService(store, events, log)
	dashboardSvc := service.NewDashboardService(store)
	generator := service.NewGenerator(store, engine, events, log, cfg.Timezone, cfg.SystemActor)

	handler := api.NewHandler(cfg, store, api.Services{
		Clients:      service.NewClientService(store, events, log),
		Taxes:        service.NewTaxService(store, events, log),
		Obligations:  obligationSvc,
		Installments: service.NewInstallmentService(store, engine, adjuster, events, log),
		Dashboard:    dashboardSvc,
		Calendar:     calendarSvc,
		Audit:        service.NewAuditService(store),
		Settings:     service.NewSettingsService(store),
		Generator:    generator,
	}, engine, log)

	sched := scheduler.New(cfg, generator, holidayCache, log)

	var tgBot *bot.Bot
	var webhook http.Handler
	if cfg.TelegramEnabled() {
		if tgBot, err = bot.New(cfg, obligationSvc, dashboardSvc, generator, log); err != nil {
			return fmt.Errorf("init bot: %w", err)
		}
		sched.SetNotifier(tgBot)
		if cfg.WebhookURL != "" {
			webhook = tgBot.WebhookHandler()
		}
	} else {
		log.Info("telegram disabled: TELEGRAM_BOT_TOKEN is not set")
	}

	server := api.NewServer(":"+cfg.ServerPort, api.NewRouter(handler, webhook))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Start(gctx)
	})
	if tgBot != nil {
		g.Go(func() error {
			return tgBot.Start(gctx)
		})
	}
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		sched.Stop()
		if tgBot != nil {
			tgBot.Stop()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
		return nil
	})

	log.Info("fiscalbot started",
		zap.String("env", cfg.Environment),
		zap.String("timezone", cfg.Timezone.String()),
		zap.Bool("telegram", tgBot != nil),
		zap.Bool("api", cfg.APIEnabled()),
		zap.Bool("caldav", cfg.CalDAVEnabled()),
	)

	err = g.Wait()
	calendarSvc.Wait()
	log.Info("fiscalbot stopped")
	return err
}
