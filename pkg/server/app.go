package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "HeatPulse/internal/domain/repository"
	"HeatPulse/internal/hub"
	"HeatPulse/internal/jobs"
	"HeatPulse/internal/usecase"
	pkgch "HeatPulse/pkg/clickhouse"
	"HeatPulse/pkg/config"
	xhttp "HeatPulse/pkg/http"
	pkgkafka "HeatPulse/pkg/kafka"
	applogger "HeatPulse/pkg/logger"
)

const scanJob = "scan"
const cleanupJob = "cleanup"

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	l         *applogger.Logger
	chClient  *pkgch.Client
	producer  *pkgkafka.Producer
	bus       domrepo.AlertPublisher
	hub       *hub.Hub
	tracker   *jobs.Tracker
	scheduler *jobs.Scheduler
	orch      *usecase.ScanOrchestrator
	cleanup   *usecase.CleanupJob
	handler   xhttp.Handler

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	bus domrepo.AlertPublisher,
	h *hub.Hub,
	tracker *jobs.Tracker,
	scheduler *jobs.Scheduler,
	orch *usecase.ScanOrchestrator,
	cleanup *usecase.CleanupJob,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		chClient:  chClient,
		producer:  producer,
		bus:       bus,
		hub:       h,
		tracker:   tracker,
		scheduler: scheduler,
		orch:      orch,
		cleanup:   cleanup,
		handler:   handler,
	}
}

// kafkaLogSink adapts the Kafka producer to the log collector sink.
type kafkaLogSink struct {
	producer *pkgkafka.Producer
}

func (s kafkaLogSink) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return s.producer.Publish(ctx, topic, nil, payload)
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	if a.producer != nil && a.cfg.Kafka.LogTopic != "" {
		a.l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          a.cfg.Kafka.LogTopic,
			Publisher:      kafkaLogSink{producer: a.producer},
		})
	}

	a.tracker.Register(scanJob, a.orch.Run)
	a.tracker.Register(cleanupJob, a.cleanup.Run)

	scanSpec := fmt.Sprintf("@every %dm", a.cfg.Scanner.IntervalMinutes)
	if err := a.scheduler.Schedule(scanSpec, scanJob); err != nil {
		return fmt.Errorf("schedule %s: %w", scanJob, err)
	}
	if err := a.scheduler.Schedule(a.cfg.Data.CleanupCron, cleanupJob); err != nil {
		return fmt.Errorf("schedule %s: %w", cleanupJob, err)
	}
	a.scheduler.Start()
	a.l.Info("scheduler started",
		applogger.String("scan", scanSpec),
		applogger.String("cleanup", a.cfg.Data.CleanupCron))

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http server start: %w", err)
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Kick off an initial scan so the UI has data before the first tick.
	if err := a.tracker.Trigger(scanJob); err != nil {
		a.l.Warn("initial scan trigger", applogger.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops services in dependency order: no new job triggers,
// running jobs drain, then the transports and clients close.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.scheduler.Stop()

	if err := a.tracker.Shutdown(ctx); err != nil {
		a.l.Warn("job tracker shutdown", applogger.Error(err))
	}

	if err := a.hub.Shutdown(ctx); err != nil {
		a.l.Warn("hub shutdown", applogger.Error(err))
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown", applogger.Error(err))
		}
	}

	if err := a.bus.Close(); err != nil {
		a.l.Warn("alert bus close", applogger.Error(err))
	}

	if err := a.chClient.Close(); err != nil {
		a.l.Warn("clickhouse close", applogger.Error(err))
	}

	a.l.Info("shutdown complete")
	return nil
}
