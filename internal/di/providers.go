package di

import (
	"context"
	"fmt"
	"time"

	"HeatPulse/internal/collector"
	domrepo "HeatPulse/internal/domain/repository"
	"HeatPulse/internal/engine"
	"HeatPulse/internal/handler/api"
	"HeatPulse/internal/hub"
	"HeatPulse/internal/jobs"
	"HeatPulse/internal/notifier"
	internalrepo "HeatPulse/internal/repository"
	icache "HeatPulse/internal/service/cache"
	"HeatPulse/internal/service/ratelimit"
	"HeatPulse/internal/usecase"
	pkgch "HeatPulse/pkg/clickhouse"
	"HeatPulse/pkg/config"
	xhttp "HeatPulse/pkg/http"
	pkgkafka "HeatPulse/pkg/kafka"
	applogger "HeatPulse/pkg/logger"
	"HeatPulse/pkg/metrics"
	"HeatPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and initializes
// the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when the bus
// is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAlertPublisher picks the Kafka bus when enabled, a no-op
// otherwise.
func ProvideAlertPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.AlertPublisher {
	if producer == nil {
		return internalrepo.NopAlertPublisher{}
	}
	return internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.AlertTopic)
}

// ProvideSnapshotStore creates the raw snapshot store.
func ProvideSnapshotStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) domrepo.SnapshotStore {
	return internalrepo.NewCHSnapshotStore(ch, cfg.ClickHouse.Database, l)
}

// ProvideHeatStore creates the heat score store.
func ProvideHeatStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) domrepo.HeatStore {
	return internalrepo.NewCHHeatStore(ch, cfg.ClickHouse.Database, l)
}

// ProvideAlertStore creates the alert store.
func ProvideAlertStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) domrepo.AlertStore {
	return internalrepo.NewCHAlertStore(ch, cfg.ClickHouse.Database, l)
}

// ProvideJobLogStore creates the job audit store.
func ProvideJobLogStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) domrepo.JobLogStore {
	return internalrepo.NewCHJobLogStore(ch, cfg.ClickHouse.Database, l)
}

// ProvideRetentionStore creates the retention store.
func ProvideRetentionStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) domrepo.RetentionStore {
	return internalrepo.NewCHRetentionStore(ch, cfg.ClickHouse.Database, l)
}

// ProvideHTTPClient creates the outbound HTTP client shared by the
// collectors and the webhook notifier.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Sources.Timeout))
}

// ProvideQuoteSource creates the eastmoney realtime quote collector.
func ProvideQuoteSource(client *xhttp.Client, cfg *config.Config, l *applogger.Logger) domrepo.QuoteSource {
	return collector.NewEastmoneyQuotes(client, cfg.Sources.QuoteURL, cfg.Sources.QuotePageSz, l)
}

// ProvideSentimentSources creates all sentiment collectors.
func ProvideSentimentSources(client *xhttp.Client, cfg *config.Config, l *applogger.Logger) []domrepo.SentimentSource {
	return []domrepo.SentimentSource{
		collector.NewGubaSource(client, cfg.Sources.GubaURL, ratelimit.New(), cfg.Sources.GubaRPS, l),
		collector.NewTHSHotList(client, cfg.Sources.HotListURL, l),
	}
}

// ProvideCache picks Redis when enabled, in-process TTL cache
// otherwise.
func ProvideCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideHub creates the websocket hub.
func ProvideHub(l *applogger.Logger, m domrepo.Metrics) *hub.Hub {
	return hub.New(l, m)
}

// ProvideTracker creates the job tracker.
func ProvideTracker(jobLogs domrepo.JobLogStore, h *hub.Hub, l *applogger.Logger) *jobs.Tracker {
	return jobs.NewTracker(jobLogs, h, l)
}

// ProvideScheduler creates the cron scheduler.
func ProvideScheduler(tracker *jobs.Tracker, l *applogger.Logger) *jobs.Scheduler {
	return jobs.NewScheduler(tracker, l)
}

// ProvideWeights maps configuration onto the scoring weights.
func ProvideWeights(cfg *config.Config) engine.Weights {
	return engine.Weights{
		VolumeRatio:  cfg.HeatWeights.VolumeRatio,
		TurnoverRate: cfg.HeatWeights.TurnoverRate,
		Amount:       cfg.HeatWeights.Amount,
		Trade:        cfg.HeatWeights.Trade,
		Sentiment:    cfg.HeatWeights.Sentiment,
		Source: map[string]float64{
			"guba":    cfg.HeatWeights.Guba,
			"ths_hot": cfg.HeatWeights.HotList,
		},
	}
}

// ProvideHeatCalculator creates the heat calculator.
func ProvideHeatCalculator(snapshots domrepo.SnapshotStore, heat domrepo.HeatStore, weights engine.Weights, cfg *config.Config, l *applogger.Logger) *usecase.HeatCalculator {
	return usecase.NewHeatCalculator(snapshots, heat, weights, cfg.Detection.SentimentWindow, l)
}

// ProvideAnomalyDetector creates the anomaly detector.
func ProvideAnomalyDetector(heat domrepo.HeatStore, cfg *config.Config, m domrepo.Metrics, l *applogger.Logger) *usecase.AnomalyDetector {
	return usecase.NewAnomalyDetector(heat, usecase.DetectorConfig{
		Thresholds: engine.Thresholds{
			ZScore:       cfg.Detection.ZScoreThreshold,
			BoxCVMax:     cfg.Detection.BoxCVMax,
			BreakoutMin:  cfg.Detection.BreakoutMin,
			HeatLiftMin:  cfg.Detection.HeatLiftMin,
			HeatLiftWarm: cfg.Detection.HeatLiftWarm,
			WarmMean:     cfg.Detection.WarmMean,
			MinTradeHeat: cfg.Detection.MinTradeHeat,
		},
		WindowSize:    cfg.Detection.WindowSize,
		MinDataPoints: cfg.Detection.MinDataPoints,
	}, m, l)
}

// ProvideNotifier creates the webhook notifier.
func ProvideNotifier(cfg *config.Config, alerts domrepo.AlertStore, bus domrepo.AlertPublisher, client *xhttp.Client, m domrepo.Metrics, l *applogger.Logger) *notifier.Notifier {
	return notifier.New(notifier.Config{
		WebhookType: cfg.Alert.WebhookType,
		WebhookURL:  cfg.Alert.WebhookURL,
		DedupWindow: time.Duration(cfg.Alert.DedupMinutes) * time.Minute,
	}, alerts, bus, client, m, l)
}

// ProvideOrchestrator creates the scan orchestrator.
func ProvideOrchestrator(
	quotes domrepo.QuoteSource,
	sources []domrepo.SentimentSource,
	snapshots domrepo.SnapshotStore,
	calc *usecase.HeatCalculator,
	det *usecase.AnomalyDetector,
	notify *notifier.Notifier,
	h *hub.Hub,
	cfg *config.Config,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.ScanOrchestrator {
	return usecase.NewScanOrchestrator(quotes, sources, snapshots, calc, det, notify, h, usecase.OrchestratorConfig{
		TopNForSentiment:  cfg.Scanner.TopNForSentiment,
		RankingSize:       cfg.Scanner.RankingSize,
		BroadcastTopAnoms: cfg.Scanner.BroadcastTopAnoms,
	}, m, l)
}

// ProvideCleanupJob creates the retention cleanup job.
func ProvideCleanupJob(store domrepo.RetentionStore, cfg *config.Config, l *applogger.Logger) *usecase.CleanupJob {
	return usecase.NewCleanupJob(store, cfg.Data.RetentionDays, l)
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(
	heat domrepo.HeatStore,
	alerts domrepo.AlertStore,
	jobLogs domrepo.JobLogStore,
	tracker *jobs.Tracker,
	h *hub.Hub,
	cache icache.BytesCache,
	cfg *config.Config,
	l *applogger.Logger,
) xhttp.Handler {
	return api.NewHeatHandler(heat, alerts, jobLogs, tracker, h, cache, cfg.Auth.Password, l)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	bus domrepo.AlertPublisher,
	h *hub.Hub,
	tracker *jobs.Tracker,
	scheduler *jobs.Scheduler,
	orch *usecase.ScanOrchestrator,
	cleanup *usecase.CleanupJob,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, l, ch, producer, bus, h, tracker, scheduler, orch, cleanup, handler)
}
