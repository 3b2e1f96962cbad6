package repository

import (
	"context"
	"time"

	"HeatPulse/internal/domain/models"
)

// QuoteSource pulls one batch of realtime quotes for the whole universe.
type QuoteSource interface {
	Quotes(ctx context.Context) ([]models.TradeSnapshot, error)
}

// SentimentSource pulls discussion counts for the given codes.
// Implementations tolerate partial failure per code; a returned error
// means the whole source is unavailable this cycle.
type SentimentSource interface {
	Name() string
	Collect(ctx context.Context, codes []string) ([]models.SentimentSnapshot, error)
}

// SnapshotStore persists raw collector output.
type SnapshotStore interface {
	InsertTrades(ctx context.Context, rows []models.TradeSnapshot) error
	InsertSentiments(ctx context.Context, rows []models.SentimentSnapshot) error
	RecentSentiments(ctx context.Context, codes []string, since time.Time) ([]models.SentimentSnapshot, error)
}

// HeatStore persists and queries heat scores.
type HeatStore interface {
	InsertScores(ctx context.Context, rows []models.HeatScore) error
	// DailyHistory returns at most limit daily-deduplicated points for code,
	// most recent day first (latest record of each calendar day).
	DailyHistory(ctx context.Context, code string, limit int) ([]models.DailyHeat, error)
	// AmendLatestZScore overwrites the zscore of the most recent row for code.
	AmendLatestZScore(ctx context.Context, code string, zscore float64) error
	LatestBatchTs(ctx context.Context) (time.Time, error)
	BatchScores(ctx context.Context, ts time.Time, offset, limit int) ([]models.HeatScore, int, error)
	Trend(ctx context.Context, code string, since time.Time) ([]models.HeatScore, error)
}

// AlertStore persists alerts and answers the dedup-window query.
type AlertStore interface {
	InsertAlerts(ctx context.Context, rows []models.Alert) error
	HasRecent(ctx context.Context, code string, since time.Time) (bool, error)
	List(ctx context.Context, offset, limit int) ([]models.Alert, int, error)
}

// JobLogStore appends the job audit trail.
type JobLogStore interface {
	Append(ctx context.Context, entry models.JobLogEntry) error
	Recent(ctx context.Context, limit int) ([]models.JobLogEntry, error)
}

// RetentionStore deletes rows older than a horizon across all tables.
type RetentionStore interface {
	PurgeOlderThan(ctx context.Context, horizon time.Time) error
}

// AlertPublisher pushes surviving alerts onto an event bus for
// downstream consumers. Optional; delivery is fire-and-forget.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, alerts []models.Alert) error
	Close() error
}

// Metrics is the instrumentation sink for the pipeline.
type Metrics interface {
	RecordScan(status string)
	RecordStage(stage string, seconds float64)
	RecordAnomalies(n int)
	RecordAlerts(channel string, n int)
	RecordError(kind string)
	RecordInstruments(n int)
	RecordWSClients(n int)
}
