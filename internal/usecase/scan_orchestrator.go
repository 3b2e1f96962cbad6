package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"HeatPulse/internal/domain/models"
	domrepo "HeatPulse/internal/domain/repository"
	"HeatPulse/internal/notifier"
	applogger "HeatPulse/pkg/logger"
)

// Broadcaster pushes scan results to live-update subscribers.
type Broadcaster interface {
	Broadcast(v interface{})
}

// OrchestratorConfig tunes the scan cycle.
type OrchestratorConfig struct {
	TopNForSentiment  int
	RankingSize       int
	BroadcastTopAnoms int
}

// ScanOrchestrator chains the staged scan cycle:
// collect trades, calc heat, collect sentiment, recalc heat, detect,
// notify, broadcast. Stages run sequentially; each consumes what the
// previous one just persisted.
type ScanOrchestrator struct {
	quotes    domrepo.QuoteSource
	sources   []domrepo.SentimentSource
	snapshots domrepo.SnapshotStore
	calc      *HeatCalculator
	det       *AnomalyDetector
	notify    *notifier.Notifier
	bc        Broadcaster
	cfg       OrchestratorConfig
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

func NewScanOrchestrator(
	quotes domrepo.QuoteSource,
	sources []domrepo.SentimentSource,
	snapshots domrepo.SnapshotStore,
	calc *HeatCalculator,
	det *AnomalyDetector,
	notify *notifier.Notifier,
	bc Broadcaster,
	cfg OrchestratorConfig,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *ScanOrchestrator {
	return &ScanOrchestrator{
		quotes:    quotes,
		sources:   sources,
		snapshots: snapshots,
		calc:      calc,
		det:       det,
		notify:    notify,
		bc:        bc,
		cfg:       cfg,
		metrics:   metrics,
		l:         l,
	}
}

// Run executes one full scan cycle. An empty or failed quote pull ends
// the cycle early without error: there is nothing to score, and the
// next cadence retries. Sentiment sources degrade individually. Any
// other stage failure turns the whole job into an error; side effects
// already persisted stay.
func (o *ScanOrchestrator) Run(ctx context.Context, progress func(string)) (string, error) {
	cycleStart := time.Now()
	o.l.Info("scan cycle start")

	progress("1/7 collect trades")
	stage := time.Now()
	trades, err := o.quotes.Quotes(ctx)
	if err != nil {
		o.metrics.RecordError("quote_source")
		o.l.Warn("quote collection failed, skipping cycle", applogger.Error(err))
		o.metrics.RecordScan("skipped")
		return "no trade data", nil
	}
	if len(trades) == 0 {
		o.l.Warn("no trade data, skipping cycle")
		o.metrics.RecordScan("skipped")
		return "no trade data", nil
	}
	if err := o.snapshots.InsertTrades(ctx, trades); err != nil {
		o.metrics.RecordScan("error")
		return "", fmt.Errorf("persist trades: %w", err)
	}
	o.metrics.RecordInstruments(len(trades))
	o.metrics.RecordStage("collect_trades", time.Since(stage).Seconds())

	progress("2/7 calc heat")
	stage = time.Now()
	if _, err := o.calc.Calculate(ctx, trades, time.Now()); err != nil {
		o.metrics.RecordScan("error")
		return "", fmt.Errorf("calc heat: %w", err)
	}
	o.metrics.RecordStage("calc_heat", time.Since(stage).Seconds())

	progress("3/7 collect sentiment")
	stage = time.Now()
	o.collectSentiment(ctx, topCodes(trades, o.cfg.TopNForSentiment))
	o.metrics.RecordStage("collect_sentiment", time.Since(stage).Seconds())

	progress("4/7 recalc heat")
	stage = time.Now()
	scores, err := o.calc.Calculate(ctx, trades, time.Now())
	if err != nil {
		o.metrics.RecordScan("error")
		return "", fmt.Errorf("recalc heat: %w", err)
	}
	o.metrics.RecordStage("recalc_heat", time.Since(stage).Seconds())

	progress("5/7 detect anomalies")
	stage = time.Now()
	anomalies, err := o.det.Detect(ctx, scores)
	if err != nil {
		o.metrics.RecordScan("error")
		return "", fmt.Errorf("detect: %w", err)
	}
	o.metrics.RecordStage("detect", time.Since(stage).Seconds())

	progress("6/7 notify")
	stage = time.Now()
	if _, err := o.notify.Notify(ctx, anomalies, time.Now()); err != nil {
		o.metrics.RecordScan("error")
		return "", fmt.Errorf("notify: %w", err)
	}
	o.metrics.RecordStage("notify", time.Since(stage).Seconds())

	progress("7/7 broadcast")
	topAnoms := anomalies
	if len(topAnoms) > o.cfg.BroadcastTopAnoms {
		topAnoms = topAnoms[:o.cfg.BroadcastTopAnoms]
	}
	o.bc.Broadcast(models.UpdateEvent{
		Type:      "update",
		Ranking:   topRanking(scores, o.cfg.RankingSize),
		Anomalies: topAnoms,
	})

	o.metrics.RecordScan("ok")
	o.l.Info("scan cycle done",
		applogger.Int("instruments", len(trades)),
		applogger.Int("anomalies", len(anomalies)),
		applogger.Duration("duration_ms", time.Since(cycleStart)),
	)
	return fmt.Sprintf("scanned %d instruments, %d anomalies", len(trades), len(anomalies)), nil
}

// collectSentiment pulls each source best-effort: a failed source is
// logged and skipped, the cycle continues with whatever arrived.
func (o *ScanOrchestrator) collectSentiment(ctx context.Context, codes []string) {
	for _, src := range o.sources {
		rows, err := src.Collect(ctx, codes)
		if err != nil {
			o.metrics.RecordError(src.Name())
			o.l.Warn("sentiment source failed, degrading",
				applogger.String("source", src.Name()),
				applogger.Error(err),
			)
			continue
		}
		if err := o.snapshots.InsertSentiments(ctx, rows); err != nil {
			o.metrics.RecordError(src.Name())
			o.l.Warn("sentiment persist failed, degrading",
				applogger.String("source", src.Name()),
				applogger.Error(err),
			)
		}
	}
}

func topCodes(trades []models.TradeSnapshot, n int) []string {
	sorted := make([]models.TradeSnapshot, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].VolumeRatio > sorted[j].VolumeRatio
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = sorted[i].Code
	}
	return out
}

func topRanking(scores []models.HeatScore, n int) []models.HeatScore {
	sorted := make([]models.HeatScore, len(scores))
	copy(sorted, scores)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TotalHeat > sorted[j].TotalHeat
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
