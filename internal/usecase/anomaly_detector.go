package usecase

import (
	"context"
	"fmt"
	"sort"

	"HeatPulse/internal/domain/models"
	domrepo "HeatPulse/internal/domain/repository"
	"HeatPulse/internal/engine"
	applogger "HeatPulse/pkg/logger"
)

// maxConsecutiveStoreFailures is the point at which per-code store
// failures stop looking like bad codes and start looking like a down
// store; the batch then fails to the job boundary.
const maxConsecutiveStoreFailures = 5

// DetectorConfig tunes the anomaly evaluation.
type DetectorConfig struct {
	Thresholds    engine.Thresholds
	WindowSize    int
	MinDataPoints int
}

// AnomalyDetector evaluates every scored instrument against its own
// daily history and amends the persisted z-score in place.
type AnomalyDetector struct {
	heat    domrepo.HeatStore
	cfg     DetectorConfig
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewAnomalyDetector(heat domrepo.HeatStore, cfg DetectorConfig, metrics domrepo.Metrics, l *applogger.Logger) *AnomalyDetector {
	return &AnomalyDetector{heat: heat, cfg: cfg, metrics: metrics, l: l}
}

// Detect returns flagged instruments sorted by z-score descending.
// Codes with too little history are skipped silently. A history or
// amend failure for one code skips that code, not the batch, unless
// the failures run consecutive enough to indicate a degraded store.
func (d *AnomalyDetector) Detect(ctx context.Context, scores []models.HeatScore) ([]models.Anomaly, error) {
	var anomalies []models.Anomaly
	var storeFailures int
	for _, s := range scores {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// window+1 days: the first entry is today's own partial point
		// and is excluded from the baseline
		history, err := d.heat.DailyHistory(ctx, s.Code, d.cfg.WindowSize+1)
		if err != nil {
			d.metrics.RecordError("history")
			d.l.Warn("history fetch failed",
				applogger.String("code", s.Code),
				applogger.Error(err),
			)
			storeFailures++
			if storeFailures >= maxConsecutiveStoreFailures {
				return nil, fmt.Errorf("heat store degraded, %d consecutive failures: %w", storeFailures, err)
			}
			continue
		}
		if len(history) == 0 {
			continue
		}
		past := make([]float64, 0, len(history)-1)
		for _, h := range history[1:] {
			past = append(past, h.TradeHeat)
		}
		if len(past) < d.cfg.MinDataPoints {
			continue
		}

		v := engine.Evaluate(s.TradeHeat, past, d.cfg.Thresholds)

		if err := d.heat.AmendLatestZScore(ctx, s.Code, v.ZScore); err != nil {
			d.metrics.RecordError("amend_zscore")
			d.l.Warn("zscore amend failed",
				applogger.String("code", s.Code),
				applogger.Error(err),
			)
			storeFailures++
			if storeFailures >= maxConsecutiveStoreFailures {
				return nil, fmt.Errorf("heat store degraded, %d consecutive failures: %w", storeFailures, err)
			}
		} else {
			storeFailures = 0
		}

		if !v.Anomalous {
			continue
		}
		anomalies = append(anomalies, models.Anomaly{
			Code:        s.Code,
			Name:        s.Name,
			TotalHeat:   engine.Round(s.TotalHeat, 4),
			TradeHeat:   engine.Round(s.TradeHeat, 4),
			ZScore:      engine.Round(v.ZScore, 2),
			ChangePct:   s.ChangePct,
			VolumeRatio: s.VolumeRatio,
			Breakout:    engine.Round(v.Breakout, 2),
			BoxCV:       engine.Round(v.BoxCV, 4),
			BoxUpper:    engine.Round(v.BoxUpper, 4),
			BoxLower:    engine.Round(v.BoxLower, 4),
			HistMean:    engine.Round(v.Mean, 4),
			Type:        v.Type,
		})
	}

	sort.Slice(anomalies, func(i, j int) bool {
		return anomalies[i].ZScore > anomalies[j].ZScore
	})
	d.metrics.RecordAnomalies(len(anomalies))
	d.l.Info("anomalies detected", applogger.Int("count", len(anomalies)))
	return anomalies, nil
}
