package usecase

import (
	"context"
	"fmt"
	"time"

	"HeatPulse/internal/domain/models"
	domrepo "HeatPulse/internal/domain/repository"
	"HeatPulse/internal/engine"
	applogger "HeatPulse/pkg/logger"
)

// HeatCalculator composes trade and sentiment signals into persisted
// heat scores. Called twice per scan cycle: once right after the quote
// pull and once more after sentiment collection folds in fresh counts.
type HeatCalculator struct {
	snapshots       domrepo.SnapshotStore
	heat            domrepo.HeatStore
	weights         engine.Weights
	sentimentWindow time.Duration
	l               *applogger.Logger
}

func NewHeatCalculator(snapshots domrepo.SnapshotStore, heat domrepo.HeatStore, weights engine.Weights, sentimentWindow time.Duration, l *applogger.Logger) *HeatCalculator {
	return &HeatCalculator{
		snapshots:       snapshots,
		heat:            heat,
		weights:         weights,
		sentimentWindow: sentimentWindow,
		l:               l,
	}
}

// Calculate scores every snapshot, joins in sentiment observed inside
// the window, persists the batch under ts and returns it.
func (c *HeatCalculator) Calculate(ctx context.Context, trades []models.TradeSnapshot, ts time.Time) ([]models.HeatScore, error) {
	if len(trades) == 0 {
		return nil, nil
	}

	codes := make([]string, len(trades))
	for i, t := range trades {
		codes[i] = t.Code
	}
	recent, err := c.snapshots.RecentSentiments(ctx, codes, ts.Add(-c.sentimentWindow))
	if err != nil {
		return nil, fmt.Errorf("load sentiments: %w", err)
	}

	sentiment := engine.SentimentHeat(recent, c.weights)
	scores := engine.Compose(trades, sentiment, c.weights, ts)
	if err := c.heat.InsertScores(ctx, scores); err != nil {
		return nil, fmt.Errorf("persist scores: %w", err)
	}
	c.l.Info("heat calculated",
		applogger.Int("instruments", len(scores)),
		applogger.Int("with_sentiment", len(sentiment)),
	)
	return scores, nil
}
