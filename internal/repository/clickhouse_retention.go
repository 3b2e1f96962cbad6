package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	pkgch "HeatPulse/pkg/clickhouse"
	applogger "HeatPulse/pkg/logger"
)

// CHRetentionStore deletes rows older than a horizon across all tables.
type CHRetentionStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHRetentionStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHRetentionStore {
	return &CHRetentionStore{db: ch.DB(), database: database, l: l}
}

// PurgeOlderThan issues one lightweight-delete mutation per table. A
// failed table does not stop the others; the first error is returned.
func (s *CHRetentionStore) PurgeOlderThan(ctx context.Context, horizon time.Time) error {
	tables := []string{"trade_snapshots", "sentiment_snapshots", "heat_scores", "alerts", "job_logs"}
	var firstErr error
	for _, t := range tables {
		q := fmt.Sprintf("ALTER TABLE %s.%s DELETE WHERE ts < ?", s.database, t)
		if _, err := s.db.ExecContext(ctx, q, horizon); err != nil {
			s.l.Error("clickhouse purge error",
				applogger.String("table", t),
				applogger.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("purge %s: %w", t, err)
			}
			continue
		}
		s.l.Info("clickhouse purge ok",
			applogger.String("table", t),
			applogger.String("horizon", horizon.Format(time.RFC3339)),
		)
	}
	return firstErr
}
