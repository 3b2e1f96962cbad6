package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"HeatPulse/internal/domain/models"
	pkgch "HeatPulse/pkg/clickhouse"
	applogger "HeatPulse/pkg/logger"
)

// CHJobLogStore appends and reads the job audit trail.
type CHJobLogStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHJobLogStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHJobLogStore {
	return &CHJobLogStore{db: ch.DB(), database: database, l: l}
}

func (s *CHJobLogStore) Append(ctx context.Context, entry models.JobLogEntry) error {
	q := fmt.Sprintf("INSERT INTO %s.job_logs (ts, job_name, status, message, duration_ms) VALUES (?, ?, ?, ?, ?)", s.database)
	_, err := s.db.ExecContext(ctx, q,
		entry.Ts,
		entry.JobName,
		entry.Status,
		entry.Message,
		uint64(entry.Duration.Milliseconds()),
	)
	if err != nil {
		s.l.Error("clickhouse append_job_log error",
			applogger.String("job", entry.JobName),
			applogger.Error(err),
		)
		return fmt.Errorf("append job log: %w", err)
	}
	return nil
}

func (s *CHJobLogStore) Recent(ctx context.Context, limit int) ([]models.JobLogEntry, error) {
	q := fmt.Sprintf(`
        SELECT ts, job_name, status, message, duration_ms
        FROM %s.job_logs
        ORDER BY ts DESC
        LIMIT ?
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		s.l.Error("clickhouse recent_job_logs query error", applogger.Error(err))
		return nil, fmt.Errorf("recent job logs: %w", err)
	}
	defer rows.Close()

	out := make([]models.JobLogEntry, 0, limit)
	for rows.Next() {
		var e models.JobLogEntry
		var durMs uint64
		if err := rows.Scan(&e.Ts, &e.JobName, &e.Status, &e.Message, &durMs); err != nil {
			return nil, fmt.Errorf("scan job log: %w", err)
		}
		e.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
