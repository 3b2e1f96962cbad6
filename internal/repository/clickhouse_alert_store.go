package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"HeatPulse/internal/domain/models"
	pkgch "HeatPulse/pkg/clickhouse"
	applogger "HeatPulse/pkg/logger"
)

// CHAlertStore persists alerts and answers the dedup-window query.
type CHAlertStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHAlertStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHAlertStore {
	return &CHAlertStore{db: ch.DB(), database: database, l: l}
}

func (s *CHAlertStore) InsertAlerts(ctx context.Context, rows []models.Alert) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*8)
	for _, a := range rows {
		if a.Code == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, a.Ts, a.Code, a.Name, a.TotalHeat, a.ZScore, a.ChangePct, a.VolumeRatio, a.Message)
	}
	if len(values) == 0 {
		return nil
	}
	q := fmt.Sprintf("INSERT INTO %s.alerts (ts, code, name, total_heat, zscore, change_pct, volume_ratio, message) VALUES %s",
		s.database, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse insert_alerts error",
			applogger.Int("rows", len(rows)),
			applogger.Error(err),
		)
		return fmt.Errorf("insert alerts: %w", err)
	}
	return nil
}

// HasRecent reports whether code already alerted at or after since.
func (s *CHAlertStore) HasRecent(ctx context.Context, code string, since time.Time) (bool, error) {
	q := fmt.Sprintf("SELECT count() FROM %s.alerts WHERE code = ? AND ts >= ?", s.database)
	var n int
	if err := s.db.QueryRowContext(ctx, q, code, since).Scan(&n); err != nil {
		s.l.Error("clickhouse has_recent_alert error",
			applogger.String("code", code),
			applogger.Error(err),
		)
		return false, fmt.Errorf("has recent alert: %w", err)
	}
	return n > 0, nil
}

// List pages through alert history newest first and returns the total
// row count alongside the page.
func (s *CHAlertStore) List(ctx context.Context, offset, limit int) ([]models.Alert, int, error) {
	var total int
	cq := fmt.Sprintf("SELECT count() FROM %s.alerts", s.database)
	if err := s.db.QueryRowContext(ctx, cq).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("alert count: %w", err)
	}

	q := fmt.Sprintf(`
        SELECT ts, code, name, total_heat, zscore, change_pct, volume_ratio, message
        FROM %s.alerts
        ORDER BY ts DESC
        LIMIT ? OFFSET ?
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		s.l.Error("clickhouse list_alerts query error", applogger.Error(err))
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	out := make([]models.Alert, 0, limit)
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.Ts, &a.Code, &a.Name, &a.TotalHeat, &a.ZScore, &a.ChangePct, &a.VolumeRatio, &a.Message); err != nil {
			return nil, 0, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows: %w", err)
	}
	return out, total, nil
}
