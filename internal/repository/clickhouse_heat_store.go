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

// CHHeatStore persists and queries composite heat scores in ClickHouse.
type CHHeatStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHHeatStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHHeatStore {
	return &CHHeatStore{db: ch.DB(), database: database, l: l}
}

func (s *CHHeatStore) InsertScores(ctx context.Context, rows []models.HeatScore) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	for lo := 0; lo < len(rows); lo += insertChunkSize {
		hi := lo + insertChunkSize
		if hi > len(rows) {
			hi = len(rows)
		}
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*7)
		for _, r := range rows[lo:hi] {
			if r.Code == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, r.Ts, r.Code, r.Name, r.TradeHeat, r.SentimentHeat, r.TotalHeat, r.ZScore)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s.heat_scores (ts, code, name, trade_heat, sentiment_heat, total_heat, zscore) VALUES %s",
			s.database, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert_scores error",
				applogger.Int("rows", hi-lo),
				applogger.Error(err),
			)
			return fmt.Errorf("insert scores: %w", err)
		}
	}
	s.l.Debug("clickhouse insert_scores ok",
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// DailyHistory returns at most limit daily points for code, most recent
// day first. Each point is the latest record of its calendar day, so
// intraday rescans never inflate the baseline.
func (s *CHHeatStore) DailyHistory(ctx context.Context, code string, limit int) ([]models.DailyHeat, error) {
	q := fmt.Sprintf(`
        SELECT toDate(ts) AS day,
               argMax(trade_heat, ts) AS trade_heat,
               argMax(total_heat, ts) AS total_heat
        FROM %s.heat_scores
        WHERE code = ?
        GROUP BY day
        ORDER BY day DESC
        LIMIT ?
    `, s.database)

	rows, err := s.db.QueryContext(ctx, q, code, limit)
	if err != nil {
		s.l.Error("clickhouse daily_history query error",
			applogger.String("code", code),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("daily history: %w", err)
	}
	defer rows.Close()

	out := make([]models.DailyHeat, 0, limit)
	for rows.Next() {
		var d models.DailyHeat
		if err := rows.Scan(&d.Day, &d.TradeHeat, &d.TotalHeat); err != nil {
			return nil, fmt.Errorf("scan daily heat: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// AmendLatestZScore overwrites zscore on the most recent row for code.
// ClickHouse mutations apply asynchronously; readers may briefly see the
// pre-amend value.
func (s *CHHeatStore) AmendLatestZScore(ctx context.Context, code string, zscore float64) error {
	q := fmt.Sprintf(`
        ALTER TABLE %s.heat_scores
        UPDATE zscore = ?
        WHERE code = ? AND ts = (SELECT max(ts) FROM %s.heat_scores WHERE code = ?)
    `, s.database, s.database)
	if _, err := s.db.ExecContext(ctx, q, zscore, code, code); err != nil {
		s.l.Error("clickhouse amend_zscore error",
			applogger.String("code", code),
			applogger.Error(err),
		)
		return fmt.Errorf("amend zscore: %w", err)
	}
	return nil
}

// LatestBatchTs returns the timestamp of the most recent scan batch, or
// the zero time when no scores exist yet.
func (s *CHHeatStore) LatestBatchTs(ctx context.Context) (time.Time, error) {
	q := fmt.Sprintf("SELECT max(ts) FROM %s.heat_scores", s.database)
	var ts time.Time
	if err := s.db.QueryRowContext(ctx, q).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("latest batch ts: %w", err)
	}
	return ts, nil
}

// BatchScores pages through one scan batch ordered by total heat
// descending and returns the batch's full row count alongside the page.
func (s *CHHeatStore) BatchScores(ctx context.Context, ts time.Time, offset, limit int) ([]models.HeatScore, int, error) {
	var total int
	cq := fmt.Sprintf("SELECT count() FROM %s.heat_scores WHERE ts = ?", s.database)
	if err := s.db.QueryRowContext(ctx, cq, ts).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("batch count: %w", err)
	}

	q := fmt.Sprintf(`
        SELECT ts, code, name, trade_heat, sentiment_heat, total_heat, zscore
        FROM %s.heat_scores
        WHERE ts = ?
        ORDER BY total_heat DESC, code ASC
        LIMIT ? OFFSET ?
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, ts, limit, offset)
	if err != nil {
		s.l.Error("clickhouse batch_scores query error", applogger.Error(err))
		return nil, 0, fmt.Errorf("batch scores: %w", err)
	}
	defer rows.Close()

	out := make([]models.HeatScore, 0, limit)
	for rows.Next() {
		var h models.HeatScore
		if err := rows.Scan(&h.Ts, &h.Code, &h.Name, &h.TradeHeat, &h.SentimentHeat, &h.TotalHeat, &h.ZScore); err != nil {
			return nil, 0, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows: %w", err)
	}
	return out, total, nil
}

// Trend returns every score row for code since the given time, oldest
// first, for the per-instrument trend endpoint.
func (s *CHHeatStore) Trend(ctx context.Context, code string, since time.Time) ([]models.HeatScore, error) {
	q := fmt.Sprintf(`
        SELECT ts, code, name, trade_heat, sentiment_heat, total_heat, zscore
        FROM %s.heat_scores
        WHERE code = ? AND ts >= ?
        ORDER BY ts ASC
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, code, since)
	if err != nil {
		s.l.Error("clickhouse trend query error",
			applogger.String("code", code),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("trend: %w", err)
	}
	defer rows.Close()

	var out []models.HeatScore
	for rows.Next() {
		var h models.HeatScore
		if err := rows.Scan(&h.Ts, &h.Code, &h.Name, &h.TradeHeat, &h.SentimentHeat, &h.TotalHeat, &h.ZScore); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
