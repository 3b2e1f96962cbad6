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

// insertChunkSize bounds the number of rows per multi-row INSERT.
const insertChunkSize = 2000

// CHSnapshotStore persists raw collector output in ClickHouse.
type CHSnapshotStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHSnapshotStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHSnapshotStore {
	return &CHSnapshotStore{db: ch.DB(), database: database, l: l}
}

func (s *CHSnapshotStore) InsertTrades(ctx context.Context, rows []models.TradeSnapshot) error {
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
		args := make([]interface{}, 0, (hi-lo)*9)
		for _, r := range rows[lo:hi] {
			if r.Code == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, r.Ts, r.Code, r.Name, r.Price, r.ChangePct,
				r.Volume, r.Amount, r.TurnoverRate, r.VolumeRatio)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s.trade_snapshots (ts, code, name, price, change_pct, volume, amount, turnover_rate, volume_ratio) VALUES %s",
			s.database, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert_trades error",
				applogger.Int("rows", hi-lo),
				applogger.Error(err),
			)
			return fmt.Errorf("insert trades: %w", err)
		}
	}
	s.l.Debug("clickhouse insert_trades ok",
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHSnapshotStore) InsertSentiments(ctx context.Context, rows []models.SentimentSnapshot) error {
	if len(rows) == 0 {
		return nil
	}
	for lo := 0; lo < len(rows); lo += insertChunkSize {
		hi := lo + insertChunkSize
		if hi > len(rows) {
			hi = len(rows)
		}
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*5)
		for _, r := range rows[lo:hi] {
			if r.Code == "" || r.Source == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, r.Ts, r.Code, r.Source, uint32(r.PostCount), uint32(r.CommentCount))
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s.sentiment_snapshots (ts, code, source, post_count, comment_count) VALUES %s",
			s.database, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert_sentiments error",
				applogger.Int("rows", hi-lo),
				applogger.Error(err),
			)
			return fmt.Errorf("insert sentiments: %w", err)
		}
	}
	return nil
}

// RecentSentiments returns all sentiment rows for codes observed at or
// after since, across every source.
func (s *CHSnapshotStore) RecentSentiments(ctx context.Context, codes []string, since time.Time) ([]models.SentimentSnapshot, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	ph := make([]string, len(codes))
	args := make([]interface{}, 0, len(codes)+1)
	args = append(args, since)
	for i, c := range codes {
		ph[i] = "?"
		args = append(args, c)
	}
	q := fmt.Sprintf(`
        SELECT ts, code, source, post_count, comment_count
        FROM %s.sentiment_snapshots
        WHERE ts >= ? AND code IN (%s)
        ORDER BY ts ASC
    `, s.database, strings.Join(ph, ","))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse recent_sentiments query error",
			applogger.Int("codes", len(codes)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("recent sentiments: %w", err)
	}
	defer rows.Close()

	out := make([]models.SentimentSnapshot, 0, len(codes))
	for rows.Next() {
		var r models.SentimentSnapshot
		var posts, comments uint32
		if err := rows.Scan(&r.Ts, &r.Code, &r.Source, &posts, &comments); err != nil {
			return nil, fmt.Errorf("scan sentiment: %w", err)
		}
		r.PostCount = int(posts)
		r.CommentCount = int(comments)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
