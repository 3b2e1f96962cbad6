package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"HeatPulse/internal/domain/models"
	applogger "HeatPulse/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

type nopMetrics struct{}

func (nopMetrics) RecordScan(string)           {}
func (nopMetrics) RecordStage(string, float64) {}
func (nopMetrics) RecordAnomalies(int)         {}
func (nopMetrics) RecordAlerts(string, int)    {}
func (nopMetrics) RecordError(string)          {}
func (nopMetrics) RecordInstruments(int)       {}
func (nopMetrics) RecordWSClients(int)         {}

type fakeQuotes struct {
	rows []models.TradeSnapshot
	err  error
}

func (f *fakeQuotes) Quotes(context.Context) ([]models.TradeSnapshot, error) {
	return f.rows, f.err
}

type fakeSentiment struct {
	name string
	rows []models.SentimentSnapshot
	err  error

	mu        sync.Mutex
	gotCodes  []string
	callCount int
}

func (f *fakeSentiment) Name() string { return f.name }

func (f *fakeSentiment) Collect(_ context.Context, codes []string) ([]models.SentimentSnapshot, error) {
	f.mu.Lock()
	f.gotCodes = codes
	f.callCount++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type memSnapshotStore struct {
	mu         sync.Mutex
	trades     []models.TradeSnapshot
	sentiments []models.SentimentSnapshot
	insertErr  error
}

func (m *memSnapshotStore) InsertTrades(_ context.Context, rows []models.TradeSnapshot) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, rows...)
	return nil
}

func (m *memSnapshotStore) InsertSentiments(_ context.Context, rows []models.SentimentSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentiments = append(m.sentiments, rows...)
	return nil
}

func (m *memSnapshotStore) RecentSentiments(_ context.Context, codes []string, since time.Time) ([]models.SentimentSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	var out []models.SentimentSnapshot
	for _, s := range m.sentiments {
		if want[s.Code] && !s.Ts.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

type memHeatStore struct {
	mu          sync.Mutex
	batches     [][]models.HeatScore
	histories   map[string][]models.DailyHeat
	historyErrs map[string]error
	amended     map[string]float64
}

func newMemHeatStore() *memHeatStore {
	return &memHeatStore{
		histories:   make(map[string][]models.DailyHeat),
		historyErrs: make(map[string]error),
		amended:     make(map[string]float64),
	}
}

func (m *memHeatStore) InsertScores(_ context.Context, rows []models.HeatScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, rows)
	return nil
}

func (m *memHeatStore) DailyHistory(_ context.Context, code string, limit int) ([]models.DailyHeat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.historyErrs[code]; err != nil {
		return nil, err
	}
	h := m.histories[code]
	if len(h) > limit {
		h = h[:limit]
	}
	return h, nil
}

func (m *memHeatStore) AmendLatestZScore(_ context.Context, code string, zscore float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.amended[code] = zscore
	return nil
}

func (m *memHeatStore) LatestBatchTs(context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.batches) == 0 {
		return time.Time{}, nil
	}
	last := m.batches[len(m.batches)-1]
	if len(last) == 0 {
		return time.Time{}, nil
	}
	return last[0].Ts, nil
}

func (m *memHeatStore) BatchScores(_ context.Context, ts time.Time, offset, limit int) ([]models.HeatScore, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (m *memHeatStore) Trend(context.Context, string, time.Time) ([]models.HeatScore, error) {
	return nil, nil
}

type memAlertStore struct {
	mu       sync.Mutex
	inserted []models.Alert
	recent   map[string]bool
}

func (m *memAlertStore) InsertAlerts(_ context.Context, rows []models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, rows...)
	return nil
}

func (m *memAlertStore) HasRecent(_ context.Context, code string, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recent[code], nil
}

func (m *memAlertStore) List(context.Context, int, int) ([]models.Alert, int, error) {
	return nil, 0, nil
}

type nopBus struct{}

func (nopBus) PublishAlerts(context.Context, []models.Alert) error { return nil }
func (nopBus) Close() error                                        { return nil }

type memBroadcaster struct {
	mu     sync.Mutex
	events []interface{}
}

func (m *memBroadcaster) Broadcast(v interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, v)
}

func (m *memBroadcaster) updates() []models.UpdateEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UpdateEvent
	for _, e := range m.events {
		if u, ok := e.(models.UpdateEvent); ok {
			out = append(out, u)
		}
	}
	return out
}
