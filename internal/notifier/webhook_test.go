package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"HeatPulse/internal/domain/models"
	xhttp "HeatPulse/pkg/http"
	applogger "HeatPulse/pkg/logger"
)

type fakeAlertStore struct {
	mu       sync.Mutex
	inserted []models.Alert
	recent   map[string]bool
}

func (f *fakeAlertStore) InsertAlerts(_ context.Context, rows []models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, rows...)
	return nil
}

func (f *fakeAlertStore) HasRecent(_ context.Context, code string, _ time.Time) (bool, error) {
	return f.recent[code], nil
}

func (f *fakeAlertStore) List(context.Context, int, int) ([]models.Alert, int, error) {
	return nil, 0, nil
}

type nopBus struct{}

func (nopBus) PublishAlerts(context.Context, []models.Alert) error { return nil }
func (nopBus) Close() error                                        { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordScan(string)           {}
func (nopMetrics) RecordStage(string, float64) {}
func (nopMetrics) RecordAnomalies(int)         {}
func (nopMetrics) RecordAlerts(string, int)    {}
func (nopMetrics) RecordError(string)          {}
func (nopMetrics) RecordInstruments(int)       {}
func (nopMetrics) RecordWSClients(int)         {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func anomaly(code, name string) models.Anomaly {
	return models.Anomaly{
		Code: code, Name: name,
		TotalHeat: 0.42, ZScore: 3.1, ChangePct: 5.2, VolumeRatio: 2.4,
		Type: models.AnomalyTypeZScore,
	}
}

func TestNotifyDedupsWithinWindow(t *testing.T) {
	store := &fakeAlertStore{recent: map[string]bool{"600519": true}}
	n := New(Config{DedupWindow: 30 * time.Minute}, store, nopBus{}, xhttp.NewClient(), nopMetrics{}, testLogger(t))

	alerts, err := n.Notify(context.Background(), []models.Anomaly{
		anomaly("600519", "Kweichow"),
		anomaly("300750", "CATL"),
	}, time.Now())
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Code != "300750" {
		t.Fatalf("expected only the fresh code to survive, got %+v", alerts)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected 1 persisted alert, got %d", len(store.inserted))
	}
}

func TestNotifyAllDeduped(t *testing.T) {
	store := &fakeAlertStore{recent: map[string]bool{"600519": true}}
	n := New(Config{DedupWindow: 30 * time.Minute}, store, nopBus{}, xhttp.NewClient(), nopMetrics{}, testLogger(t))

	alerts, err := n.Notify(context.Background(), []models.Anomaly{anomaly("600519", "Kweichow")}, time.Now())
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if alerts != nil {
		t.Fatalf("expected no alerts, got %+v", alerts)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("deduped batch must not persist, got %d", len(store.inserted))
	}
}

func TestNotifyFeishuPayload(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
	}))
	defer srv.Close()

	store := &fakeAlertStore{recent: map[string]bool{}}
	n := New(Config{
		WebhookType: "feishu",
		WebhookURL:  srv.URL,
		DedupWindow: 30 * time.Minute,
	}, store, nopBus{}, xhttp.NewClient(), nopMetrics{}, testLogger(t))

	if _, err := n.Notify(context.Background(), []models.Anomaly{anomaly("600519", "Kweichow")}, time.Now()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if payload["msg_type"] != "text" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	content, ok := payload["content"].(map[string]interface{})
	if !ok || !strings.Contains(content["text"].(string), "600519") {
		t.Fatalf("digest missing code: %v", payload)
	}
}

func TestNotifyWebhookFailureDoesNotFailScan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := &fakeAlertStore{recent: map[string]bool{}}
	n := New(Config{
		WebhookType: "dingtalk",
		WebhookURL:  srv.URL,
		DedupWindow: 30 * time.Minute,
	}, store, nopBus{}, xhttp.NewClient(), nopMetrics{}, testLogger(t))

	alerts, err := n.Notify(context.Background(), []models.Anomaly{anomaly("600519", "Kweichow")}, time.Now())
	if err != nil {
		t.Fatalf("webhook failure must not surface: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alert must still persist, got %d", len(alerts))
	}
}

func TestFormatDigestCapsAtTen(t *testing.T) {
	alerts := make([]models.Alert, 15)
	for i := range alerts {
		alerts[i] = models.Alert{Code: "000001", Name: "X", TotalHeat: 0.1}
	}
	text := FormatDigest(alerts)
	if got := strings.Count(text, "\n"); got != digestLimit {
		t.Fatalf("expected %d lines, got %d", digestLimit, got)
	}
}
