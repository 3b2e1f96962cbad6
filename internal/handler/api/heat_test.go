package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	models "HeatPulse/internal/domain/models"
	"HeatPulse/internal/hub"
	"HeatPulse/internal/jobs"
	xlogger "HeatPulse/pkg/logger"
)

type stubHeatStore struct {
	batchTs time.Time
	scores  []models.HeatScore
	trend   []models.HeatScore
}

func (s *stubHeatStore) InsertScores(context.Context, []models.HeatScore) error { return nil }
func (s *stubHeatStore) DailyHistory(context.Context, string, int) ([]models.DailyHeat, error) {
	return nil, nil
}
func (s *stubHeatStore) AmendLatestZScore(context.Context, string, float64) error { return nil }
func (s *stubHeatStore) LatestBatchTs(context.Context) (time.Time, error) {
	return s.batchTs, nil
}
func (s *stubHeatStore) BatchScores(_ context.Context, _ time.Time, offset, limit int) ([]models.HeatScore, int, error) {
	if offset >= len(s.scores) {
		return nil, len(s.scores), nil
	}
	end := offset + limit
	if end > len(s.scores) {
		end = len(s.scores)
	}
	return s.scores[offset:end], len(s.scores), nil
}
func (s *stubHeatStore) Trend(context.Context, string, time.Time) ([]models.HeatScore, error) {
	return s.trend, nil
}

type stubAlertStore struct{}

func (stubAlertStore) InsertAlerts(context.Context, []models.Alert) error { return nil }
func (stubAlertStore) HasRecent(context.Context, string, time.Time) (bool, error) {
	return false, nil
}
func (stubAlertStore) List(context.Context, int, int) ([]models.Alert, int, error) {
	return []models.Alert{{Code: "600519"}}, 1, nil
}

type stubJobLogStore struct{}

func (stubJobLogStore) Append(context.Context, models.JobLogEntry) error { return nil }
func (stubJobLogStore) Recent(context.Context, int) ([]models.JobLogEntry, error) {
	return nil, nil
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(interface{}) {}

type nopMetrics struct{}

func (nopMetrics) RecordScan(string)           {}
func (nopMetrics) RecordStage(string, float64) {}
func (nopMetrics) RecordAnomalies(int)         {}
func (nopMetrics) RecordAlerts(string, int)    {}
func (nopMetrics) RecordError(string)          {}
func (nopMetrics) RecordInstruments(int)       {}
func (nopMetrics) RecordWSClients(int)         {}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestHandler(t *testing.T, heat *stubHeatStore) (*echo.Echo, *HeatHandler, *jobs.Tracker) {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	tracker := jobs.NewTracker(stubJobLogStore{}, nopBroadcaster{}, l)
	h := NewHeatHandler(heat, stubAlertStore{}, stubJobLogStore{}, tracker,
		hub.New(l, nopMetrics{}), nil, "secret", l)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, h, tracker
}

func do(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func login(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec := do(e, http.MethodPost, "/api/auth", `{"password":"secret"}`, "")
	env := decode(t, rec)
	if env.Status != http.StatusOK {
		t.Fatalf("login failed: %+v", env)
	}
	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("token decode: %v", err)
	}
	if data["token"] == "" {
		t.Fatal("empty token")
	}
	return data["token"]
}

func TestAuthWrongPassword(t *testing.T) {
	e, _, _ := newTestHandler(t, &stubHeatStore{})
	env := decode(t, do(e, http.MethodPost, "/api/auth", `{"password":"nope"}`, ""))
	if env.Status != http.StatusForbidden {
		t.Fatalf("expected 403 envelope, got %+v", env)
	}
}

func TestAuthMissingPassword(t *testing.T) {
	e, _, _ := newTestHandler(t, &stubHeatStore{})
	env := decode(t, do(e, http.MethodPost, "/api/auth", `{}`, ""))
	if env.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 envelope, got %+v", env)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	e, _, _ := newTestHandler(t, &stubHeatStore{})
	env := decode(t, do(e, http.MethodGet, "/api/heat/ranking", "", ""))
	if env.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 envelope, got %+v", env)
	}
	env = decode(t, do(e, http.MethodGet, "/api/heat/ranking", "", "bogus"))
	if env.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %+v", env)
	}
}

func TestRankingEmptyStore(t *testing.T) {
	e, _, _ := newTestHandler(t, &stubHeatStore{})
	token := login(t, e)
	env := decode(t, do(e, http.MethodGet, "/api/heat/ranking", "", token))
	if env.Status != http.StatusOK {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	var page rankingPage
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("page decode: %v", err)
	}
	if page.Total != 0 || len(page.Items) != 0 {
		t.Fatalf("expected empty page, got %+v", page)
	}
}

func TestRankingPagination(t *testing.T) {
	store := &stubHeatStore{batchTs: time.Now()}
	for i := 0; i < 5; i++ {
		store.scores = append(store.scores, models.HeatScore{Code: string(rune('A' + i))})
	}
	e, _, _ := newTestHandler(t, store)
	token := login(t, e)

	env := decode(t, do(e, http.MethodGet, "/api/heat/ranking?page=2&size=2", "", token))
	var page rankingPage
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("page decode: %v", err)
	}
	if page.Total != 5 || len(page.Items) != 2 || page.Items[0].Code != "C" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestTriggerUnknownJob(t *testing.T) {
	e, _, _ := newTestHandler(t, &stubHeatStore{})
	token := login(t, e)
	env := decode(t, do(e, http.MethodPost, "/api/job/trigger", `{"job":"nope"}`, token))
	if env.Status != http.StatusNotFound {
		t.Fatalf("expected 404 envelope, got %+v", env)
	}
}

func TestTriggerConflictWhileRunning(t *testing.T) {
	e, _, tracker := newTestHandler(t, &stubHeatStore{})
	token := login(t, e)

	release := make(chan struct{})
	tracker.Register("scan", func(ctx context.Context, progress func(string)) (string, error) {
		<-release
		return "", nil
	})

	env := decode(t, do(e, http.MethodPost, "/api/job/trigger", `{"job":"scan"}`, token))
	if env.Status != http.StatusOK {
		t.Fatalf("first trigger: %+v", env)
	}
	env = decode(t, do(e, http.MethodPost, "/api/job/trigger", `{"job":"scan"}`, token))
	if env.Status != http.StatusConflict {
		t.Fatalf("expected 409 envelope, got %+v", env)
	}
	close(release)
}

func TestTriggerDefaultsToScan(t *testing.T) {
	e, _, tracker := newTestHandler(t, &stubHeatStore{})
	token := login(t, e)
	ran := make(chan struct{})
	tracker.Register("scan", func(ctx context.Context, progress func(string)) (string, error) {
		close(ran)
		return "", nil
	})

	env := decode(t, do(e, http.MethodPost, "/api/job/trigger", `{}`, token))
	if env.Status != http.StatusOK {
		t.Fatalf("trigger: %+v", env)
	}
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("default job never ran")
	}
}

func TestAlertsList(t *testing.T) {
	e, _, _ := newTestHandler(t, &stubHeatStore{})
	token := login(t, e)
	env := decode(t, do(e, http.MethodGet, "/api/alerts", "", token))
	if env.Status != http.StatusOK {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	var page alertPage
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("page decode: %v", err)
	}
	if page.Total != 1 || page.Items[0].Code != "600519" {
		t.Fatalf("unexpected page: %+v", page)
	}
}
