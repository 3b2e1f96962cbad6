package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"HeatPulse/internal/domain/models"
	applogger "HeatPulse/pkg/logger"
)

type memLogStore struct {
	mu      sync.Mutex
	entries []models.JobLogEntry
}

func (m *memLogStore) Append(_ context.Context, e models.JobLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memLogStore) Recent(context.Context, int) ([]models.JobLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.JobLogEntry(nil), m.entries...), nil
}

func (m *memLogStore) last(t *testing.T) models.JobLogEntry {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		t.Fatal("no job log entries")
	}
	return m.entries[len(m.entries)-1]
}

type memBroadcaster struct {
	mu     sync.Mutex
	events []interface{}
}

func (m *memBroadcaster) Broadcast(v interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, v)
}

func (m *memBroadcaster) doneEvents() []models.JobDoneEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JobDoneEvent
	for _, e := range m.events {
		if d, ok := e.(models.JobDoneEvent); ok {
			out = append(out, d)
		}
	}
	return out
}

func newTestTracker(t *testing.T) (*Tracker, *memLogStore, *memBroadcaster) {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	store := &memLogStore{}
	bc := &memBroadcaster{}
	return NewTracker(store, bc, l), store, bc
}

func waitIdle(t *testing.T, tr *Tracker, name string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, live := tr.Snapshot()[name]; !live {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s never finished", name)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTriggerUnknownJob(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	if err := tr.Trigger("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}

func TestConcurrencyGuard(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	release := make(chan struct{})
	tr.Register("scan", func(ctx context.Context, progress func(string)) (string, error) {
		<-release
		return "done", nil
	})

	if err := tr.Trigger("scan"); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if err := tr.Trigger("scan"); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	close(release)
	waitIdle(t, tr, "scan")

	// completed job can be triggered again
	release2 := make(chan struct{})
	tr.Register("scan", func(ctx context.Context, progress func(string)) (string, error) {
		close(release2)
		return "again", nil
	})
	if err := tr.Trigger("scan"); err != nil {
		t.Fatalf("retrigger after completion: %v", err)
	}
	<-release2
	waitIdle(t, tr, "scan")
}

func TestJobSuccessRecorded(t *testing.T) {
	tr, store, bc := newTestTracker(t)
	tr.Register("scan", func(ctx context.Context, progress func(string)) (string, error) {
		progress("1/3 collect")
		return "scanned 100 instruments", nil
	})
	if err := tr.Trigger("scan"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	waitIdle(t, tr, "scan")

	entry := store.last(t)
	if entry.Status != models.JobStatusOK || entry.Message != "scanned 100 instruments" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	done := bc.doneEvents()
	if len(done) != 1 || done[0].Status != models.JobStatusOK || done[0].Job != "scan" {
		t.Fatalf("unexpected done events: %+v", done)
	}
	if len(done[0].Jobs) != 0 {
		t.Fatalf("registry must be empty after completion: %+v", done[0].Jobs)
	}
}

func TestJobErrorRecorded(t *testing.T) {
	tr, store, _ := newTestTracker(t)
	tr.Register("scan", func(ctx context.Context, progress func(string)) (string, error) {
		return "", errors.New("quote source down")
	})
	if err := tr.Trigger("scan"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	waitIdle(t, tr, "scan")

	entry := store.last(t)
	if entry.Status != models.JobStatusError || entry.Message != "quote source down" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestJobPanicBecomesError(t *testing.T) {
	tr, store, _ := newTestTracker(t)
	tr.Register("scan", func(ctx context.Context, progress func(string)) (string, error) {
		panic("boom")
	})
	if err := tr.Trigger("scan"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	waitIdle(t, tr, "scan")

	entry := store.last(t)
	if entry.Status != models.JobStatusError || !strings.Contains(entry.Message, "boom") {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if _, live := tr.Snapshot()["scan"]; live {
		t.Fatal("panicked job must leave the registry")
	}
}

func TestLongMessageTruncated(t *testing.T) {
	tr, store, _ := newTestTracker(t)
	tr.Register("scan", func(ctx context.Context, progress func(string)) (string, error) {
		return strings.Repeat("x", 2*maxLogMessage), nil
	})
	if err := tr.Trigger("scan"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	waitIdle(t, tr, "scan")

	entry := store.last(t)
	if len(entry.Message) > maxLogMessage+3 {
		t.Fatalf("message not truncated: %d chars", len(entry.Message))
	}
}

func TestProgressVisibleInSnapshot(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	reached := make(chan struct{})
	release := make(chan struct{})
	tr.Register("scan", func(ctx context.Context, progress func(string)) (string, error) {
		progress("2/7 calc heat")
		close(reached)
		<-release
		return "", nil
	})
	if err := tr.Trigger("scan"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	<-reached
	st, live := tr.Snapshot()["scan"]
	if !live || st.Progress != "2/7 calc heat" {
		t.Fatalf("unexpected state: %+v live=%v", st, live)
	}
	close(release)
	waitIdle(t, tr, "scan")
}
