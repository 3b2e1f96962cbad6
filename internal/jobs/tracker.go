package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"HeatPulse/internal/domain/models"
	domrepo "HeatPulse/internal/domain/repository"
	applogger "HeatPulse/pkg/logger"
	"HeatPulse/pkg/util"
)

var (
	ErrAlreadyRunning = errors.New("job already running")
	ErrUnknownJob     = errors.New("unknown job")
)

// maxLogMessage bounds the message stored per audit entry.
const maxLogMessage = 500

// Broadcaster pushes job events to live-update subscribers.
type Broadcaster interface {
	Broadcast(v interface{})
}

// JobFunc is one runnable job body. It reports progress through the
// callback and returns a short completion message.
type JobFunc func(ctx context.Context, progress func(string)) (string, error)

// Tracker owns the live job registry: at most one concurrent execution
// per job name, every transition broadcast, every completion appended
// to the audit trail. Registry state is process-lifetime only.
type Tracker struct {
	mu      sync.Mutex
	jobs    map[string]JobFunc
	running map[string]models.JobState

	logStore domrepo.JobLogStore
	bc       Broadcaster
	l        *applogger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTracker(logStore domrepo.JobLogStore, bc Broadcaster, l *applogger.Logger) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		jobs:     make(map[string]JobFunc),
		running:  make(map[string]models.JobState),
		logStore: logStore,
		bc:       bc,
		l:        l,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds a job body under name. Re-registering replaces it.
func (t *Tracker) Register(name string, fn JobFunc) {
	t.mu.Lock()
	t.jobs[name] = fn
	t.mu.Unlock()
}

// Trigger schedules name asynchronously and returns immediately.
// A job that is already running is rejected.
func (t *Tracker) Trigger(name string) error {
	t.mu.Lock()
	fn, ok := t.jobs[name]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if _, live := t.running[name]; live {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	t.running[name] = models.JobState{
		Status:    "running",
		StartedAt: time.Now(),
	}
	t.mu.Unlock()

	t.broadcastStatus()
	t.wg.Add(1)
	go t.run(name, fn)
	return nil
}

// Snapshot returns a copy of the live registry.
func (t *Tracker) Snapshot() map[string]models.JobState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]models.JobState, len(t.running))
	for k, v := range t.running {
		out[k] = v
	}
	return out
}

// Shutdown stops accepting work and waits for running jobs to finish.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.cancel()
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) run(name string, fn JobFunc) {
	defer t.wg.Done()
	start := time.Now()

	var msg string
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				t.l.Error("job panicked",
					applogger.String("job", name),
					applogger.Any("panic", r),
					applogger.String("stack", string(debug.Stack())),
				)
			}
		}()
		msg, err = fn(t.ctx, func(p string) { t.setProgress(name, p) })
	}()

	duration := time.Since(start)
	status := models.JobStatusOK
	if err != nil {
		status = models.JobStatusError
		msg = err.Error()
		t.l.Error("job failed",
			applogger.String("job", name),
			applogger.Duration("duration_ms", duration),
			applogger.Error(err),
		)
	} else {
		t.l.Info("job done",
			applogger.String("job", name),
			applogger.Duration("duration_ms", duration),
			applogger.String("message", msg),
		)
	}

	entry := models.JobLogEntry{
		JobName:  name,
		Status:   status,
		Message:  util.Truncate(msg, maxLogMessage),
		Duration: duration,
		Ts:       time.Now(),
	}
	logCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if aerr := t.logStore.Append(logCtx, entry); aerr != nil {
		t.l.Error("job log append failed",
			applogger.String("job", name),
			applogger.Error(aerr),
		)
	}
	cancel()

	t.mu.Lock()
	delete(t.running, name)
	t.mu.Unlock()

	t.bc.Broadcast(models.JobDoneEvent{
		Type:     "job_done",
		Job:      name,
		Status:   status,
		Duration: duration.Seconds(),
		Message:  entry.Message,
		Jobs:     t.Snapshot(),
	})
}

func (t *Tracker) setProgress(name, p string) {
	t.mu.Lock()
	if st, ok := t.running[name]; ok {
		st.Progress = p
		t.running[name] = st
	}
	t.mu.Unlock()
	t.broadcastStatus()
}

func (t *Tracker) broadcastStatus() {
	t.bc.Broadcast(models.JobStatusEvent{
		Type: "job_status",
		Jobs: t.Snapshot(),
	})
}
