package monitor

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"uptimeledger/internal/history"
	"uptimeledger/internal/ledger"
	"uptimeledger/internal/logger"
	"uptimeledger/internal/models"
	"uptimeledger/internal/snapshot"
	"uptimeledger/internal/storage"
)

var testServices = []models.ServiceDescriptor{
	{Name: "serviceA", URL: "https://a.example", Method: models.MethodHead},
	{Name: "serviceB", URL: "https://b.example", Method: models.MethodGet},
}

type fakeChecker struct {
	mu      sync.Mutex
	results map[string]models.ProbeOutcome
}

func (f *fakeChecker) set(aUp, bUp bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = map[string]models.ProbeOutcome{
		"serviceA": {Up: aUp, LatencyMs: models.Latency(40)},
		"serviceB": {Up: bUp, LatencyMs: models.Latency(60)},
	}
}

func (f *fakeChecker) ProbeAll(context.Context, []models.ServiceDescriptor) map[string]models.ProbeOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.ProbeOutcome, len(f.results))
	for k, v := range f.results {
		out[k] = v
	}
	return out
}

// scriptedStore wraps a store and lets tests inject failures or pause after reads.
type scriptedStore struct {
	storage.Store
	readErr   error
	writeErr  error
	afterRead func()

	mu     sync.Mutex
	writes int
}

func (s *scriptedStore) Read(ctx context.Context) (*storage.Document, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	doc, err := s.Store.Read(ctx)
	if s.afterRead != nil {
		s.afterRead()
	}
	return doc, err
}

func (s *scriptedStore) Write(ctx context.Context, data []byte, pre storage.Precondition) (string, error) {
	if s.writeErr != nil {
		return "", s.writeErr
	}
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return s.Store.Write(ctx, data, pre)
}

func newFileStore(t *testing.T) *storage.FileStore {
	t.Helper()
	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "uptime.json"))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func readLedger(t *testing.T, store storage.Store) *models.Ledger {
	t.Helper()
	doc, err := store.Read(context.Background())
	if err != nil || doc == nil {
		t.Fatalf("read stored ledger: %+v %v", doc, err)
	}
	l, err := ledger.Decode(doc.Data)
	if err != nil {
		t.Fatalf("decode stored ledger: %v", err)
	}
	return l
}

func TestRunOnceIncidentLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	checker := &fakeChecker{}
	holder := &snapshot.Holder{}
	var logs bytes.Buffer
	runner := NewRunner(checker, store, RunnerOptions{
		Retention: history.NewRetention(30),
		Publisher: holder,
		Logger:    logger.New(&logs, logger.Config{Level: "info", Format: "json"}),
	})

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	checker.set(false, true)
	first, err := runner.RunOnce(ctx, testServices, t0)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	wantStart := t0.Truncate(time.Millisecond)
	if len(first.Incidents) != 1 || !first.Incidents[0].Open() || !first.Incidents[0].StartTime.Equal(wantStart) {
		t.Fatalf("expected one open incident at %v, got %+v", wantStart, first.Incidents)
	}

	t1 := t0.Add(15 * time.Minute)
	checker.set(true, true)
	second, err := runner.RunOnce(ctx, testServices, t1)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second.Incidents) != 1 || !second.Incidents[0].Resolved {
		t.Fatalf("expected the incident to be resolved, got %+v", second.Incidents)
	}
	if got := *second.Incidents[0].DurationMs; got != (15 * time.Minute).Milliseconds() {
		t.Fatalf("duration = %d", got)
	}

	stored := readLedger(t, store)
	if len(stored.Checks) != 2 || !stored.MonitoringSince.Equal(wantStart) {
		t.Fatalf("unexpected stored ledger: %d checks since %v", len(stored.Checks), stored.MonitoringSince)
	}
	if stat := stored.Services["serviceA"]; stat.UptimePercent != 50 || stat.Status != models.StatusUp {
		t.Fatalf("unexpected stats %+v", stat)
	}

	published, ok := holder.Get()
	if !ok || !published.LastCheck.Equal(t1.Truncate(time.Millisecond)) {
		t.Fatalf("holder should carry the last written ledger, got %v %v", ok, published.LastCheck)
	}
	for _, want := range []string{`"run_id"`, `"incident opened"`, `"incident resolved"`, `"ledger written"`} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("logs missing %s", want)
		}
	}
}

func TestRunOnceReadFailureWritesNothing(t *testing.T) {
	store := &scriptedStore{Store: newFileStore(t), readErr: errors.New("network down")}
	checker := &fakeChecker{}
	checker.set(true, true)
	holder := &snapshot.Holder{}
	runner := NewRunner(checker, store, RunnerOptions{Publisher: holder, Logger: logger.Discard()})

	_, err := runner.RunOnce(context.Background(), testServices, time.Now())
	if err == nil || !strings.Contains(err.Error(), "read ledger") {
		t.Fatalf("expected read failure, got %v", err)
	}
	if store.writes != 0 {
		t.Fatalf("nothing may be written after a failed read, got %d writes", store.writes)
	}
	if _, ok := holder.Get(); ok {
		t.Fatal("nothing may be published after a failed read")
	}
}

func TestRunOnceWriteFailure(t *testing.T) {
	store := &scriptedStore{Store: newFileStore(t), writeErr: errors.New("http 502")}
	checker := &fakeChecker{}
	checker.set(true, true)
	holder := &snapshot.Holder{}
	runner := NewRunner(checker, store, RunnerOptions{Publisher: holder, Logger: logger.Discard()})

	_, err := runner.RunOnce(context.Background(), testServices, time.Now())
	if err == nil || !strings.Contains(err.Error(), "write ledger") {
		t.Fatalf("expected write failure, got %v", err)
	}
	if _, ok := holder.Get(); ok {
		t.Fatal("failed write must not be published")
	}
}

func TestRunOnceReplacesMalformedDocument(t *testing.T) {
	ctx := context.Background()
	inner := newFileStore(t)
	if _, err := inner.Write(ctx, []byte(`{"monitoringSince":"2020-01-01T00:00:00Z"}`), storage.Precondition{}); err != nil {
		t.Fatal(err)
	}
	checker := &fakeChecker{}
	checker.set(true, false)
	runner := NewRunner(checker, inner, RunnerOptions{Logger: logger.Discard()})

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if _, err := runner.RunOnce(ctx, testServices, now); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	stored := readLedger(t, inner)
	if !stored.MonitoringSince.Equal(now) || len(stored.Checks) != 1 {
		t.Fatalf("malformed document should be replaced by a fresh ledger, got %+v", stored)
	}
}

// runConcurrently starts two runs that both read before either writes.
func runConcurrently(t *testing.T, detect bool) (*storage.FileStore, []error) {
	t.Helper()
	ctx := context.Background()
	inner := newFileStore(t)
	checker := &fakeChecker{}
	checker.set(true, true)

	seed := NewRunner(checker, inner, RunnerOptions{Logger: logger.Discard()})
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if _, err := seed.RunOnce(ctx, testServices, base); err != nil {
		t.Fatal(err)
	}

	var barrier sync.WaitGroup
	barrier.Add(2)
	store := &scriptedStore{Store: inner, afterRead: func() {
		barrier.Done()
		barrier.Wait()
	}}
	runner := NewRunner(checker, store, RunnerOptions{
		DetectConflicts: detect,
		Logger:          logger.Discard(),
	})

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = runner.RunOnce(ctx, testServices, base.Add(time.Duration(i+1)*time.Minute))
		}()
	}
	wg.Wait()
	return inner, errs
}

func TestConcurrentRunsLoseAnUpdate(t *testing.T) {
	store, errs := runConcurrently(t, false)
	for _, err := range errs {
		if err != nil {
			t.Fatalf("unconditional runs should both succeed: %v", err)
		}
	}
	if got := len(readLedger(t, store).Checks); got != 2 {
		t.Fatalf("last write wins: expected 2 checks, got %d", got)
	}
}

func TestConcurrentRunsDetectConflict(t *testing.T) {
	store, errs := runConcurrently(t, true)
	conflicts := 0
	for _, err := range errs {
		if errors.Is(err, storage.ErrVersionConflict) {
			conflicts++
		} else if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if conflicts != 1 {
		t.Fatalf("expected exactly one conflict, got %d", conflicts)
	}
	if got := len(readLedger(t, store).Checks); got != 2 {
		t.Fatalf("expected 2 checks after one successful run, got %d", got)
	}
}
