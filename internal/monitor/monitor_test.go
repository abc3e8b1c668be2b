package monitor

import (
	"context"
	"testing"
	"time"

	"uptimeledger/internal/logger"
	"uptimeledger/internal/snapshot"
)

func TestMonitorRunsImmediatelyAndStops(t *testing.T) {
	store := newFileStore(t)
	checker := &fakeChecker{}
	checker.set(true, true)
	holder := &snapshot.Holder{}
	runner := NewRunner(checker, store, RunnerOptions{Publisher: holder, Logger: logger.Discard()})

	mon := New(time.Second, testServices, runner, logger.Discard())
	if mon.interval != time.Minute {
		t.Fatalf("interval should be raised to one minute, got %v", mon.interval)
	}
	fixed := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	mon.now = func() time.Time { return fixed }

	mon.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for {
		if l, ok := holder.Get(); ok {
			if !l.LastCheck.Equal(fixed) {
				t.Fatalf("unexpected last check %v", l.LastCheck)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("monitor did not run on start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	mon.Stop()
}

func TestMonitorStopWithoutStart(t *testing.T) {
	mon := New(time.Minute, nil, nil, logger.Discard())
	mon.Stop()
}
