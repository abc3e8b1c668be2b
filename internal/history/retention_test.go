package history

import (
	"testing"
	"time"

	"uptimeledger/internal/models"
)

var refNow = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

func TestPruneChecksBoundary(t *testing.T) {
	r := NewRetention(30)
	checks := []models.CheckRecord{
		{Time: refNow.Add(-30*24*time.Hour - time.Second)},
		{Time: refNow.Add(-30 * 24 * time.Hour)},
		{Time: refNow.Add(-29 * 24 * time.Hour)},
		{Time: refNow},
	}

	got := r.PruneChecks(checks, refNow)
	if len(got) != 2 {
		t.Fatalf("expected 2 checks kept, got %d", len(got))
	}
	if !got[0].Time.Equal(checks[2].Time) || !got[1].Time.Equal(checks[3].Time) {
		t.Fatalf("unexpected checks kept: %v, %v", got[0].Time, got[1].Time)
	}
}

func TestPruneChecksEmpty(t *testing.T) {
	got := NewRetention(30).PruneChecks(nil, refNow)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestPruneIncidents(t *testing.T) {
	r := NewRetention(30)
	old := refNow.Add(-40 * 24 * time.Hour)
	recentEnd := refNow.Add(-time.Hour)

	oldOpen := models.Incident{Service: "a", StartTime: old}
	oldResolved := models.Incident{Service: "b", StartTime: old}
	oldResolved.Close(recentEnd)
	recentResolved := models.Incident{Service: "c", StartTime: refNow.Add(-2 * time.Hour)}
	recentResolved.Close(recentEnd)

	got := r.PruneIncidents([]models.Incident{oldOpen, oldResolved, recentResolved}, refNow)
	if len(got) != 2 {
		t.Fatalf("expected 2 incidents kept, got %d", len(got))
	}
	if got[0].Service != "a" || got[1].Service != "c" {
		t.Fatalf("unexpected incidents kept: %s, %s", got[0].Service, got[1].Service)
	}
}

func TestNewRetentionDefault(t *testing.T) {
	if got := NewRetention(0).Days; got != DefaultRetentionDays {
		t.Fatalf("expected default %d days, got %d", DefaultRetentionDays, got)
	}
	if got := (Retention{}).Cutoff(refNow); !got.Equal(refNow.AddDate(0, 0, -30)) {
		t.Fatalf("zero retention should use default window, got %v", got)
	}
}
