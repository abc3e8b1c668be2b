package snapshot

import (
	"testing"
	"time"

	"uptimeledger/internal/models"
)

func TestHolderPublishCopies(t *testing.T) {
	var h Holder
	if _, ok := h.Get(); ok {
		t.Fatal("empty holder should report nothing published")
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := models.NewLedger(now)
	l.Incidents = append(l.Incidents, models.Incident{Service: "web", Status: models.IncidentStatusDown, StartTime: now})
	h.Publish(l)

	l.Incidents[0].Service = "changed"
	got, ok := h.Get()
	if !ok || got.Incidents[0].Service != "web" {
		t.Fatalf("holder must keep its own copy, got %+v", got.Incidents)
	}
}
