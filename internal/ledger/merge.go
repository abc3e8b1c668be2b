// Package ledger turns the previous persisted ledger and a new batch of probe
// outcomes into the next ledger.
package ledger

import (
	"time"

	"uptimeledger/internal/history"
	"uptimeledger/internal/incident"
	"uptimeledger/internal/metrics"
	"uptimeledger/internal/models"
)

// Merger holds the inputs that stay fixed between runs.
type Merger struct {
	Services  []models.ServiceDescriptor
	Retention history.Retention
}

// NewMerger copies the service table so later changes by the caller do not leak in.
func NewMerger(services []models.ServiceDescriptor, retention history.Retention) Merger {
	table := make([]models.ServiceDescriptor, len(services))
	copy(table, services)
	return Merger{Services: table, Retention: retention}
}

// Merge produces the next ledger. previous is not modified; a nil previous, or one
// without a checks list, starts a fresh ledger at now.
func (m Merger) Merge(
	previous *models.Ledger,
	current map[string]models.ProbeOutcome,
	now time.Time,
) (models.Ledger, incident.Report) {
	var next models.Ledger
	if previous == nil || previous.Checks == nil {
		next = models.NewLedger(now)
	} else {
		next = previous.Clone()
	}

	results := make(map[string]models.ProbeOutcome, len(current))
	for name, outcome := range current {
		results[name] = outcome
	}
	next.Checks = append(next.Checks, models.CheckRecord{Time: now, Results: results})
	next.Checks = m.Retention.PruneChecks(next.Checks, now)

	next.Services = metrics.ComputeServiceStats(m.Services, next.Checks, results, now)

	incidents, report := incident.Apply(next.Incidents, results, incident.Order(m.Services, results), now)
	next.Incidents = m.Retention.PruneIncidents(incidents, now)

	next.LastCheck = now
	return next, report
}
