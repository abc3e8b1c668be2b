// Package incident tracks outages per service.
//
// A Book keeps incidents in insertion order alongside an index from service name to
// its single open incident, so a second open incident for a service cannot be created.
package incident

import (
	"sort"
	"time"

	"uptimeledger/internal/models"
)

// Report lists the services affected by one Apply call.
type Report struct {
	Opened   []string
	Resolved []string
	// Repaired names services whose loaded history held more than one open incident.
	Repaired []string
}

// Empty reports whether nothing changed.
func (r Report) Empty() bool {
	return len(r.Opened) == 0 && len(r.Resolved) == 0 && len(r.Repaired) == 0
}

// Book is the incident list of a ledger plus its open-incident index.
type Book struct {
	incidents []models.Incident
	open      map[string]int
}

// NewBook copies incidents into a book. When more than one open incident exists for a
// service the first one stays open and every later one is closed at now; the affected
// services are returned.
func NewBook(incidents []models.Incident, now time.Time) (*Book, []string) {
	b := &Book{
		incidents: make([]models.Incident, 0, len(incidents)),
		open:      make(map[string]int),
	}
	var repaired []string
	for _, inc := range incidents {
		inc = inc.Clone()
		if inc.Open() {
			if _, dup := b.open[inc.Service]; dup {
				inc.Close(now)
				repaired = appendUnique(repaired, inc.Service)
			} else {
				b.open[inc.Service] = len(b.incidents)
			}
		}
		b.incidents = append(b.incidents, inc)
	}
	return b, repaired
}

// OpenIncident returns the open incident of a service.
func (b *Book) OpenIncident(service string) (models.Incident, bool) {
	idx, ok := b.open[service]
	if !ok {
		return models.Incident{}, false
	}
	return b.incidents[idx], true
}

// Trigger opens an incident for the service unless one is already open.
func (b *Book) Trigger(service string, now time.Time) bool {
	if _, ok := b.open[service]; ok {
		return false
	}
	b.open[service] = len(b.incidents)
	b.incidents = append(b.incidents, models.Incident{
		Service:   service,
		Status:    models.IncidentStatusDown,
		StartTime: now,
		Resolved:  false,
	})
	return true
}

// Resolve closes the open incident of the service, if any.
func (b *Book) Resolve(service string, now time.Time) bool {
	idx, ok := b.open[service]
	if !ok {
		return false
	}
	b.incidents[idx].Close(now)
	delete(b.open, service)
	return true
}

// Incidents returns a copy of the incident list in insertion order.
func (b *Book) Incidents() []models.Incident {
	out := make([]models.Incident, len(b.incidents))
	copy(out, b.incidents)
	return out
}

// Apply runs one round of transitions over the previous incident list. Services are
// visited in the given order; a service without an outcome in current is left alone.
func Apply(
	previous []models.Incident,
	current map[string]models.ProbeOutcome,
	order []string,
	now time.Time,
) ([]models.Incident, Report) {
	book, repaired := NewBook(previous, now)
	report := Report{Repaired: repaired}

	for _, name := range order {
		outcome, ok := current[name]
		if !ok {
			continue
		}
		if outcome.Up {
			if book.Resolve(name, now) {
				report.Resolved = append(report.Resolved, name)
			}
			continue
		}
		if book.Trigger(name, now) {
			report.Opened = append(report.Opened, name)
		}
	}
	return book.Incidents(), report
}

// Order lists the configured services that have an outcome, in configuration order,
// followed by any other names in current sorted alphabetically.
func Order(services []models.ServiceDescriptor, current map[string]models.ProbeOutcome) []string {
	order := make([]string, 0, len(current))
	seen := make(map[string]struct{}, len(current))
	for _, svc := range services {
		if _, ok := current[svc.Name]; !ok {
			continue
		}
		if _, dup := seen[svc.Name]; dup {
			continue
		}
		seen[svc.Name] = struct{}{}
		order = append(order, svc.Name)
	}
	var extra []string
	for name := range current {
		if _, ok := seen[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

func appendUnique(list []string, name string) []string {
	for _, existing := range list {
		if existing == name {
			return list
		}
	}
	return append(list, name)
}
