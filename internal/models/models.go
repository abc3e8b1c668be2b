package models

import (
	"time"
)

// Probe methods understood by the monitor.
const (
	MethodGet  = "GET"
	MethodHead = "HEAD"
	MethodTCP  = "TCP"
)

// Service status values reported in ServiceStat.Status.
const (
	StatusUp   = "up"
	StatusDown = "down"
)

// ServiceDescriptor defines a monitored endpoint. Name is the key used across the ledger.
type ServiceDescriptor struct {
	Name           string `yaml:"name" json:"name"`
	URL            string `yaml:"url" json:"url"`
	Method         string `yaml:"method" json:"method"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// ProbeOutcome is one service's result for a single run.
type ProbeOutcome struct {
	Up        bool   `json:"up"`
	LatencyMs *int64 `json:"ms"`
}

// Latency returns a pointer suitable for ProbeOutcome.LatencyMs.
func Latency(ms int64) *int64 {
	return &ms
}

// CheckRecord stores the outcomes of all probes at a moment in time.
type CheckRecord struct {
	Time    time.Time               `json:"time"`
	Results map[string]ProbeOutcome `json:"results"`
}

// ServiceStat summarises the retained history of a single service.
type ServiceStat struct {
	URL            string    `json:"url"`
	Status         string    `json:"status"`
	UptimePercent  float64   `json:"uptimePercent"`
	AvgResponseMs  int64     `json:"avgResponseMs"`
	TotalChecks    int       `json:"totalChecks"`
	HealthyChecks  int       `json:"healthyChecks"`
	LastResponseMs int64     `json:"lastResponseMs"`
	LastChecked    time.Time `json:"lastChecked"`
}

// Ledger is the full persisted document.
type Ledger struct {
	MonitoringSince time.Time              `json:"monitoringSince"`
	LastCheck       time.Time              `json:"lastCheck"`
	Services        map[string]ServiceStat `json:"services"`
	Incidents       []Incident             `json:"incidents"`
	Checks          []CheckRecord          `json:"checks"`
}

// NewLedger returns an empty ledger whose monitoring window starts at now.
func NewLedger(now time.Time) Ledger {
	return Ledger{
		MonitoringSince: now,
		LastCheck:       now,
		Services:        map[string]ServiceStat{},
		Incidents:       []Incident{},
		Checks:          []CheckRecord{},
	}
}

// Clone returns a deep copy so callers can transform a ledger without aliasing.
func (l Ledger) Clone() Ledger {
	out := l
	out.Services = make(map[string]ServiceStat, len(l.Services))
	for name, stat := range l.Services {
		out.Services[name] = stat
	}
	out.Incidents = make([]Incident, len(l.Incidents))
	for i, inc := range l.Incidents {
		out.Incidents[i] = inc.Clone()
	}
	out.Checks = make([]CheckRecord, len(l.Checks))
	for i, check := range l.Checks {
		results := make(map[string]ProbeOutcome, len(check.Results))
		for name, outcome := range check.Results {
			results[name] = outcome
		}
		out.Checks[i] = CheckRecord{Time: check.Time, Results: results}
	}
	return out
}
