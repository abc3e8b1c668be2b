package models

import "time"

// IncidentStatusDown is the only incident status currently produced.
const IncidentStatusDown = "down"

// Incident records one outage of a service. EndTime and DurationMs stay nil while open.
type Incident struct {
	Service    string     `json:"service"`
	Status     string     `json:"status"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime"`
	DurationMs *int64     `json:"durationMs"`
	Resolved   bool       `json:"resolved"`
}

// Open reports whether the incident is still ongoing.
func (i Incident) Open() bool {
	return !i.Resolved
}

// Close resolves the incident at the given time.
func (i *Incident) Close(at time.Time) {
	end := at
	duration := at.Sub(i.StartTime).Milliseconds()
	i.Resolved = true
	i.EndTime = &end
	i.DurationMs = &duration
}

// Clone copies the incident including its pointer fields.
func (i Incident) Clone() Incident {
	out := i
	if i.EndTime != nil {
		end := *i.EndTime
		out.EndTime = &end
	}
	if i.DurationMs != nil {
		d := *i.DurationMs
		out.DurationMs = &d
	}
	return out
}
