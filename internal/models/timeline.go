package models

import "time"

// TimelinePoint is one bucket of a service timeline.
type TimelinePoint struct {
	ClassName string           `json:"className"`
	Label     string           `json:"label"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Checks    int              `json:"checks"`
	Failures  int              `json:"failures"`
	Details   []TimelineDetail `json:"details,omitempty"`
}

// TimelineDetail describes a failed check inside a bucket.
type TimelineDetail struct {
	Timestamp time.Time `json:"timestamp"`
	LatencyMs *int64    `json:"latency_ms,omitempty"`
}

// ServiceTimeline aggregates timeline points for a single service.
type ServiceTimeline struct {
	Service  string          `json:"service"`
	URL      string          `json:"url,omitempty"`
	Timeline []TimelinePoint `json:"timeline"`
}
