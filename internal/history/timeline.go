package history

import (
	"sort"
	"strings"
	"time"

	"uptimeledger/internal/models"
)

const (
	// DefaultTimelinePoints controls how many dots we generate per service.
	DefaultTimelinePoints = 80
	maxDetailsPerPoint    = 4
)

type sample struct {
	Timestamp time.Time
	Up        bool
	LatencyMs *int64
}

// BuildServiceTimelines converts the retained checks into compact per-service timelines.
// Configured services come first in configuration order; services that only appear in
// the history follow, sorted by name.
func BuildServiceTimelines(
	checks []models.CheckRecord,
	services []models.ServiceDescriptor,
	start, end time.Time,
	points int,
) []models.ServiceTimeline {
	if points <= 0 {
		points = DefaultTimelinePoints
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}

	urls := make(map[string]string, len(services))
	order := make([]string, 0, len(services))
	for _, svc := range services {
		if _, ok := urls[svc.Name]; ok {
			continue
		}
		urls[svc.Name] = svc.URL
		order = append(order, svc.Name)
	}

	historyMap := make(map[string][]sample)
	var extra []string
	for _, check := range checks {
		for name, outcome := range check.Results {
			if _, known := urls[name]; !known {
				if _, seen := historyMap[name]; !seen {
					extra = append(extra, name)
				}
			}
			historyMap[name] = append(historyMap[name], sample{
				Timestamp: check.Time,
				Up:        outcome.Up,
				LatencyMs: outcome.LatencyMs,
			})
		}
	}
	sort.Slice(extra, func(i, j int) bool {
		return strings.ToLower(extra[i]) < strings.ToLower(extra[j])
	})
	order = append(order, extra...)

	result := make([]models.ServiceTimeline, 0, len(order))
	for _, name := range order {
		result = append(result, models.ServiceTimeline{
			Service:  name,
			URL:      urls[name],
			Timeline: buildTimeline(historyMap[name], start, end, points),
		})
	}
	return result
}

func buildTimeline(samples []sample, start, end time.Time, points int) []models.TimelinePoint {
	output := make([]models.TimelinePoint, 0, points)
	if len(samples) > 1 {
		sort.SliceStable(samples, func(i, j int) bool {
			return samples[i].Timestamp.Before(samples[j].Timestamp)
		})
	}

	bucketDuration := end.Sub(start) / time.Duration(points)
	if bucketDuration <= 0 {
		bucketDuration = time.Minute
	}

	cursor := 0
	for i := 0; i < points; i++ {
		bucketStart := start.Add(time.Duration(i) * bucketDuration)
		bucketEnd := bucketStart.Add(bucketDuration)
		closing := i == points-1
		if closing {
			bucketEnd = end
		}
		bucketSamples, nextCursor := collectBucketSamples(samples, bucketStart, bucketEnd, closing, cursor)
		cursor = nextCursor
		point := evaluateBucket(bucketSamples)
		point.Start = bucketStart
		point.End = bucketEnd
		output = append(output, point)
	}
	return output
}

// collectBucketSamples returns the samples in [start, end), or [start, end] for the
// closing bucket so a check stamped exactly at the range end is not lost.
func collectBucketSamples(samples []sample, start, end time.Time, closing bool, cursor int) ([]sample, int) {
	total := len(samples)
	if total == 0 || cursor >= total {
		return nil, cursor
	}

	i := cursor
	for i < total && samples[i].Timestamp.Before(start) {
		i++
	}
	j := i
	for j < total && (samples[j].Timestamp.Before(end) || closing && samples[j].Timestamp.Equal(end)) {
		j++
	}
	if i >= j {
		return nil, j
	}
	return samples[i:j], j
}

func evaluateBucket(entries []sample) models.TimelinePoint {
	if len(entries) == 0 {
		return models.TimelinePoint{ClassName: "state-missing", Label: "No data"}
	}

	point := models.TimelinePoint{Checks: len(entries)}
	for _, entry := range entries {
		if entry.Up {
			continue
		}
		point.Failures++
		if len(point.Details) < maxDetailsPerPoint {
			point.Details = append(point.Details, models.TimelineDetail{
				Timestamp: entry.Timestamp,
				LatencyMs: entry.LatencyMs,
			})
		}
	}

	switch {
	case point.Failures == 0:
		point.ClassName, point.Label = "state-success", "Operational"
	case point.Failures == point.Checks:
		point.ClassName, point.Label = "state-error", "Unavailable"
	default:
		point.ClassName, point.Label = "state-warning", "Degraded"
	}
	return point
}
