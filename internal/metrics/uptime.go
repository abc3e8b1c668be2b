package metrics

import (
	"math"
	"sort"
	"time"

	"uptimeledger/internal/models"
)

// ServiceUptime is the list form of a ServiceStat exposed by the API.
type ServiceUptime struct {
	Name string `json:"name"`
	models.ServiceStat
}

// ComputeServiceStats derives one ServiceStat per configured service from the retained
// checks and the current run. Nothing is carried over between runs: the same inputs
// always give the same output.
//
// A service with no retained outcomes reports 100% uptime. An empty history has not
// shown the service to be down, so it is not reported as such.
func ComputeServiceStats(
	services []models.ServiceDescriptor,
	checks []models.CheckRecord,
	current map[string]models.ProbeOutcome,
	now time.Time,
) map[string]models.ServiceStat {
	stats := make(map[string]models.ServiceStat, len(services))
	for _, svc := range services {
		stats[svc.Name] = computeOne(svc, checks, current, now)
	}
	return stats
}

func computeOne(
	svc models.ServiceDescriptor,
	checks []models.CheckRecord,
	current map[string]models.ProbeOutcome,
	now time.Time,
) models.ServiceStat {
	var (
		total   int
		healthy int
		sumMs   int64
		countMs int
	)
	for _, check := range checks {
		outcome, ok := check.Results[svc.Name]
		if !ok {
			continue
		}
		total++
		if outcome.Up {
			healthy++
		}
		if outcome.LatencyMs != nil {
			sumMs += *outcome.LatencyMs
			countMs++
		}
	}

	stat := models.ServiceStat{
		URL:           svc.URL,
		Status:        models.StatusDown,
		UptimePercent: 100,
		TotalChecks:   total,
		HealthyChecks: healthy,
		LastChecked:   now,
	}
	if total > 0 {
		stat.UptimePercent = percent(healthy, total)
	}
	if countMs > 0 {
		stat.AvgResponseMs = int64(math.Round(float64(sumMs) / float64(countMs)))
	}
	if outcome, ok := current[svc.Name]; ok {
		if outcome.Up {
			stat.Status = models.StatusUp
		}
		if outcome.LatencyMs != nil {
			stat.LastResponseMs = *outcome.LatencyMs
		}
	}
	return stat
}

// SortedUptime flattens the stats map into a name-ordered list.
func SortedUptime(stats map[string]models.ServiceStat) []ServiceUptime {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]ServiceUptime, 0, len(keys))
	for _, name := range keys {
		results = append(results, ServiceUptime{Name: name, ServiceStat: stats[name]})
	}
	return results
}

func percent(part, total int) float64 {
	return math.Round(float64(part)/float64(total)*10000) / 100
}
