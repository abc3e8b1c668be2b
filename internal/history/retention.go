package history

import (
	"time"

	"uptimeledger/internal/models"
)

// DefaultRetentionDays bounds how long checks and resolved incidents are kept.
const DefaultRetentionDays = 30

// Retention prunes time-stamped ledger entries older than a window of calendar days.
type Retention struct {
	Days int
}

// NewRetention returns a policy, falling back to DefaultRetentionDays for non-positive input.
func NewRetention(days int) Retention {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return Retention{Days: days}
}

// Cutoff returns the instant an entry must be strictly after to be kept.
func (r Retention) Cutoff(now time.Time) time.Time {
	days := r.Days
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return now.AddDate(0, 0, -days)
}

// Keep reports whether a timestamp lies inside the window. The boundary itself is excluded.
func (r Retention) Keep(ts, now time.Time) bool {
	return ts.After(r.Cutoff(now))
}

// PruneChecks drops check records at or before the cutoff.
func (r Retention) PruneChecks(checks []models.CheckRecord, now time.Time) []models.CheckRecord {
	cutoff := r.Cutoff(now)
	out := make([]models.CheckRecord, 0, len(checks))
	for _, check := range checks {
		if check.Time.After(cutoff) {
			out = append(out, check)
		}
	}
	return out
}

// PruneIncidents keeps open incidents and resolved ones that started inside the window.
// A resolved incident is judged by its start time, so a long outage that began before the
// cutoff is dropped even if it ended recently.
func (r Retention) PruneIncidents(incidents []models.Incident, now time.Time) []models.Incident {
	cutoff := r.Cutoff(now)
	out := make([]models.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if inc.Open() || inc.StartTime.After(cutoff) {
			out = append(out, inc)
		}
	}
	return out
}
