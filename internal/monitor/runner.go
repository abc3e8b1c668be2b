package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"uptimeledger/internal/history"
	"uptimeledger/internal/incident"
	"uptimeledger/internal/ledger"
	"uptimeledger/internal/models"
	"uptimeledger/internal/storage"
)

// Publisher receives every ledger that was written successfully.
type Publisher interface {
	Publish(models.Ledger)
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Retention history.Retention
	// DetectConflicts makes the write conditional on the version that was read, so a
	// concurrent run is reported as storage.ErrVersionConflict instead of being
	// silently overwritten.
	DetectConflicts bool
	Publisher       Publisher
	Logger          *slog.Logger
}

// Runner performs one complete run: probe, read, merge, write.
type Runner struct {
	checker         Checker
	store           storage.Store
	retention       history.Retention
	detectConflicts bool
	publisher       Publisher
	logger          *slog.Logger
}

// NewRunner wires a runner around a checker and a store.
func NewRunner(checker Checker, store storage.Store, opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retention := opts.Retention
	if retention.Days <= 0 {
		retention = history.NewRetention(0)
	}
	return &Runner{
		checker:         checker,
		store:           store,
		retention:       retention,
		detectConflicts: opts.DetectConflicts,
		publisher:       opts.Publisher,
		logger:          logger,
	}
}

// RunOnce probes the services, merges the outcomes into the stored ledger and writes
// the result back. Either the new ledger is written in full or nothing durable
// changes; read and write failures are returned to the caller.
func (r *Runner) RunOnce(ctx context.Context, services []models.ServiceDescriptor, now time.Time) (models.Ledger, error) {
	log := r.logger.With(slog.String("run_id", uuid.NewString()))
	now = now.UTC().Truncate(time.Millisecond)
	log.InfoContext(ctx, "uptime check", slog.Time("at", now), slog.Int("services", len(services)))

	results := r.checker.ProbeAll(ctx, services)

	doc, err := r.store.Read(ctx)
	if err != nil {
		return models.Ledger{}, fmt.Errorf("read ledger: %w", err)
	}

	var previous *models.Ledger
	if doc != nil {
		previous, err = ledger.Decode(doc.Data)
		if err != nil {
			log.WarnContext(ctx, "stored ledger unusable, starting fresh", slog.Any("error", err))
			previous = nil
		}
	}
	if previous == nil {
		log.InfoContext(ctx, "no existing data, initializing")
	}

	next, report := ledger.NewMerger(services, r.retention).Merge(previous, results, now)
	r.logReport(ctx, log, report)

	data, err := ledger.Encode(next)
	if err != nil {
		return models.Ledger{}, err
	}

	var pre storage.Precondition
	if r.detectConflicts {
		pre = storage.IfVersion(doc)
	}
	version, err := r.store.Write(ctx, data, pre)
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			log.WarnContext(ctx, "ledger changed by another run; nothing written")
		}
		return models.Ledger{}, fmt.Errorf("write ledger: %w", err)
	}

	if r.publisher != nil {
		r.publisher.Publish(next)
	}
	log.InfoContext(ctx, "ledger written",
		slog.String("version", version),
		slog.Int("checks", len(next.Checks)),
		slog.Int("open_incidents", countOpen(next.Incidents)),
	)
	return next, nil
}

func (r *Runner) logReport(ctx context.Context, log *slog.Logger, report incident.Report) {
	for _, name := range report.Repaired {
		log.WarnContext(ctx, "multiple open incidents found; closed duplicates", slog.String("service", name))
	}
	for _, name := range report.Opened {
		log.InfoContext(ctx, "incident opened", slog.String("service", name))
	}
	for _, name := range report.Resolved {
		log.InfoContext(ctx, "incident resolved", slog.String("service", name))
	}
}

func countOpen(incidents []models.Incident) int {
	n := 0
	for _, inc := range incidents {
		if inc.Open() {
			n++
		}
	}
	return n
}
