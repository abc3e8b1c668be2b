package monitor

import (
	"context"
	"log/slog"
	"time"

	"uptimeledger/internal/models"
)

// Monitor runs the Runner on a fixed interval.
type Monitor struct {
	interval time.Duration
	services []models.ServiceDescriptor
	runner   *Runner
	logger   *slog.Logger
	now      func() time.Time

	cancel context.CancelFunc
	doneCh chan struct{}
}

// New creates a monitor. Intervals below one minute are raised to one minute.
func New(interval time.Duration, services []models.ServiceDescriptor, runner *Runner, logger *slog.Logger) *Monitor {
	if interval < time.Minute {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	table := make([]models.ServiceDescriptor, len(services))
	copy(table, services)

	return &Monitor{
		interval: interval,
		services: table,
		runner:   runner,
		logger:   logger,
		now:      time.Now,
		doneCh:   make(chan struct{}),
	}
}

// Start launches the monitoring loop in a goroutine.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.run(ctx)
}

// Stop requests loop termination and waits until the current run is done.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.doneCh
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	m.tick(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	if _, err := m.runner.RunOnce(ctx, m.services, m.now()); err != nil {
		m.logger.ErrorContext(ctx, "monitor run failed", slog.Any("error", err))
	}
}
