package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"uptimeledger/internal/models"
)

// DefaultProbeTimeout applies when a service does not set its own timeout.
const DefaultProbeTimeout = 10 * time.Second

// Checker probes every configured service once.
type Checker interface {
	ProbeAll(ctx context.Context, services []models.ServiceDescriptor) map[string]models.ProbeOutcome
}

// Detail explains a probe outcome for logging.
type Detail struct {
	StatusCode int
	Error      string
}

// Prober runs HTTP and TCP probes. Failures are reported as down, never as errors.
type Prober struct {
	client      *http.Client
	dialer      *net.Dialer
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewProber builds a prober. concurrency bounds parallel probes; timeout is the
// fallback per-probe timeout.
func NewProber(client *http.Client, concurrency int, timeout time.Duration, logger *slog.Logger) *Prober {
	if client == nil {
		client = NewHTTPClient(HTTPClientConfig{MaxIdleConns: 20})
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		client:      client,
		dialer:      &net.Dialer{},
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger,
	}
}

// ProbeAll probes services concurrently and returns outcomes keyed by service name.
func (p *Prober) ProbeAll(ctx context.Context, services []models.ServiceDescriptor) map[string]models.ProbeOutcome {
	outcomes := make([]models.ProbeOutcome, len(services))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, svc := range services {
		g.Go(func() error {
			outcome, detail := p.Probe(ctx, svc)
			outcomes[i] = outcome
			p.logProbe(ctx, svc, outcome, detail)
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[string]models.ProbeOutcome, len(services))
	for i, svc := range services {
		results[svc.Name] = outcomes[i]
	}
	return results
}

// Probe checks a single service within its timeout.
func (p *Prober) Probe(ctx context.Context, svc models.ServiceDescriptor) (models.ProbeOutcome, Detail) {
	timeout := time.Duration(svc.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = p.timeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if strings.EqualFold(svc.Method, models.MethodTCP) {
		return p.probeTCP(probeCtx, svc)
	}
	return p.probeHTTP(probeCtx, svc)
}

func (p *Prober) probeHTTP(ctx context.Context, svc models.ServiceDescriptor) (models.ProbeOutcome, Detail) {
	method := strings.ToUpper(strings.TrimSpace(svc.Method))
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, svc.URL, nil)
	if err != nil {
		return models.ProbeOutcome{Up: false}, Detail{Error: fmt.Sprintf("build request: %v", err)}
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		elapsed := time.Since(start).Milliseconds()
		return models.ProbeOutcome{Up: false, LatencyMs: models.Latency(elapsed)}, Detail{Error: classifyError(err)}
	}
	defer resp.Body.Close()
	elapsed := time.Since(start).Milliseconds()

	detail := Detail{StatusCode: resp.StatusCode}
	up := resp.StatusCode >= 200 && resp.StatusCode < 400
	if !up {
		detail.Error = http.StatusText(resp.StatusCode)
	}
	return models.ProbeOutcome{Up: up, LatencyMs: models.Latency(elapsed)}, detail
}

func (p *Prober) probeTCP(ctx context.Context, svc models.ServiceDescriptor) (models.ProbeOutcome, Detail) {
	address := svc.URL
	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err != nil {
			return models.ProbeOutcome{Up: false}, Detail{Error: fmt.Sprintf("parse address: %v", err)}
		}
		address = u.Host
	}

	start := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", address)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return models.ProbeOutcome{Up: false, LatencyMs: models.Latency(elapsed)}, Detail{Error: classifyError(err)}
	}
	_ = conn.Close()
	return models.ProbeOutcome{Up: true, LatencyMs: models.Latency(elapsed)}, Detail{}
}

func (p *Prober) logProbe(ctx context.Context, svc models.ServiceDescriptor, outcome models.ProbeOutcome, detail Detail) {
	attrs := []any{
		slog.String("service", svc.Name),
		slog.Bool("up", outcome.Up),
	}
	if detail.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status_code", detail.StatusCode))
	}
	if outcome.LatencyMs != nil {
		attrs = append(attrs, slog.Int64("latency_ms", *outcome.LatencyMs))
	}
	if detail.Error != "" {
		attrs = append(attrs, slog.String("error", detail.Error))
	}
	p.logger.InfoContext(ctx, "probe", attrs...)
}

func classifyError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return err.Error()
}
