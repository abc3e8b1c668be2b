package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"uptimeledger/internal/config"
	"uptimeledger/internal/history"
	"uptimeledger/internal/ledger"
	"uptimeledger/internal/logger"
	"uptimeledger/internal/monitor"
	"uptimeledger/internal/server"
	"uptimeledger/internal/snapshot"
	"uptimeledger/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "config.yaml", "path to configuration file (YAML)")
		addr       = flag.String("addr", ":8080", "address for the status API; empty disables it")
		once       = flag.Bool("once", false, "run a single check, write the ledger and exit")
	)
	flag.Parse()

	_ = godotenv.Load(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("load config: %v", err)
		return 1
	}

	logr := logger.Setup(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logr.Info("loaded configuration",
		slog.String("path", *configPath),
		slog.Int("services", len(cfg.Services)),
		slog.String("store", cfg.Store.Kind),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	store, err := storage.Open(openCtx, cfg.Store, nil)
	cancel()
	if err != nil {
		logr.Error("open ledger store", slog.Any("error", err))
		return 1
	}
	defer store.Close()

	timeout := time.Duration(cfg.ProbeTimeoutSeconds) * time.Second
	client := monitor.NewHTTPClient(monitor.HTTPClientConfig{
		UserAgent:       cfg.UserAgent,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	})
	prober := monitor.NewProber(client, cfg.ProbeConcurrency, timeout, logr)

	holder := &snapshot.Holder{}
	runner := monitor.NewRunner(prober, store, monitor.RunnerOptions{
		Retention:       history.NewRetention(cfg.RetentionDays),
		DetectConflicts: cfg.DetectConflicts,
		Publisher:       holder,
		Logger:          logr,
	})

	if *once {
		if _, err := runner.RunOnce(ctx, cfg.Services, time.Now()); err != nil {
			logr.Error("monitor failed", slog.Any("error", err))
			return 1
		}
		logr.Info("done")
		return 0
	}

	preload(ctx, store, holder, logr)

	mon := monitor.New(time.Duration(cfg.IntervalMinutes)*time.Minute, cfg.Services, runner, logr)
	mon.Start(ctx)
	defer mon.Stop()

	if *addr == "" {
		logr.Info("monitoring without status API", slog.Int("interval_minutes", cfg.IntervalMinutes))
		<-ctx.Done()
		return 0
	}

	srv := server.New(*addr, holder, cfg.Services, logr)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Error("server shutdown", slog.Any("error", err))
		}
	}()

	logr.Info("status API listening", slog.String("addr", *addr), slog.Int("interval_minutes", cfg.IntervalMinutes))
	if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Error("server error", slog.Any("error", err))
		return 1
	}
	return 0
}

// preload publishes the stored ledger so the API has data before the first run ends.
func preload(ctx context.Context, store storage.Store, holder *snapshot.Holder, logr *slog.Logger) {
	doc, err := store.Read(ctx)
	if err != nil {
		logr.Warn("preload ledger", slog.Any("error", err))
		return
	}
	if doc == nil {
		return
	}
	l, err := ledger.Decode(doc.Data)
	if err != nil || l == nil {
		return
	}
	holder.Publish(*l)
}
