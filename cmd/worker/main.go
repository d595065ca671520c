package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance"
	"rollcall/internal/bootstrap"
	"rollcall/internal/config"
	"rollcall/internal/logger"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/report"
	"rollcall/internal/worker"
)

// Worker consumes attendance events: completed sessions get their sheet
// rendered, cached and archived.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env, cfg.LogLevel).With("component", "worker")
	slog.SetDefault(log)

	if cfg.QueueBackend == queue.BackendMemory {
		log.Error("the memory queue is drained by the api process; set QUEUE_BACKEND to redis, rabbitmq or kafka")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = infra.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := attendance.NewService(infra.Store,
		attendance.WithLogger(log),
		attendance.WithRosterCapacity(cfg.RosterCapacity),
	)
	var cache *report.Cache
	if infra.Redis.Healthy(ctx) {
		cache = report.NewCache(infra.Redis.Client, cfg.ReportCacheTTL)
	}
	reports := report.NewGenerator(svc, report.NewExporter(), cache, m, log)
	proc := worker.NewProcessor(reports, bootstrap.Archiver(cfg, log), m, log)

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", "error", err)
		}
	}()

	msgs, err := infra.Queue.Consume(ctx)
	if err != nil {
		log.Error("queue consume init failed", "error", err)
		os.Exit(1)
	}
	proc.Run(ctx, msgs)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
