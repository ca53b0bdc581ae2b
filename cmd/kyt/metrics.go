package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidleathers/kyt-auditor/internal/service/pipeline"
)

// Metric definitions for the KYT CLI

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kyt",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of finished analysis runs",
		},
		[]string{"status"},
	)

	stagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kyt",
			Subsystem: "pipeline",
			Name:      "stages_total",
			Help:      "Total number of finished pipeline stages",
		},
		[]string{"stage", "status"},
	)

	runProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kyt",
			Subsystem: "pipeline",
			Name:      "run_progress_ratio",
			Help:      "Progress of the current run from 0 to 1",
		},
		[]string{"run_id"},
	)

	runsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kyt",
			Subsystem: "pipeline",
			Name:      "runs_in_progress",
			Help:      "Number of runs currently executing",
		},
	)
)

// prometheusObserver feeds pipeline progress events into the collectors above
type prometheusObserver struct{}

func (prometheusObserver) OnEvent(ctx context.Context, e pipeline.Event) {
	switch e.Type {
	case pipeline.EventRunStarted:
		runsInProgress.Inc()
		runProgress.WithLabelValues(e.RunID).Set(e.Progress)
	case pipeline.EventStageCompleted:
		stagesTotal.WithLabelValues(string(e.Stage), e.Status).Inc()
		runProgress.WithLabelValues(e.RunID).Set(e.Progress)
	case pipeline.EventStageStarted:
		runProgress.WithLabelValues(e.RunID).Set(e.Progress)
	case pipeline.EventRunCompleted, pipeline.EventRunFailed:
		runsInProgress.Dec()
		runsTotal.WithLabelValues(e.Status).Inc()
		runProgress.DeleteLabelValues(e.RunID)
	}
}

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// startMetricsServer serves /metrics on addr until the returned stop func is called
func startMetricsServer(addr string, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server shutdown failed", "error", err)
		}
	}
}
