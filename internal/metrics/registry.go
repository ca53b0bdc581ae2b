package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultMeterName is the instrumentation scope of the pipeline metrics.
const DefaultMeterName = "github.com/davidleathers/kyt-auditor/pipeline"

// Registry holds the pipeline metric instruments
type Registry struct {
	meter metric.Meter

	// Run metrics
	RunDuration metric.Float64Histogram
	RunCounter  metric.Int64Counter
	HistorySize metric.Int64ObservableGauge

	// Stage metrics
	StageDuration     metric.Float64Histogram
	StageErrorCounter metric.Int64Counter

	// Domain metrics
	RiskScore             metric.Int64Histogram
	TransactionCounter    metric.Int64Counter
	SanctionsMatchCounter metric.Int64Counter

	// State for observable metrics
	mu          sync.RWMutex
	historySize int64
}

// NewRegistry creates the pipeline instruments on provider. A nil provider
// uses the global meter provider.
func NewRegistry(provider metric.MeterProvider, meterName string) (*Registry, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	if meterName == "" {
		meterName = DefaultMeterName
	}
	r := &Registry{meter: provider.Meter(meterName)}

	if err := r.initRunMetrics(); err != nil {
		return nil, err
	}

	if err := r.initStageMetrics(); err != nil {
		return nil, err
	}

	if err := r.initDomainMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

// initRunMetrics initializes run lifecycle metrics
func (r *Registry) initRunMetrics() error {
	var err error

	r.RunDuration, err = r.meter.Float64Histogram(
		"kyt.run.duration",
		metric.WithDescription("Duration of an analysis run in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000, 30000),
	)
	if err != nil {
		return err
	}

	r.RunCounter, err = r.meter.Int64Counter(
		"kyt.run.total",
		metric.WithDescription("Total number of analysis runs by final status"),
	)
	if err != nil {
		return err
	}

	r.HistorySize, err = r.meter.Int64ObservableGauge(
		"kyt.history.size",
		metric.WithDescription("Number of runs retained in history"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.historySize)
			return nil
		}),
	)

	return err
}

// initStageMetrics initializes per-stage metrics
func (r *Registry) initStageMetrics() error {
	var err error

	r.StageDuration, err = r.meter.Float64Histogram(
		"kyt.stage.duration",
		metric.WithDescription("Duration of a pipeline stage in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return err
	}

	r.StageErrorCounter, err = r.meter.Int64Counter(
		"kyt.stage.errors",
		metric.WithDescription("Total number of stages that finished with diagnostics or failed"),
	)

	return err
}

// initDomainMetrics initializes transaction and screening metrics
func (r *Registry) initDomainMetrics() error {
	var err error

	r.RiskScore, err = r.meter.Int64Histogram(
		"kyt.transaction.risk_score",
		metric.WithDescription("Distribution of transaction risk scores"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
	)
	if err != nil {
		return err
	}

	r.TransactionCounter, err = r.meter.Int64Counter(
		"kyt.transaction.total",
		metric.WithDescription("Total number of scored transactions"),
	)
	if err != nil {
		return err
	}

	r.SanctionsMatchCounter, err = r.meter.Int64Counter(
		"kyt.sanctions.matches",
		metric.WithDescription("Total number of sanctions matches by list"),
	)

	return err
}

// RecordRun records the outcome and duration of a run
func (r *Registry) RecordRun(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	r.RunDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	r.RunCounter.Add(ctx, 1, attrs)
}

// RecordStage records a finished stage
func (r *Registry) RecordStage(ctx context.Context, stage, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	)
	r.StageDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if status != "COMPLETED" {
		r.StageErrorCounter.Add(ctx, 1, attrs)
	}
}

// RecordRiskScores records one histogram sample per scored transaction
func (r *Registry) RecordRiskScores(ctx context.Context, scores []int) {
	for _, s := range scores {
		r.RiskScore.Record(ctx, int64(s))
	}
	r.TransactionCounter.Add(ctx, int64(len(scores)))
}

// RecordSanctionsMatch counts one match against the named list
func (r *Registry) RecordSanctionsMatch(ctx context.Context, listName string) {
	r.SanctionsMatchCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("list", listName)))
}

// SetHistorySize updates the retained-runs gauge
func (r *Registry) SetHistorySize(n int) {
	r.mu.Lock()
	r.historySize = int64(n)
	r.mu.Unlock()
}
