package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/davidleathers/kyt-auditor/internal/domain/errors"
	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
	"github.com/davidleathers/kyt-auditor/internal/infrastructure/telemetry"
	"github.com/davidleathers/kyt-auditor/internal/metrics"
	"github.com/davidleathers/kyt-auditor/internal/service/bias"
	"github.com/davidleathers/kyt-auditor/internal/service/compliance"
	"github.com/davidleathers/kyt-auditor/internal/service/forensic"
	"github.com/davidleathers/kyt-auditor/internal/service/providers"
	"github.com/davidleathers/kyt-auditor/internal/service/report"
)

const (
	tracerName  = "github.com/davidleathers/kyt-auditor/pipeline"
	serviceName = "pipeline"

	// DiagNarrationFailed marks a report whose narrative could not be rendered.
	DiagNarrationFailed = "NARRATION_FAILED"
)

// Config wires the orchestrator. RuleEngine, Evaluator and Auditor are
// required; everything else has a default.
type Config struct {
	RuleEngine forensic.RuleEngine
	Evaluator  compliance.Evaluator
	Auditor    bias.Auditor
	Builder    *report.Builder
	// Narrator is optional and never changes the structured report
	Narrator providers.ReportNarrator

	Clock       Clock
	IDGenerator IDGenerator

	Logger   *zap.Logger
	Tracer   trace.Tracer
	Metrics  *metrics.Registry
	Observer Observer

	// MaxRuns bounds history; zero keeps every run
	MaxRuns int
}

// Outcome is the result of a completed run.
type Outcome struct {
	Run       *kyt.AnalysisRun
	Report    kyt.FinalReport
	Narrative string
}

// Orchestrator runs batches through the forensic, compliance, bias and
// report stages in sequence. Analyze may be called concurrently; runs share
// nothing but the history.
type Orchestrator struct {
	engine    forensic.RuleEngine
	evaluator compliance.Evaluator
	auditor   bias.Auditor
	builder   *report.Builder
	narrator  providers.ReportNarrator

	now   Clock
	newID IDGenerator

	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *metrics.Registry
	observer Observer

	history *History
}

func NewOrchestrator(config Config) (*Orchestrator, error) {
	if config.RuleEngine == nil {
		return nil, fmt.Errorf("rule engine is required")
	}
	if config.Evaluator == nil {
		return nil, fmt.Errorf("compliance evaluator is required")
	}
	if config.Auditor == nil {
		return nil, fmt.Errorf("bias auditor is required")
	}
	if config.MaxRuns < 0 {
		return nil, fmt.Errorf("max runs must not be negative")
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		engine:    config.RuleEngine,
		evaluator: config.Evaluator,
		auditor:   config.Auditor,
		builder:   config.Builder,
		narrator:  config.Narrator,
		now:       config.Clock,
		newID:     config.IDGenerator,
		logger:    logger.Named("pipeline"),
		tracer:    config.Tracer,
		metrics:   config.Metrics,
		observer:  config.Observer,
		history:   NewHistory(config.MaxRuns),
	}
	if o.builder == nil {
		o.builder = report.NewBuilder(logger)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = NewRunID
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	if o.observer == nil {
		o.observer = NoOpObserver{}
	}
	return o, nil
}

// runState is owned by a single Analyze call.
type runState struct {
	run    *kyt.AnalysisRun
	batch  []kyt.Transaction
	trail  *report.AuditTrail
	logger *zap.Logger

	forensic   kyt.ForensicResult
	compliance kyt.ComplianceResult
	bias       kyt.BiasReport
	final      kyt.FinalReport
	narrative  string
}

type stageFunc func(ctx context.Context, st *runState) (interface{}, []kyt.Diagnostic, error)

// Analyze runs one batch to completion. An empty batch completes with a LOW
// summary and a single NO_ALERTS decision. Stage diagnostics degrade the stage
// but never abort the run. A stage error, a panic or cancellation observed
// at a stage boundary fails the run with a *errors.RunError. Failed runs are
// recorded in history like completed ones.
func (o *Orchestrator) Analyze(ctx context.Context, batch []kyt.Transaction) (*Outcome, error) {
	created := o.now()
	run := kyt.NewAnalysisRun(o.newID(created), len(batch), created)

	ctx, span := telemetry.StartServiceSpan(ctx, o.tracer, serviceName, "analyze", map[string]interface{}{
		"run.id":       run.ID,
		"transactions": len(batch),
	})
	defer span.End()

	if err := run.Start(created); err != nil {
		return nil, err
	}

	st := &runState{
		run:    run,
		batch:  batch,
		trail:  report.NewAuditTrail(o.now),
		logger: o.logger.With(zap.String("run_id", run.ID)),
	}
	st.logger.Info("Analysis started", zap.Int("transactions", len(batch)))
	o.audit(st, kyt.AuditRunStarted, "", map[string]string{"transactions": strconv.Itoa(len(batch))})
	o.emit(ctx, Event{Type: EventRunStarted, RunID: run.ID, Progress: progressRunStarted})

	stages := []struct {
		name kyt.StageName
		fn   stageFunc
	}{
		{kyt.StageForensic, o.forensicStage},
		{kyt.StageCompliance, o.complianceStage},
		{kyt.StageBias, o.biasStage},
		{kyt.StageReport, o.reportStage},
	}
	for _, s := range stages {
		if err := o.runStage(ctx, st, s.name, s.fn); err != nil {
			telemetry.WithSpanError(span, err)
			return nil, o.fail(ctx, st, s.name, err)
		}
	}

	if err := run.Complete(st.final.CompletedAt); err != nil {
		return nil, o.fail(ctx, st, kyt.StageReport, err)
	}
	retained := o.history.Append(run)
	if o.metrics != nil {
		o.metrics.RecordRun(ctx, string(kyt.RunCompleted), run.CompletedAt.Sub(run.StartedAt))
		o.metrics.SetHistorySize(retained)
	}
	span.SetAttributes(
		attribute.String("kyt.overall_risk", string(st.final.Summary.OverallRiskLevel)),
		attribute.String("kyt.report_hash", st.final.HashValue),
	)
	o.emit(ctx, Event{Type: EventRunCompleted, RunID: run.ID, Status: string(kyt.RunCompleted), Progress: progressRunCompleted})

	st.logger.Info("Analysis completed",
		zap.String("overall_risk", string(st.final.Summary.OverallRiskLevel)),
		zap.Int("high_risk", st.final.Summary.HighRiskCount),
		zap.Bool("manual_review", st.final.Summary.RequiresManualReview),
		zap.String("hash", st.final.HashValue))

	return &Outcome{
		Run:       run.Clone(),
		Report:    st.final,
		Narrative: st.narrative,
	}, nil
}

// History returns copies of the retained runs, oldest first.
func (o *Orchestrator) History() []*kyt.AnalysisRun {
	return o.history.Snapshot()
}

// Run returns a copy of a retained run.
func (o *Orchestrator) Run(id string) (*kyt.AnalysisRun, error) {
	return o.history.Run(id)
}

func (o *Orchestrator) runStage(ctx context.Context, st *runState, stage kyt.StageName, fn stageFunc) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewCancelledError(fmt.Sprintf("run cancelled before stage %s", stage)).WithCause(err)
	}

	m := stageMilestones[stage]
	o.emit(ctx, Event{Type: EventStageStarted, RunID: st.run.ID, Stage: stage, Progress: m.start})

	ctx, span := telemetry.StartServiceSpan(ctx, o.tracer, serviceName, string(stage), map[string]interface{}{
		"run.id": st.run.ID,
	})
	defer span.End()

	started := o.now()
	payload, diags, err := o.invoke(ctx, st, stage, fn)
	duration := o.now().Sub(started)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			err = apperrors.NewCancelledError(fmt.Sprintf("run cancelled during stage %s", stage)).WithCause(err)
		}
		telemetry.WithSpanError(span, err)
		_ = st.run.RecordStage(stage, &kyt.StageResult{
			Status:       kyt.StageError,
			Payload:      payload,
			ErrorMessage: err.Error(),
			Duration:     duration,
		})
		o.recordStage(ctx, stage, kyt.StageError, duration)
		return err
	}

	result := &kyt.StageResult{
		Status:      kyt.StageCompleted,
		Payload:     payload,
		Diagnostics: diags,
		Duration:    duration,
	}
	eventType := kyt.AuditStageCompleted
	if len(diags) > 0 {
		result.Status = kyt.StageError
		result.ErrorMessage = apperrors.NewStageError(string(stage),
			fmt.Sprintf("%d diagnostic(s), first: %s", len(diags), diags[0].Message)).Error()
		eventType = kyt.AuditStageDegraded
		span.SetAttributes(attribute.Int("kyt.diagnostics", len(diags)))
		st.logger.Warn("Stage degraded",
			zap.String("stage", string(stage)),
			zap.Int("diagnostics", len(diags)),
			zap.String("first_code", diags[0].Code))
	} else {
		st.logger.Debug("Stage completed", zap.String("stage", string(stage)), zap.Duration("duration", duration))
	}

	if err := st.run.RecordStage(stage, result); err != nil {
		return err
	}
	// The report stage hashes the trail, so it cannot appear in it.
	if stage != kyt.StageReport {
		o.audit(st, eventType, stage, map[string]string{
			"status":      string(result.Status),
			"diagnostics": strconv.Itoa(len(diags)),
		})
	}
	o.recordStage(ctx, stage, result.Status, duration)
	o.emit(ctx, Event{Type: EventStageCompleted, RunID: st.run.ID, Stage: stage, Status: string(result.Status), Progress: m.end})
	return nil
}

// invoke runs a stage, converting a panic into an internal error
func (o *Orchestrator) invoke(ctx context.Context, st *runState, stage kyt.StageName, fn stageFunc) (payload interface{}, diags []kyt.Diagnostic, err error) {
	defer func() {
		if r := recover(); r != nil {
			st.logger.Error("Stage panicked",
				zap.String("stage", string(stage)),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = apperrors.NewInternalError(fmt.Sprintf("stage %s panicked: %v", stage, r))
		}
	}()
	return fn(ctx, st)
}

func (o *Orchestrator) forensicStage(ctx context.Context, st *runState) (interface{}, []kyt.Diagnostic, error) {
	st.forensic = o.engine.Analyze(st.batch)

	if o.metrics != nil {
		scores := make([]int, len(st.forensic.Assessments))
		for i, a := range st.forensic.Assessments {
			scores[i] = a.Score
		}
		o.metrics.RecordRiskScores(ctx, scores)
	}
	return st.forensic, st.forensic.Diagnostics, nil
}

func (o *Orchestrator) complianceStage(ctx context.Context, st *runState) (interface{}, []kyt.Diagnostic, error) {
	entities := o.evaluator.ExtractEntities(st.batch)
	result, err := o.evaluator.Evaluate(ctx, st.batch, entities)
	if err != nil {
		return nil, nil, err
	}
	st.compliance = result

	if o.metrics != nil {
		for _, m := range result.SanctionsMatches {
			o.metrics.RecordSanctionsMatch(ctx, m.ListName)
		}
	}
	return result, result.Diagnostics, nil
}

func (o *Orchestrator) biasStage(ctx context.Context, st *runState) (interface{}, []kyt.Diagnostic, error) {
	decisions := BuildDecisions(st.forensic, st.compliance)
	result, err := o.auditor.AuditBatch(ctx, decisions)
	if err != nil {
		return nil, nil, err
	}
	st.bias = result
	return result, result.Diagnostics, nil
}

func (o *Orchestrator) reportStage(ctx context.Context, st *runState) (interface{}, []kyt.Diagnostic, error) {
	o.audit(st, kyt.AuditReportGenerated, kyt.StageReport, map[string]string{
		"report_id": report.ReportID(st.run.ID),
	})

	statuses := make(map[kyt.StageName]kyt.StageStatus, len(st.run.StageResults))
	for name, r := range st.run.StageResults {
		statuses[name] = r.Status
	}

	final, err := o.builder.BuildReport(st.forensic, st.compliance, st.bias, report.Metadata{
		AnalysisID:           st.run.ID,
		StartedAt:            st.run.StartedAt,
		CompletedAt:          o.now(),
		TransactionsAnalyzed: len(st.batch),
		StageStatuses:        statuses,
		AuditTrail:           st.trail.Events(),
	})
	if err != nil {
		return nil, nil, err
	}
	st.final = final

	var diags []kyt.Diagnostic
	if o.narrator != nil {
		narrative, err := o.narrator.Narrate(ctx, final)
		if err != nil {
			diags = append(diags, kyt.Diagnostic{
				Stage:   kyt.StageReport,
				Subject: final.AnalysisID,
				Code:    DiagNarrationFailed,
				Message: err.Error(),
			})
		} else {
			st.narrative = narrative
		}
	}
	return final, diags, nil
}

// fail moves the run to FAILED, records it and returns the caller's error
func (o *Orchestrator) fail(ctx context.Context, st *runState, stage kyt.StageName, cause error) error {
	now := o.now()
	_ = st.run.Fail(stage, cause, now)
	retained := o.history.Append(st.run)

	if o.metrics != nil {
		o.metrics.RecordRun(ctx, string(kyt.RunFailed), now.Sub(st.run.StartedAt))
		o.metrics.SetHistorySize(retained)
	}
	o.emit(ctx, Event{
		Type:     EventRunFailed,
		RunID:    st.run.ID,
		Stage:    stage,
		Status:   string(kyt.RunFailed),
		Progress: stageMilestones[stage].start,
	})

	st.logger.Error("Analysis failed", zap.String("stage", string(stage)), zap.Error(cause))
	return &apperrors.RunError{RunID: st.run.ID, Stage: string(stage), Cause: cause}
}

func (o *Orchestrator) audit(st *runState, eventType kyt.AuditEventType, stage kyt.StageName, details map[string]string) {
	if _, err := st.trail.Record(eventType, stage, details); err != nil {
		st.logger.Error("Failed to record audit event",
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

func (o *Orchestrator) recordStage(ctx context.Context, stage kyt.StageName, status kyt.StageStatus, d time.Duration) {
	if o.metrics != nil {
		o.metrics.RecordStage(ctx, string(stage), string(status), d)
	}
}

// emit notifies the observer. A panicking observer is logged and ignored.
func (o *Orchestrator) emit(ctx context.Context, event Event) {
	event.Timestamp = o.now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("Observer panicked",
				zap.String("run_id", event.RunID),
				zap.String("event", string(event.Type)),
				zap.Any("panic", r))
		}
	}()
	o.observer.OnEvent(ctx, event)
}
