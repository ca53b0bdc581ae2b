package kyt

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of an analysis run
type RunStatus string

const (
	RunCreated    RunStatus = "CREATED"
	RunInProgress RunStatus = "IN_PROGRESS"
	RunCompleted  RunStatus = "COMPLETED"
	RunFailed     RunStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed
}

// StageName identifies a pipeline stage
type StageName string

const (
	StageForensic   StageName = "forensic"
	StageCompliance StageName = "compliance"
	StageBias       StageName = "bias_check"
	StageReport     StageName = "report"
)

// Stages lists the pipeline stages in execution order.
var Stages = []StageName{StageForensic, StageCompliance, StageBias, StageReport}

// StageStatus is the outcome of one stage
type StageStatus string

const (
	StageCompleted StageStatus = "COMPLETED"
	StageError     StageStatus = "ERROR"
)

// StageResult records what a stage produced. An ERROR result still carries
// the partial payload gathered before the failures in ErrorMessage.
type StageResult struct {
	Status       StageStatus   `json:"status"`
	Payload      interface{}   `json:"payload,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Diagnostics  []Diagnostic  `json:"diagnostics,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// AnalysisRun is owned by the orchestrator call that created it until it is
// appended to history, after which it is never mutated.
type AnalysisRun struct {
	ID               string                     `json:"id"`
	Status           RunStatus                  `json:"status"`
	CreatedAt        time.Time                  `json:"createdAt"`
	StartedAt        time.Time                  `json:"startedAt"`
	CompletedAt      *time.Time                 `json:"completedAt,omitempty"`
	TransactionCount int                        `json:"transactionCount"`
	StageResults     map[StageName]*StageResult `json:"stageResults"`
	FailedStage      StageName                  `json:"failedStage,omitempty"`
	Error            string                     `json:"error,omitempty"`
}

// NewAnalysisRun creates a run in the CREATED state.
func NewAnalysisRun(id string, transactionCount int, now time.Time) *AnalysisRun {
	return &AnalysisRun{
		ID:               id,
		Status:           RunCreated,
		CreatedAt:        now,
		TransactionCount: transactionCount,
		StageResults:     make(map[StageName]*StageResult, len(Stages)),
	}
}

// Start moves a created run to IN_PROGRESS.
func (r *AnalysisRun) Start(now time.Time) error {
	if r.Status != RunCreated {
		return fmt.Errorf("cannot start run %s in status %s", r.ID, r.Status)
	}
	r.Status = RunInProgress
	r.StartedAt = now
	return nil
}

// RecordStage stores a stage result on an in-progress run.
func (r *AnalysisRun) RecordStage(stage StageName, result *StageResult) error {
	if r.Status != RunInProgress {
		return fmt.Errorf("cannot record stage %s on run %s in status %s", stage, r.ID, r.Status)
	}
	r.StageResults[stage] = result
	return nil
}

// Complete stamps completion and moves the run to COMPLETED.
func (r *AnalysisRun) Complete(now time.Time) error {
	if r.Status != RunInProgress {
		return fmt.Errorf("cannot complete run %s in status %s", r.ID, r.Status)
	}
	r.Status = RunCompleted
	r.CompletedAt = &now
	return nil
}

// Fail moves a non-terminal run to FAILED, naming the stage that aborted it.
func (r *AnalysisRun) Fail(stage StageName, cause error, now time.Time) error {
	if r.Status.IsTerminal() {
		return fmt.Errorf("cannot fail run %s in status %s", r.ID, r.Status)
	}
	r.Status = RunFailed
	r.FailedStage = stage
	if cause != nil {
		r.Error = cause.Error()
	}
	r.CompletedAt = &now
	return nil
}

// Clone returns a copy whose map, stage results, diagnostics and timestamps
// are not shared with r. Stage payloads are shared and must be treated as
// read-only.
func (r *AnalysisRun) Clone() *AnalysisRun {
	c := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	c.StageResults = make(map[StageName]*StageResult, len(r.StageResults))
	for k, v := range r.StageResults {
		sr := *v
		if v.Diagnostics != nil {
			sr.Diagnostics = append([]Diagnostic(nil), v.Diagnostics...)
		}
		c.StageResults[k] = &sr
	}
	return &c
}
