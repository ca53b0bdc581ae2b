package kyt

import "time"

// HashAlgorithmSHA256 is the only supported report hash algorithm.
const HashAlgorithmSHA256 = "SHA-256"

// Summary is the executive summary of a run.
type Summary struct {
	OverallRiskLevel        RiskLevel        `json:"overallRiskLevel"`
	HighRiskCount           int              `json:"highRiskCount"`
	SanctionsMatchCount     int              `json:"sanctionsMatchCount"`
	StructuringPatternCount int              `json:"structuringPatternCount"`
	ComplianceStatus        ComplianceStatus `json:"complianceStatus"`
	BiasPassRate            float64          `json:"biasPassRate"`
	RequiresManualReview    bool             `json:"requiresManualReview"`
}

// AuditReport is the audit section of the final report.
type AuditReport struct {
	ReportID      string                    `json:"reportId"`
	StageStatuses map[StageName]StageStatus `json:"stageStatuses"`
	AuditTrail    []AuditEvent              `json:"auditTrail"`
}

// ReportContent is every hashed field of a final report, in serialization order.
type ReportContent struct {
	AnalysisID           string           `json:"analysisId"`
	Status               RunStatus        `json:"status"`
	StartedAt            time.Time        `json:"startedAt"`
	CompletedAt          time.Time        `json:"completedAt"`
	TransactionsAnalyzed int              `json:"transactionsAnalyzed"`
	ForensicAnalysis     ForensicResult   `json:"forensicAnalysis"`
	ComplianceEvaluation ComplianceResult `json:"complianceEvaluation"`
	ResponsibleAI        BiasReport       `json:"responsibleAi"`
	AuditReport          AuditReport      `json:"auditReport"`
	Summary              Summary          `json:"summary"`
}

// FinalReport is the signed output of a completed run. The hash covers the
// canonical serialization of ReportContent.
type FinalReport struct {
	ReportContent
	HashAlgorithm string `json:"hashAlgorithm"`
	HashValue     string `json:"hashValue"`
}

// AuditEventType identifies an audit trail entry
type AuditEventType string

const (
	AuditRunStarted      AuditEventType = "ANALYSIS_STARTED"
	AuditStageCompleted  AuditEventType = "STAGE_COMPLETED"
	AuditStageDegraded   AuditEventType = "STAGE_DEGRADED"
	AuditReportGenerated AuditEventType = "REPORT_GENERATED"
)

// SystemActor is the actor recorded on automated audit events.
const SystemActor = "KYT_SYSTEM"

// AuditEvent is one hash-chained entry of a run's audit trail.
type AuditEvent struct {
	EventID      string            `json:"eventId"`
	SequenceNum  int64             `json:"sequenceNum"`
	EventType    AuditEventType    `json:"eventType"`
	Actor        string            `json:"actor"`
	Timestamp    time.Time         `json:"timestamp"`
	Stage        StageName         `json:"stage,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
	PreviousHash string            `json:"previousHash"`
	EventHash    string            `json:"eventHash"`
}
