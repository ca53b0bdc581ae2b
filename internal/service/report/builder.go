package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/davidleathers/kyt-auditor/internal/domain/errors"
	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

// Metadata carries the run details a report is stamped with.
type Metadata struct {
	AnalysisID           string
	StartedAt            time.Time
	CompletedAt          time.Time
	TransactionsAnalyzed int
	StageStatuses        map[kyt.StageName]kyt.StageStatus
	AuditTrail           []kyt.AuditEvent
}

// Builder assembles final reports. It performs no I/O.
type Builder struct {
	logger *zap.Logger
}

func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger.Named("report")}
}

// ComputeSummary derives the executive summary. Overall risk is HIGH on any
// sanctions match, structuring pattern or HIGH-risk jurisdiction, MEDIUM on
// any high-risk transaction, LOW otherwise.
func ComputeSummary(forensic kyt.ForensicResult, compliance kyt.ComplianceResult, bias kyt.BiasReport) kyt.Summary {
	summary := kyt.Summary{
		HighRiskCount:           len(forensic.HighRiskTransactions),
		SanctionsMatchCount:     len(compliance.SanctionsMatches),
		StructuringPatternCount: len(forensic.PatternsDetected),
		ComplianceStatus:        compliance.ComplianceStatus,
		BiasPassRate:            bias.PassRate,
	}

	switch {
	case summary.SanctionsMatchCount > 0, summary.StructuringPatternCount > 0, compliance.HasHighJurisdiction():
		summary.OverallRiskLevel = kyt.RiskHigh
	case summary.HighRiskCount > 0:
		summary.OverallRiskLevel = kyt.RiskMedium
	default:
		summary.OverallRiskLevel = kyt.RiskLow
	}
	summary.RequiresManualReview = summary.OverallRiskLevel == kyt.RiskHigh || summary.OverallRiskLevel == kyt.RiskMedium
	return summary
}

// HashContent returns the algorithm name and hex SHA-256 digest of data.
func HashContent(data []byte) (string, string) {
	sum := sha256.Sum256(data)
	return kyt.HashAlgorithmSHA256, hex.EncodeToString(sum[:])
}

// CanonicalJSON is the serialization the report hash covers. Struct fields
// keep declaration order and map keys are sorted, so equal content always
// serializes to equal bytes.
func CanonicalJSON(content kyt.ReportContent) ([]byte, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("serializing report content: %w", err)
	}
	return data, nil
}

// ReportID derives the audit report id from the analysis id.
func ReportID(analysisID string) string {
	return "AUDIT-" + analysisID
}

// BuildReport assembles and hashes the final report of a completed run.
func (b *Builder) BuildReport(forensic kyt.ForensicResult, compliance kyt.ComplianceResult, bias kyt.BiasReport, meta Metadata) (kyt.FinalReport, error) {
	if meta.AnalysisID == "" {
		return kyt.FinalReport{}, apperrors.NewValidationError("MISSING_ANALYSIS_ID", "report metadata has no analysis id")
	}

	trail := meta.AuditTrail
	if trail == nil {
		trail = []kyt.AuditEvent{}
	}
	statuses := meta.StageStatuses
	if statuses == nil {
		statuses = map[kyt.StageName]kyt.StageStatus{}
	}

	content := kyt.ReportContent{
		AnalysisID:           meta.AnalysisID,
		Status:               kyt.RunCompleted,
		StartedAt:            meta.StartedAt.UTC(),
		CompletedAt:          meta.CompletedAt.UTC(),
		TransactionsAnalyzed: meta.TransactionsAnalyzed,
		ForensicAnalysis:     forensic,
		ComplianceEvaluation: compliance,
		ResponsibleAI:        bias,
		AuditReport: kyt.AuditReport{
			ReportID:      ReportID(meta.AnalysisID),
			StageStatuses: statuses,
			AuditTrail:    trail,
		},
		Summary: ComputeSummary(forensic, compliance, bias),
	}

	data, err := CanonicalJSON(content)
	if err != nil {
		return kyt.FinalReport{}, err
	}
	algorithm, digest := HashContent(data)

	b.logger.Debug("Report built",
		zap.String("analysis_id", meta.AnalysisID),
		zap.String("overall_risk", string(content.Summary.OverallRiskLevel)),
		zap.String("hash", digest))

	return kyt.FinalReport{
		ReportContent: content,
		HashAlgorithm: algorithm,
		HashValue:     digest,
	}, nil
}

// Verify recomputes the hash of a report and checks its audit trail.
func Verify(report kyt.FinalReport) error {
	if report.HashAlgorithm != kyt.HashAlgorithmSHA256 {
		return apperrors.NewIntegrityError("UNSUPPORTED_ALGORITHM",
			fmt.Sprintf("unsupported hash algorithm %q", report.HashAlgorithm))
	}

	data, err := CanonicalJSON(report.ReportContent)
	if err != nil {
		return err
	}
	if _, digest := HashContent(data); digest != report.HashValue {
		return apperrors.NewIntegrityError(apperrors.ErrHashMismatch.Code, apperrors.ErrHashMismatch.Message).
			WithDetails(map[string]interface{}{"expected": report.HashValue, "computed": digest})
	}

	if res := VerifyAuditTrail(report.AuditReport.AuditTrail); !res.IsValid {
		return apperrors.NewIntegrityError("AUDIT_CHAIN_BROKEN",
			fmt.Sprintf("audit trail has %d broken link(s)", len(res.ChainBreaks)))
	}
	return nil
}
