package bias

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
	"github.com/davidleathers/kyt-auditor/internal/service/providers"
)

// ReportType names the aggregated bias report.
const ReportType = "Responsible AI Assessment"

// Status messages
const (
	MessageReviewRequired = "High severity bias indicators detected - manual review required"
	MessageCaution        = "Multiple medium severity bias indicators - consider review"
	MessageContentSafety  = "Content safety concerns detected"
	MessagePassed         = "No significant bias indicators detected"
)

// Indicator types
const (
	IndicatorDemographic   = "demographic_reference"
	IndicatorNameBased     = "name_based_reasoning"
	IndicatorHighRiskScore = "high_risk_no_match"
)

// DiagClassificationFailed marks a decision whose text could not be classified.
const DiagClassificationFailed = "CLASSIFICATION_FAILED"

var demographicTerms = []string{"nationality", "country_of_origin", "ethnicity", "religion"}

var nameQualifiers = []string{"foreign", "unusual", "suspicious name"}

// unjustifiedScore is the score above which a decision without a sanctions
// match is flagged.
const unjustifiedScore = 8

// Auditor checks pipeline decisions for bias and content-safety problems.
type Auditor interface {
	AuditDecision(ctx context.Context, d kyt.Decision) (kyt.DecisionAudit, error)
	AuditBatch(ctx context.Context, decisions []kyt.Decision) (kyt.BiasReport, error)
}

// Config controls the auditor.
type Config struct {
	// FailClosed treats a failed classification as unsafe content
	FailClosed  bool                 `json:"fail_closed"`
	Concurrency int                  `json:"concurrency"`
	CallPolicy  providers.CallPolicy `json:"call_policy"`
}

func DefaultConfig() Config {
	return Config{
		FailClosed:  true,
		Concurrency: 4,
		CallPolicy:  providers.DefaultCallPolicy(),
	}
}

type auditor struct {
	safety providers.TextSafetyProvider
	config Config
	logger *zap.Logger
}

func NewAuditor(safety providers.TextSafetyProvider, config Config, logger *zap.Logger) (Auditor, error) {
	if safety == nil {
		return nil, fmt.Errorf("text safety provider is required")
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConfig().Concurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &auditor{
		safety: safety,
		config: config,
		logger: logger.Named("bias"),
	}, nil
}

// AuditDecision classifies the serialized decision and scans its reasoning
// for bias indicators. Classification failures are recorded on the audit;
// only cancellation is returned as an error.
func (a *auditor) AuditDecision(ctx context.Context, d kyt.Decision) (kyt.DecisionAudit, error) {
	audit := kyt.DecisionAudit{
		Decision:        d,
		Indicators:      DetectIndicators(d),
		Recommendations: []string{},
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return kyt.DecisionAudit{}, fmt.Errorf("serializing decision: %w", err)
	}

	safety, _, err := providers.Call(ctx, a.config.CallPolicy, func(callCtx context.Context) (*kyt.TextSafetyResult, error) {
		return a.safety.Classify(callCtx, string(payload))
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return kyt.DecisionAudit{}, ctxErr
	}
	if err != nil {
		audit.SafetyError = err.Error()
		a.logger.Warn("Text safety classification failed",
			zap.String("decision_type", string(d.DecisionType)),
			zap.String("subject", d.SubjectID),
			zap.Error(err))
	} else {
		audit.Safety = safety
	}

	seen := make(map[string]struct{})
	for _, ind := range audit.Indicators {
		switch ind.Severity {
		case kyt.IndicatorHigh:
			audit.HighCount++
		case kyt.IndicatorMedium:
			audit.MediumCount++
		}
		if _, ok := seen[ind.Recommendation]; !ok {
			seen[ind.Recommendation] = struct{}{}
			audit.Recommendations = append(audit.Recommendations, ind.Recommendation)
		}
	}

	unsafe := (audit.Safety != nil && !audit.Safety.IsSafe) || (audit.SafetyError != "" && a.config.FailClosed)

	switch {
	case audit.HighCount > 0:
		audit.Status, audit.Message = kyt.BiasReviewRequired, MessageReviewRequired
	case audit.MediumCount >= 2:
		audit.Status, audit.Message = kyt.BiasCaution, MessageCaution
	case unsafe:
		audit.Status, audit.Message = kyt.BiasContentSafetyIssue, MessageContentSafety
	default:
		audit.Status, audit.Message = kyt.BiasPassed, MessagePassed
	}
	return audit, nil
}

// DetectIndicators scans a decision's reasoning, case-insensitively.
func DetectIndicators(d kyt.Decision) []kyt.BiasIndicator {
	indicators := []kyt.BiasIndicator{}
	reasoning := strings.ToLower(d.Reasoning)

	for _, term := range demographicTerms {
		if strings.Contains(reasoning, term) {
			indicators = append(indicators, kyt.BiasIndicator{
				Type:           IndicatorDemographic,
				Field:          term,
				Severity:       kyt.IndicatorMedium,
				Recommendation: fmt.Sprintf("Review use of %s in decision reasoning for potential bias", term),
			})
		}
	}

	if strings.Contains(reasoning, "name") {
		for _, q := range nameQualifiers {
			if strings.Contains(reasoning, q) {
				indicators = append(indicators, kyt.BiasIndicator{
					Type:           IndicatorNameBased,
					Severity:       kyt.IndicatorHigh,
					Recommendation: "Review name-based reasoning for potential ethnic/cultural bias",
				})
				break
			}
		}
	}

	if d.Score > unjustifiedScore && !d.SanctionsMatch {
		indicators = append(indicators, kyt.BiasIndicator{
			Type:           IndicatorHighRiskScore,
			Severity:       kyt.IndicatorLow,
			Recommendation: "Verify high risk score is justified by concrete findings, not assumptions",
		})
	}
	return indicators
}

// AuditBatch audits decisions concurrently and aggregates them in input order.
func (a *auditor) AuditBatch(ctx context.Context, decisions []kyt.Decision) (kyt.BiasReport, error) {
	report := kyt.BiasReport{
		ReportType:      ReportType,
		TotalReviewed:   len(decisions),
		PerDecision:     make([]kyt.DecisionAudit, len(decisions)),
		Recommendations: []string{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Concurrency)
	for i, d := range decisions {
		g.Go(func() error {
			audit, err := a.AuditDecision(gctx, d)
			if err != nil {
				return err
			}
			report.PerDecision[i] = audit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return kyt.BiasReport{}, err
	}

	seen := make(map[string]struct{})
	for _, audit := range report.PerDecision {
		switch audit.Status {
		case kyt.BiasPassed:
			report.Passed++
		case kyt.BiasReviewRequired:
			report.ReviewRequired++
		case kyt.BiasCaution:
			report.Caution++
		}
		if audit.SafetyError != "" {
			report.Diagnostics = append(report.Diagnostics, kyt.Diagnostic{
				Stage:   kyt.StageBias,
				Subject: subjectOf(audit.Decision),
				Code:    DiagClassificationFailed,
				Message: audit.SafetyError,
			})
		}
		for _, rec := range audit.Recommendations {
			if _, ok := seen[rec]; ok {
				continue
			}
			seen[rec] = struct{}{}
			report.Recommendations = append(report.Recommendations, rec)
		}
	}
	report.PassRate = PassRate(report.Passed, report.TotalReviewed)

	a.logger.Info("Bias audit complete",
		zap.Int("reviewed", report.TotalReviewed),
		zap.Int("passed", report.Passed),
		zap.Int("review_required", report.ReviewRequired),
		zap.Float64("pass_rate", report.PassRate))

	return report, nil
}

// PassRate is passed/total as a percentage rounded to two decimals, or 0
// for an empty batch.
func PassRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(passed)/float64(total)*10000) / 100
}

func subjectOf(d kyt.Decision) string {
	if d.SubjectID != "" {
		return d.SubjectID
	}
	return string(d.DecisionType)
}
