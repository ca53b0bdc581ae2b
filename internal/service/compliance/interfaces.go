package compliance

import (
	"context"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
	"github.com/davidleathers/kyt-auditor/internal/service/providers"
)

// Evaluator checks a batch against jurisdiction, sanctions and reporting
// policy. Provider failures degrade the result with diagnostics; only
// cancellation is returned as an error.
type Evaluator interface {
	// ExtractEntities returns the distinct party names of a batch in first-seen order
	ExtractEntities(batch []kyt.Transaction) []string

	// CheckJurisdiction classifies a country name or code
	CheckJurisdiction(nameOrCode string) kyt.JurisdictionRisk

	// ScreenEntities searches every entity concurrently and merges the
	// matches in entity order
	ScreenEntities(ctx context.Context, entities []string) ([]kyt.SanctionsMatch, []kyt.Diagnostic, error)

	// DetermineReporting lists the regulatory filings a transaction triggers
	DetermineReporting(t kyt.Transaction) []kyt.ReportingRequirement

	// Evaluate runs the full compliance stage
	Evaluate(ctx context.Context, batch []kyt.Transaction, entities []string) (kyt.ComplianceResult, error)
}

// ServiceConfig holds the compliance evaluator configuration
type ServiceConfig struct {
	// Workers bounds concurrent sanctions searches
	Workers          int                  `json:"workers"`
	ScreeningPolicy  providers.CallPolicy `json:"screening_policy"`
	PolicyLookup     providers.CallPolicy `json:"policy_lookup"`
	CTRThreshold     float64              `json:"ctr_threshold"`
	SARThreshold     float64              `json:"sar_threshold"`
	PolicyCategory   string               `json:"policy_category"`
	EnablePolicyRefs bool                 `json:"enable_policy_refs"`
}

// DefaultServiceConfig returns the standard evaluator settings.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Workers:          4,
		ScreeningPolicy:  providers.DefaultCallPolicy(),
		PolicyLookup:     providers.DefaultCallPolicy(),
		CTRThreshold:     10000,
		SARThreshold:     5000,
		EnablePolicyRefs: true,
	}
}

// Regulatory references for the filings the evaluator emits.
const (
	CTRRegulation   = "31 CFR 1010.311"
	CTRDeadlineDays = 15
	CTRReason       = "Cash transaction exceeds $10,000 threshold"

	SARRegulation   = "31 CFR 1020.320"
	SARDeadlineDays = 30
	SARReason       = "Transaction flagged for suspicious activity review"

	// EDDTopic is looked up when a HIGH or MEDIUM jurisdiction is present
	EDDTopic = "EDD"
)

// Diagnostic codes
const (
	DiagScreeningFailed = "SCREENING_FAILED"
	DiagPolicyFailed    = "POLICY_LOOKUP_FAILED"
)
