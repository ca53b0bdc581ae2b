package kyt

import "github.com/shopspring/decimal"

// FindingKind identifies the rule that produced a finding
type FindingKind string

const (
	FindingAtOrAboveThreshold     FindingKind = "AMOUNT_AT_OR_ABOVE_THRESHOLD"
	FindingNearThreshold          FindingKind = "NEAR_THRESHOLD"
	FindingRoundAmount            FindingKind = "ROUND_AMOUNT"
	FindingLargeAmount            FindingKind = "LARGE_AMOUNT"
	FindingHighRiskJurisdiction   FindingKind = "HIGH_RISK_JURISDICTION"
	FindingMediumRiskJurisdiction FindingKind = "MEDIUM_RISK_JURISDICTION"
	FindingMalformedAmount        FindingKind = "MALFORMED_AMOUNT"
)

// PatternType identifies a cross-transaction pattern
type PatternType string

const (
	PatternStructuring PatternType = "POTENTIAL_STRUCTURING"
)

// VelocityRisk classifies transaction frequency for an account
type VelocityRisk string

const (
	VelocityNormal VelocityRisk = "NORMAL"
	VelocityHigh   VelocityRisk = "HIGH"
)

// Finding is a single scored observation about a transaction.
type Finding struct {
	Kind             FindingKind `json:"kind"`
	Description      string      `json:"description"`
	ContributedScore int         `json:"contributedScore"`
}

// RiskAssessment is the per-transaction score. Score is clamped to 0..10.
type RiskAssessment struct {
	TransactionID  string    `json:"transactionId"`
	AccountID      string    `json:"accountId"`
	Score          int       `json:"score"`
	Findings       []Finding `json:"findings"`
	RequiresReview bool      `json:"requiresReview"`
}

// Reasons returns the finding descriptions in rule order.
func (r RiskAssessment) Reasons() []string {
	reasons := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		reasons = append(reasons, f.Description)
	}
	return reasons
}

// StructuringPattern flags an account that split funds into sub-threshold transactions.
type StructuringPattern struct {
	Type             PatternType     `json:"type"`
	AccountID        string          `json:"accountId"`
	TransactionIDs   []string        `json:"transactionIds"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	TransactionCount int             `json:"transactionCount"`
	Severity         Severity        `json:"severity"`
}

// VelocityResult summarises activity for one account within a batch.
type VelocityResult struct {
	AccountID    string          `json:"accountId"`
	Count        int             `json:"count"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	VelocityRisk VelocityRisk    `json:"velocityRisk"`
}

// ForensicResult is the payload of the forensic stage.
type ForensicResult struct {
	Assessments          []RiskAssessment     `json:"assessments"`
	HighRiskTransactions []RiskAssessment     `json:"highRiskTransactions"`
	PatternsDetected     []StructuringPattern `json:"patternsDetected"`
	Velocity             []VelocityResult     `json:"velocity"`
	Diagnostics          []Diagnostic         `json:"diagnostics,omitempty"`
}

// Diagnostic records an expected, recovered error attached to a stage.
type Diagnostic struct {
	Stage   StageName `json:"stage"`
	Subject string    `json:"subject,omitempty"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}
