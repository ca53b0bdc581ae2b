package forensic

import (
	"github.com/shopspring/decimal"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

// RuleEngine scores transactions and detects cross-transaction patterns.
// Every method is a pure function of its input.
type RuleEngine interface {
	// ScoreTransaction computes the clamped risk score of one transaction
	ScoreTransaction(t kyt.Transaction) kyt.RiskAssessment

	// DetectStructuring finds accounts splitting funds below the reporting threshold
	DetectStructuring(batch []kyt.Transaction) []kyt.StructuringPattern

	// CheckVelocity summarises the activity of one account
	CheckVelocity(accountID string, transactions []kyt.Transaction) kyt.VelocityResult

	// Analyze runs every rule over a batch and collects input diagnostics
	Analyze(batch []kyt.Transaction) kyt.ForensicResult
}

// JurisdictionChecker classifies a country name or code.
type JurisdictionChecker func(nameOrCode string) kyt.JurisdictionRisk

// Rules holds the weights and thresholds of the scoring rules.
type Rules struct {
	ReportingThreshold   decimal.Decimal `json:"reporting_threshold"`
	NearThresholdFloor   decimal.Decimal `json:"near_threshold_floor"`
	LargeAmountThreshold decimal.Decimal `json:"large_amount_threshold"`
	RoundAmountFloor     decimal.Decimal `json:"round_amount_floor"`
	RoundAmountUnit      decimal.Decimal `json:"round_amount_unit"`
	StructuringTotal     decimal.Decimal `json:"structuring_total"`

	RoundAmountWeight        int `json:"round_amount_weight"`
	NearThresholdWeight      int `json:"near_threshold_weight"`
	LargeAmountWeight        int `json:"large_amount_weight"`
	ThresholdWeight          int `json:"threshold_weight"`
	HighJurisdictionWeight   int `json:"high_jurisdiction_weight"`
	MediumJurisdictionWeight int `json:"medium_jurisdiction_weight"`

	ReviewThreshold     int `json:"review_threshold"`
	StructuringMinCount int `json:"structuring_min_count"`
	VelocityMaxCount    int `json:"velocity_max_count"`
}

// DefaultRules returns the canonical weighting.
func DefaultRules() *Rules {
	return &Rules{
		ReportingThreshold:       DefaultReportingThreshold,
		NearThresholdFloor:       DefaultNearThresholdFloor,
		LargeAmountThreshold:     DefaultLargeAmountThreshold,
		RoundAmountFloor:         DefaultRoundAmountFloor,
		RoundAmountUnit:          DefaultRoundAmountUnit,
		StructuringTotal:         DefaultStructuringTotal,
		RoundAmountWeight:        DefaultRoundAmountWeight,
		NearThresholdWeight:      DefaultNearThresholdWeight,
		LargeAmountWeight:        DefaultLargeAmountWeight,
		ThresholdWeight:          DefaultThresholdWeight,
		HighJurisdictionWeight:   DefaultHighJurisdictionWeight,
		MediumJurisdictionWeight: DefaultMediumJurisdictionWeight,
		ReviewThreshold:          DefaultReviewThreshold,
		StructuringMinCount:      DefaultStructuringMinCount,
		VelocityMaxCount:         DefaultVelocityMaxCount,
	}
}
