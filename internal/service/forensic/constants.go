package forensic

import "github.com/shopspring/decimal"

// Amount thresholds
var (
	// DefaultReportingThreshold is the currency reporting threshold
	DefaultReportingThreshold = decimal.NewFromInt(10000)

	// DefaultNearThresholdFloor is the lower bound of the "just below threshold" band
	DefaultNearThresholdFloor = decimal.NewFromInt(9000)

	// DefaultLargeAmountThreshold marks unusually large single transactions
	DefaultLargeAmountThreshold = decimal.NewFromInt(50000)

	// DefaultRoundAmountFloor is the amount a round figure must exceed to count
	DefaultRoundAmountFloor = decimal.NewFromInt(1000)

	// DefaultRoundAmountUnit is the unit a round figure is a multiple of
	DefaultRoundAmountUnit = decimal.NewFromInt(1000)

	// DefaultStructuringTotal is the aggregate an account's split transactions must exceed
	DefaultStructuringTotal = decimal.NewFromInt(10000)
)

// Rule weights
const (
	DefaultRoundAmountWeight        = 2
	DefaultNearThresholdWeight      = 5
	DefaultLargeAmountWeight        = 3
	DefaultThresholdWeight          = 3
	DefaultHighJurisdictionWeight   = 5
	DefaultMediumJurisdictionWeight = 2
)

// Score bounds
const (
	// MaxRiskScore is the clamp applied to every assessment
	MaxRiskScore = 10

	// DefaultReviewThreshold is the score at which a transaction needs review
	DefaultReviewThreshold = 5
)

// Pattern limits
const (
	// DefaultStructuringMinCount is the minimum transactions per account for structuring
	DefaultStructuringMinCount = 3

	// DefaultVelocityMaxCount is the count above which velocity is HIGH
	DefaultVelocityMaxCount = 10
)
