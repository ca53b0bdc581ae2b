package kyt

// DecisionType identifies what produced a decision
type DecisionType string

const (
	DecisionRiskAssessment DecisionType = "RISK_ASSESSMENT"
	DecisionSanctionsMatch DecisionType = "SANCTIONS_MATCH"
	DecisionNoAlerts       DecisionType = "NO_ALERTS"
)

// IndicatorSeverity is the severity scale for bias indicators
type IndicatorSeverity string

const (
	IndicatorLow    IndicatorSeverity = "low"
	IndicatorMedium IndicatorSeverity = "medium"
	IndicatorHigh   IndicatorSeverity = "high"
)

// BiasStatus is the overall assessment of a single decision
type BiasStatus string

const (
	BiasPassed             BiasStatus = "PASSED"
	BiasCaution            BiasStatus = "CAUTION"
	BiasReviewRequired     BiasStatus = "REVIEW_REQUIRED"
	BiasContentSafetyIssue BiasStatus = "CONTENT_SAFETY_ISSUE"
)

// Decision is an explainable unit of pipeline output handed to the bias audit.
type Decision struct {
	DecisionType   DecisionType `json:"decisionType"`
	SubjectID      string       `json:"subjectId,omitempty"`
	Score          int          `json:"score,omitempty"`
	MatchScore     float64      `json:"matchScore,omitempty"`
	Reasoning      string       `json:"reasoning"`
	SanctionsMatch bool         `json:"sanctionsMatch"`
}

// BiasIndicator flags a potential fairness problem in a decision's reasoning.
type BiasIndicator struct {
	Type           string            `json:"type"`
	Field          string            `json:"field,omitempty"`
	Severity       IndicatorSeverity `json:"severity"`
	Recommendation string            `json:"recommendation"`
}

// TextSafetyResult is the response of a text-safety classification.
type TextSafetyResult struct {
	Categories map[string]int `json:"categories"`
	IsSafe     bool           `json:"isSafe"`
	Note       string         `json:"note,omitempty"`
}

// DecisionAudit is the bias audit of one decision.
type DecisionAudit struct {
	Decision        Decision          `json:"decision"`
	Safety          *TextSafetyResult `json:"contentSafety,omitempty"`
	SafetyError     string            `json:"contentSafetyError,omitempty"`
	Indicators      []BiasIndicator   `json:"biasIndicators"`
	Status          BiasStatus        `json:"status"`
	Message         string            `json:"message"`
	HighCount       int               `json:"highSeverityCount"`
	MediumCount     int               `json:"mediumSeverityCount"`
	Recommendations []string          `json:"recommendations"`
}

// BiasReport aggregates the decision audits of one run.
type BiasReport struct {
	ReportType      string          `json:"reportType"`
	TotalReviewed   int             `json:"totalReviewed"`
	Passed          int             `json:"passed"`
	ReviewRequired  int             `json:"reviewRequired"`
	Caution         int             `json:"caution"`
	PassRate        float64         `json:"passRate"`
	PerDecision     []DecisionAudit `json:"perDecision"`
	Recommendations []string        `json:"recommendations"`
	Diagnostics     []Diagnostic    `json:"diagnostics,omitempty"`
}
