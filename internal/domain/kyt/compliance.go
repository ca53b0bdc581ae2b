package kyt

// RiskLevel is a LOW/MEDIUM/HIGH classification
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Severity is the pattern and alert severity scale
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// MatchType distinguishes exact from fuzzy sanctions hits
type MatchType string

const (
	MatchExact MatchType = "EXACT"
	MatchFuzzy MatchType = "FUZZY"
)

// ReportType is a regulatory filing type
type ReportType string

const (
	ReportCTR ReportType = "CTR"
	ReportSAR ReportType = "SAR"
)

// ComplianceStatus is the outcome of the compliance stage
type ComplianceStatus string

const (
	CompliancePassed       ComplianceStatus = "PASSED"
	ComplianceReviewNeeded ComplianceStatus = "REVIEW_NEEDED"
)

// JurisdictionRisk is the risk classification of a country name or code.
type JurisdictionRisk struct {
	Jurisdiction string    `json:"jurisdiction"`
	Level        RiskLevel `json:"level"`
	Rationale    string    `json:"rationale"`
}

// SanctionsMatch is a single sanctions-list hit for a screened entity.
// EntryName is empty when the provider could not resolve the listed party;
// such entries are filtered out by the evaluator.
type SanctionsMatch struct {
	EntityQueried string    `json:"entityQueried"`
	EntryID       string    `json:"entryId,omitempty"`
	EntryName     string    `json:"entryName,omitempty"`
	ListName      string    `json:"listName"`
	MatchScore    float64   `json:"matchScore"`
	MatchType     MatchType `json:"matchType"`
	Error         string    `json:"error,omitempty"`
}

// ReportingRequirement is a regulatory filing triggered by a transaction.
type ReportingRequirement struct {
	TransactionID string     `json:"transactionId"`
	ReportType    ReportType `json:"reportType"`
	RegulationRef string     `json:"regulationRef"`
	DeadlineDays  int        `json:"deadlineDays"`
	Reason        string     `json:"reason"`
}

// PolicyDoc is a regulatory policy returned by a policy search.
type PolicyDoc struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Regulation  string `json:"regulation"`
	Content     string `json:"content,omitempty"`
	EffectiveAt string `json:"effectiveAt,omitempty"`
}

// ComplianceResult is the payload of the compliance stage.
type ComplianceResult struct {
	EntitiesScreened      []string               `json:"entitiesScreened"`
	JurisdictionRisks     []JurisdictionRisk     `json:"jurisdictionRisks"`
	SanctionsMatches      []SanctionsMatch       `json:"sanctionsMatches"`
	ReportingRequirements []ReportingRequirement `json:"reportingRequirements"`
	PolicyReferences      []PolicyDoc            `json:"policyReferences"`
	ComplianceStatus      ComplianceStatus       `json:"complianceStatus"`
	Diagnostics           []Diagnostic           `json:"diagnostics,omitempty"`
}

// HasHighJurisdiction reports whether any screened jurisdiction is HIGH risk.
func (c ComplianceResult) HasHighJurisdiction() bool {
	for _, j := range c.JurisdictionRisks {
		if j.Level == RiskHigh {
			return true
		}
	}
	return false
}
