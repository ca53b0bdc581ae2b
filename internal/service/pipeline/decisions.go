package pipeline

import (
	"strings"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

// NoAlertsReasoning is the reasoning of the placeholder decision audited
// when a batch raised nothing.
const NoAlertsReasoning = "No suspicious activity detected"

// BuildDecisions turns high-risk assessments and sanctions matches into the
// decisions handed to the bias audit, in that order.
func BuildDecisions(forensic kyt.ForensicResult, compliance kyt.ComplianceResult) []kyt.Decision {
	decisions := make([]kyt.Decision, 0, len(forensic.HighRiskTransactions)+len(compliance.SanctionsMatches))

	for _, a := range forensic.HighRiskTransactions {
		decisions = append(decisions, kyt.Decision{
			DecisionType: kyt.DecisionRiskAssessment,
			SubjectID:    a.TransactionID,
			Score:        a.Score,
			Reasoning:    strings.Join(a.Reasons(), ", "),
		})
	}

	for _, m := range compliance.SanctionsMatches {
		decisions = append(decisions, kyt.Decision{
			DecisionType:   kyt.DecisionSanctionsMatch,
			SubjectID:      m.EntityQueried,
			MatchScore:     m.MatchScore,
			Reasoning:      "Matched against " + m.ListName,
			SanctionsMatch: true,
		})
	}

	if len(decisions) == 0 {
		decisions = append(decisions, kyt.Decision{
			DecisionType: kyt.DecisionNoAlerts,
			Reasoning:    NoAlertsReasoning,
		})
	}
	return decisions
}
