package kyt

import "strings"

var (
	highRiskJurisdictions   = []string{"ir", "kp", "sy", "iran", "north korea", "syria"}
	mediumRiskJurisdictions = []string{"ru", "by", "russia", "belarus", "cayman islands", "panama"}
)

// Jurisdiction rationales
const (
	RationaleHigh   = "FATF blacklisted or heavily sanctioned jurisdiction"
	RationaleMedium = "Enhanced due diligence required"
	RationaleLow    = "Standard due diligence applies"
)

// ClassifyJurisdiction matches a country name or ISO code against the high
// and medium risk sets by case-insensitive substring, so codes also match
// inside longer names ("IRN", "Peru"). Anything else is LOW.
func ClassifyJurisdiction(nameOrCode string) JurisdictionRisk {
	risk := JurisdictionRisk{Jurisdiction: nameOrCode, Level: RiskLow, Rationale: RationaleLow}

	needle := strings.ToLower(strings.TrimSpace(nameOrCode))
	if needle == "" {
		return risk
	}

	switch {
	case containsAny(needle, highRiskJurisdictions):
		risk.Level = RiskHigh
		risk.Rationale = RationaleHigh
	case containsAny(needle, mediumRiskJurisdictions):
		risk.Level = RiskMedium
		risk.Rationale = RationaleMedium
	}
	return risk
}

func containsAny(needle string, entries []string) bool {
	for _, entry := range entries {
		if strings.Contains(needle, entry) {
			return true
		}
	}
	return false
}
