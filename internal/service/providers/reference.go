package providers

import (
	"context"
	"math"
	"strings"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

// SanctionsEntry is one listed party in the reference sanctions list.
type SanctionsEntry struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Aliases       []string `json:"aliases"`
	EntityType    string   `json:"entity_type"`
	SanctionsList string   `json:"sanctions_list"`
	Country       string   `json:"country"`
	DateAdded     string   `json:"date_added"`
	Details       string   `json:"details"`
}

// ReferenceSanctionsEntries is the built-in sanctions list used when no
// search backend is configured.
var ReferenceSanctionsEntries = []SanctionsEntry{
	{
		ID:            "SDN-001",
		Name:          "ACME Shell Corporation",
		Aliases:       []string{"ACME Holdings", "ACME LLC"},
		EntityType:    "Entity",
		SanctionsList: "OFAC SDN",
		Country:       "Unknown",
		DateAdded:     "2023-01-15",
		Details:       "Designated for sanctions evasion activities",
	},
	{
		ID:            "SDN-002",
		Name:          "Offshore Trust Ltd",
		Aliases:       []string{"OT Limited", "Offshore Holdings"},
		EntityType:    "Entity",
		SanctionsList: "OFAC SDN",
		Country:       "Cayman Islands",
		DateAdded:     "2022-08-20",
		Details:       "Designated for money laundering activities",
	},
	{
		ID:            "SDN-003",
		Name:          "XYZ Holdings International",
		Aliases:       []string{"XYZ Global", "XYZ Finance"},
		EntityType:    "Entity",
		SanctionsList: "OFAC SDN",
		Country:       "Panama",
		DateAdded:     "2023-06-10",
		Details:       "Designated for facilitating sanctions evasion",
	},
	{
		ID:            "SDN-004",
		Name:          "Suspicious Trading Co",
		Aliases:       []string{"STC Trading", "S.T. Company"},
		EntityType:    "Entity",
		SanctionsList: "UN Consolidated",
		Country:       "Syria",
		DateAdded:     "2022-03-01",
		Details:       "Designated for weapons proliferation",
	},
	{
		ID:            "SDN-005",
		Name:          "Shadow Finance Group",
		Aliases:       []string{"SFG Ltd", "Shadow Holdings"},
		EntityType:    "Entity",
		SanctionsList: "EU Sanctions",
		Country:       "Russia",
		DateAdded:     "2022-02-28",
		Details:       "Designated in response to geopolitical events",
	},
}

// ReferenceSanctions is an in-memory SanctionsProvider. A query matches an
// entry when it is a case-insensitive substring of the name or an alias.
type ReferenceSanctions struct {
	entries []SanctionsEntry
}

// NewReferenceSanctions creates a provider over entries, or the built-in list when nil.
func NewReferenceSanctions(entries []SanctionsEntry) *ReferenceSanctions {
	if entries == nil {
		entries = ReferenceSanctionsEntries
	}
	return &ReferenceSanctions{entries: entries}
}

// Search returns one match per matching entry, in list order
func (p *ReferenceSanctions) Search(ctx context.Context, query string) ([]kyt.SanctionsMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []kyt.SanctionsMatch{}, nil
	}

	matches := []kyt.SanctionsMatch{}
	for _, entry := range p.entries {
		best := 0.0
		for _, candidate := range append([]string{entry.Name}, entry.Aliases...) {
			c := strings.ToLower(candidate)
			if !strings.Contains(c, q) {
				continue
			}
			best = math.Max(best, float64(len(q))/float64(len(c)))
		}
		if best == 0 {
			continue
		}

		matchType := kyt.MatchFuzzy
		if best == 1 {
			matchType = kyt.MatchExact
		}
		matches = append(matches, kyt.SanctionsMatch{
			EntityQueried: query,
			EntryID:       entry.ID,
			EntryName:     entry.Name,
			ListName:      entry.SanctionsList,
			MatchScore:    math.Round(best*100) / 100,
			MatchType:     matchType,
		})
	}
	return matches, nil
}

// ReferencePolicies is the built-in policy corpus.
var ReferencePolicies = []kyt.PolicyDoc{
	{
		ID:          "POL-001",
		Title:       "Currency Transaction Report (CTR) Requirements",
		Category:    "BSA",
		Regulation:  "31 CFR 1010.311",
		EffectiveAt: "2023-01-01",
		Content: "Financial institutions must file a CTR for each deposit, withdrawal, exchange of currency, " +
			"or other payment or transfer that involves a transaction in currency of more than $10,000.",
	},
	{
		ID:          "POL-002",
		Title:       "Suspicious Activity Report (SAR) Requirements",
		Category:    "BSA",
		Regulation:  "31 CFR 1020.320",
		EffectiveAt: "2023-01-01",
		Content: "Banks must report any suspicious transaction relevant to a possible violation of law or " +
			"regulation. This includes any transaction conducted or attempted that involves funds derived " +
			"from illegal activities.",
	},
	{
		ID:          "POL-003",
		Title:       "Enhanced Due Diligence (EDD) Requirements",
		Category:    "AML",
		Regulation:  "31 CFR 1010.610",
		EffectiveAt: "2023-01-01",
		Content: "Enhanced due diligence is required for high-risk customers, including PEPs, customers from " +
			"high-risk jurisdictions, and those with complex ownership structures.",
	},
}

// ReferencePolicySearch is an in-memory PolicyProvider. When nothing matches
// it falls back to the first two policies.
type ReferencePolicySearch struct {
	policies []kyt.PolicyDoc
}

func NewReferencePolicySearch(policies []kyt.PolicyDoc) *ReferencePolicySearch {
	if policies == nil {
		policies = ReferencePolicies
	}
	return &ReferencePolicySearch{policies: policies}
}

func (p *ReferencePolicySearch) Search(ctx context.Context, topic, category string) ([]kyt.PolicyDoc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := strings.ToLower(topic)
	var scoped, matches []kyt.PolicyDoc
	for _, doc := range p.policies {
		if category != "" && !strings.EqualFold(doc.Category, category) {
			continue
		}
		scoped = append(scoped, doc)
		if strings.Contains(strings.ToLower(doc.Title), q) || strings.Contains(strings.ToLower(doc.Content), q) {
			matches = append(matches, doc)
		}
	}

	if len(matches) > 0 {
		return matches, nil
	}
	if len(scoped) > 2 {
		scoped = scoped[:2]
	}
	return scoped, nil
}

// ReferenceTextSafety classifies every text as safe in all four categories.
type ReferenceTextSafety struct{}

func NewReferenceTextSafety() *ReferenceTextSafety {
	return &ReferenceTextSafety{}
}

func (ReferenceTextSafety) Classify(ctx context.Context, text string) (*kyt.TextSafetyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	categories := map[string]int{"Hate": 0, "SelfHarm": 0, "Sexual": 0, "Violence": 0}
	return &kyt.TextSafetyResult{
		Categories: categories,
		IsSafe:     IsSafe(categories),
		Note:       "reference classifier",
	}, nil
}

// IsSafe reports whether every category has severity zero.
func IsSafe(categories map[string]int) bool {
	for _, severity := range categories {
		if severity != 0 {
			return false
		}
	}
	return true
}
