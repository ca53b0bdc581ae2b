package providers

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

const defaultNarrative = `KYT analysis {{.AnalysisID}} reviewed {{.TransactionsAnalyzed}} transaction(s) and rated overall risk {{.Summary.OverallRiskLevel}}.
{{- with .Summary}}
High-risk transactions: {{.HighRiskCount}}. Sanctions matches: {{.SanctionsMatchCount}}. Structuring patterns: {{.StructuringPatternCount}}.
Compliance status: {{.ComplianceStatus}}. Bias audit pass rate: {{printf "%.2f" .BiasPassRate}}%.
{{- if .RequiresManualReview}}
Manual review is required before any disposition.
{{- else}}
No manual review is required.
{{- end}}
{{- end}}
{{- range .ComplianceEvaluation.ReportingRequirements}}
- {{.ReportType}} for {{.TransactionID}} under {{.RegulationRef}} within {{.DeadlineDays}} days
{{- end}}
Report integrity: {{.HashAlgorithm}} {{.HashValue}}
`

// TemplateNarrator renders a report with text/template.
type TemplateNarrator struct {
	tmpl *template.Template
}

// NewTemplateNarrator parses text, or the built-in summary template when empty.
func NewTemplateNarrator(text string) (*TemplateNarrator, error) {
	if text == "" {
		text = defaultNarrative
	}
	tmpl, err := template.New("narrative").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing narrative template: %w", err)
	}
	return &TemplateNarrator{tmpl: tmpl}, nil
}

func (n *TemplateNarrator) Narrate(ctx context.Context, report kyt.FinalReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := n.tmpl.Execute(&buf, report); err != nil {
		return "", fmt.Errorf("rendering narrative: %w", err)
	}
	return buf.String(), nil
}
