package compliance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
	"github.com/davidleathers/kyt-auditor/internal/service/providers"
)

type evaluator struct {
	sanctions providers.SanctionsProvider
	policies  providers.PolicyProvider
	config    ServiceConfig
	logger    *zap.Logger

	ctrThreshold decimal.Decimal
	sarThreshold decimal.Decimal
}

// NewEvaluator creates a compliance evaluator. policies may be nil, in which
// case no policy references are attached.
func NewEvaluator(sanctions providers.SanctionsProvider, policies providers.PolicyProvider, config ServiceConfig, logger *zap.Logger) (Evaluator, error) {
	if sanctions == nil {
		return nil, fmt.Errorf("sanctions provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultServiceConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.CTRThreshold <= 0 {
		config.CTRThreshold = defaults.CTRThreshold
	}
	if config.SARThreshold <= 0 {
		config.SARThreshold = defaults.SARThreshold
	}

	return &evaluator{
		sanctions:    sanctions,
		policies:     policies,
		config:       config,
		logger:       logger.Named("compliance"),
		ctrThreshold: decimal.NewFromFloat(config.CTRThreshold),
		sarThreshold: decimal.NewFromFloat(config.SARThreshold),
	}, nil
}

func (e *evaluator) ExtractEntities(batch []kyt.Transaction) []string {
	seen := make(map[string]struct{})
	entities := []string{}
	for _, t := range batch {
		for _, name := range t.PartyNames() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			entities = append(entities, name)
		}
	}
	return entities
}

func (e *evaluator) CheckJurisdiction(nameOrCode string) kyt.JurisdictionRisk {
	return kyt.ClassifyJurisdiction(nameOrCode)
}

func (e *evaluator) ScreenEntities(ctx context.Context, entities []string) ([]kyt.SanctionsMatch, []kyt.Diagnostic, error) {
	matches := []kyt.SanctionsMatch{}
	if len(entities) == 0 {
		return matches, nil, nil
	}

	pool := newScreeningPool(e.config.Workers, e.sanctions, e.config.ScreeningPolicy, e.logger)
	results, err := pool.run(ctx, entities)
	if err != nil {
		return nil, nil, err
	}

	var diags []kyt.Diagnostic
	for _, r := range results {
		if r.Error != nil {
			diags = append(diags, screeningDiagnostic(r))
			continue
		}
		for _, m := range r.Matches {
			if m.Error != "" || strings.TrimSpace(m.EntryName) == "" {
				continue
			}
			matches = append(matches, m)
		}
	}

	status := pool.Status()
	e.logger.Info("Entities screened",
		zap.Int("entities", len(entities)),
		zap.Int("matches", len(matches)),
		zap.Int64("failed", status.FailedTasks),
		zap.Int("workers", status.ActiveWorkers))

	return matches, diags, nil
}

func screeningDiagnostic(r screeningResult) kyt.Diagnostic {
	code := DiagScreeningFailed
	var perr *providers.ProviderError
	if errors.As(r.Error, &perr) {
		code = perr.Code
	} else if errors.Is(r.Error, context.DeadlineExceeded) {
		code = providers.ErrCodeTimeout
	}
	return kyt.Diagnostic{
		Stage:   kyt.StageCompliance,
		Subject: r.Entity,
		Code:    code,
		Message: fmt.Sprintf("sanctions search failed after %d attempt(s): %v", r.Attempts, r.Error),
	}
}

func (e *evaluator) DetermineReporting(t kyt.Transaction) []kyt.ReportingRequirement {
	var reqs []kyt.ReportingRequirement
	amount := t.Amount.Decimal()

	if amount.GreaterThanOrEqual(e.ctrThreshold) && t.IsCash() {
		reqs = append(reqs, kyt.ReportingRequirement{
			TransactionID: t.ID,
			ReportType:    kyt.ReportCTR,
			RegulationRef: CTRRegulation,
			DeadlineDays:  CTRDeadlineDays,
			Reason:        CTRReason,
		})
	}
	if t.SuspiciousFlag || amount.GreaterThanOrEqual(e.sarThreshold) {
		reqs = append(reqs, kyt.ReportingRequirement{
			TransactionID: t.ID,
			ReportType:    kyt.ReportSAR,
			RegulationRef: SARRegulation,
			DeadlineDays:  SARDeadlineDays,
			Reason:        SARReason,
		})
	}
	return reqs
}

// Evaluate screens entities, classifies every distinct transaction country,
// lists reporting requirements in batch order and attaches policy references.
func (e *evaluator) Evaluate(ctx context.Context, batch []kyt.Transaction, entities []string) (kyt.ComplianceResult, error) {
	result := kyt.ComplianceResult{
		EntitiesScreened:      entities,
		JurisdictionRisks:     []kyt.JurisdictionRisk{},
		ReportingRequirements: []kyt.ReportingRequirement{},
		PolicyReferences:      []kyt.PolicyDoc{},
		ComplianceStatus:      kyt.CompliancePassed,
	}
	if result.EntitiesScreened == nil {
		result.EntitiesScreened = []string{}
	}

	matches, diags, err := e.ScreenEntities(ctx, entities)
	if err != nil {
		return kyt.ComplianceResult{}, err
	}
	result.SanctionsMatches = matches
	result.Diagnostics = append(result.Diagnostics, diags...)

	seen := make(map[string]struct{})
	elevated := false
	for _, t := range batch {
		country := strings.TrimSpace(t.Country)
		key := strings.ToLower(country)
		if country != "" {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				risk := e.CheckJurisdiction(country)
				result.JurisdictionRisks = append(result.JurisdictionRisks, risk)
				if risk.Level != kyt.RiskLow {
					elevated = true
				}
			}
		}
		result.ReportingRequirements = append(result.ReportingRequirements, e.DetermineReporting(t)...)
	}

	if e.policies != nil && e.config.EnablePolicyRefs {
		refs, policyDiags, err := e.lookupPolicies(ctx, result.ReportingRequirements, elevated)
		if err != nil {
			return kyt.ComplianceResult{}, err
		}
		result.PolicyReferences = refs
		result.Diagnostics = append(result.Diagnostics, policyDiags...)
	}

	if len(result.SanctionsMatches) > 0 {
		result.ComplianceStatus = kyt.ComplianceReviewNeeded
	}

	e.logger.Info("Compliance evaluation complete",
		zap.Int("entities", len(entities)),
		zap.Int("sanctions_matches", len(result.SanctionsMatches)),
		zap.Int("reporting_requirements", len(result.ReportingRequirements)),
		zap.String("status", string(result.ComplianceStatus)),
		zap.Int("diagnostics", len(result.Diagnostics)))

	return result, nil
}

// lookupPolicies fetches the policies for each distinct reporting type and
// for enhanced due diligence, deduplicating documents by id.
func (e *evaluator) lookupPolicies(ctx context.Context, reqs []kyt.ReportingRequirement, elevated bool) ([]kyt.PolicyDoc, []kyt.Diagnostic, error) {
	var topics []string
	seenTopic := make(map[string]struct{})
	for _, r := range reqs {
		topic := string(r.ReportType)
		if _, ok := seenTopic[topic]; ok {
			continue
		}
		seenTopic[topic] = struct{}{}
		topics = append(topics, topic)
	}
	if elevated {
		topics = append(topics, EDDTopic)
	}

	refs := []kyt.PolicyDoc{}
	seenDoc := make(map[string]struct{})
	var diags []kyt.Diagnostic
	for _, topic := range topics {
		docs, _, err := providers.Call(ctx, e.config.PolicyLookup, func(callCtx context.Context) ([]kyt.PolicyDoc, error) {
			return e.policies.Search(callCtx, topic, e.config.PolicyCategory)
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		if err != nil {
			diags = append(diags, kyt.Diagnostic{
				Stage:   kyt.StageCompliance,
				Subject: topic,
				Code:    DiagPolicyFailed,
				Message: err.Error(),
			})
			continue
		}
		for _, doc := range docs {
			if _, ok := seenDoc[doc.ID]; ok {
				continue
			}
			seenDoc[doc.ID] = struct{}{}
			refs = append(refs, doc)
		}
	}
	return refs, diags, nil
}
