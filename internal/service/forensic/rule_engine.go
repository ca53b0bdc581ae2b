package forensic

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

// ruleEngine implements the RuleEngine interface
type ruleEngine struct {
	rules        *Rules
	jurisdiction JurisdictionChecker
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewRuleEngine creates a rule engine. A nil rules value uses DefaultRules and
// a nil checker uses kyt.ClassifyJurisdiction.
func NewRuleEngine(rules *Rules, jurisdiction JurisdictionChecker, logger *zap.Logger) RuleEngine {
	if rules == nil {
		rules = DefaultRules()
	}
	if jurisdiction == nil {
		jurisdiction = kyt.ClassifyJurisdiction
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ruleEngine{
		rules:        rules,
		jurisdiction: jurisdiction,
		validate:     validator.New(),
		logger:       logger.Named("forensic"),
	}
}

// ScoreTransaction applies the amount and jurisdiction rules in a fixed order
func (e *ruleEngine) ScoreTransaction(t kyt.Transaction) kyt.RiskAssessment {
	assessment := kyt.RiskAssessment{
		TransactionID: t.ID,
		AccountID:     t.GroupKey(),
		Findings:      []kyt.Finding{},
	}

	if t.Amount.Malformed() {
		assessment.Findings = append(assessment.Findings, kyt.Finding{
			Kind:        kyt.FindingMalformedAmount,
			Description: "Amount missing or not a non-negative number, scored as 0",
		})
	}

	amount := t.Amount.Decimal()
	score := 0
	add := func(kind kyt.FindingKind, weight int, description string) {
		score += weight
		assessment.Findings = append(assessment.Findings, kyt.Finding{
			Kind:             kind,
			Description:      description,
			ContributedScore: weight,
		})
	}

	r := e.rules
	switch {
	case amount.GreaterThanOrEqual(r.ReportingThreshold):
		add(kyt.FindingAtOrAboveThreshold, r.ThresholdWeight,
			fmt.Sprintf("Amount >= $%s", r.ReportingThreshold.StringFixedBank(0)))
	case amount.GreaterThanOrEqual(r.NearThresholdFloor):
		add(kyt.FindingNearThreshold, r.NearThresholdWeight,
			fmt.Sprintf("Amount just below $%s threshold", r.ReportingThreshold.StringFixedBank(0)))
	}

	if amount.GreaterThan(r.RoundAmountFloor) && amount.Mod(r.RoundAmountUnit).IsZero() {
		add(kyt.FindingRoundAmount, r.RoundAmountWeight, "Round number amount")
	}

	if amount.GreaterThan(r.LargeAmountThreshold) {
		add(kyt.FindingLargeAmount, r.LargeAmountWeight,
			fmt.Sprintf("Amount exceeds $%s", r.LargeAmountThreshold.StringFixedBank(0)))
	}

	if t.Country != "" {
		switch risk := e.jurisdiction(t.Country); risk.Level {
		case kyt.RiskHigh:
			add(kyt.FindingHighRiskJurisdiction, r.HighJurisdictionWeight,
				fmt.Sprintf("High-risk jurisdiction: %s", strings.ToLower(t.Country)))
		case kyt.RiskMedium:
			add(kyt.FindingMediumRiskJurisdiction, r.MediumJurisdictionWeight,
				fmt.Sprintf("Medium-risk jurisdiction: %s", strings.ToLower(t.Country)))
		}
	}

	assessment.Score = clampScore(score)
	assessment.RequiresReview = assessment.Score >= r.ReviewThreshold
	return assessment
}

// DetectStructuring flags accounts whose transactions are each below the
// reporting threshold but together exceed it
func (e *ruleEngine) DetectStructuring(batch []kyt.Transaction) []kyt.StructuringPattern {
	patterns := []kyt.StructuringPattern{}
	order, groups := groupByAccount(batch)

	for _, account := range order {
		txns := groups[account]
		if len(txns) < e.rules.StructuringMinCount {
			continue
		}

		total := decimal.Zero
		allBelow := true
		ids := make([]string, 0, len(txns))
		for _, t := range txns {
			amount := t.Amount.Decimal()
			total = total.Add(amount)
			if amount.GreaterThanOrEqual(e.rules.ReportingThreshold) {
				allBelow = false
			}
			ids = append(ids, t.ID)
		}

		if !allBelow || !total.GreaterThan(e.rules.StructuringTotal) {
			continue
		}

		patterns = append(patterns, kyt.StructuringPattern{
			Type:             kyt.PatternStructuring,
			AccountID:        account,
			TransactionIDs:   ids,
			TotalAmount:      total,
			TransactionCount: len(txns),
			Severity:         kyt.SeverityHigh,
		})
	}

	return patterns
}

// CheckVelocity counts the transactions of one account
func (e *ruleEngine) CheckVelocity(accountID string, transactions []kyt.Transaction) kyt.VelocityResult {
	result := kyt.VelocityResult{
		AccountID:    accountID,
		TotalAmount:  decimal.Zero,
		VelocityRisk: kyt.VelocityNormal,
	}

	for _, t := range transactions {
		if t.GroupKey() != accountID {
			continue
		}
		result.Count++
		result.TotalAmount = result.TotalAmount.Add(t.Amount.Decimal())
	}

	if result.Count > e.rules.VelocityMaxCount {
		result.VelocityRisk = kyt.VelocityHigh
	}
	return result
}

// Analyze scores every transaction, detects patterns and records input errors.
// Malformed records are scored on safe defaults and never abort the batch.
func (e *ruleEngine) Analyze(batch []kyt.Transaction) kyt.ForensicResult {
	result := kyt.ForensicResult{
		Assessments:          make([]kyt.RiskAssessment, 0, len(batch)),
		HighRiskTransactions: []kyt.RiskAssessment{},
		Velocity:             []kyt.VelocityResult{},
	}

	for i, t := range batch {
		result.Diagnostics = append(result.Diagnostics, e.validateTransaction(i, t)...)

		assessment := e.ScoreTransaction(t)
		result.Assessments = append(result.Assessments, assessment)
		if assessment.RequiresReview {
			result.HighRiskTransactions = append(result.HighRiskTransactions, assessment)
		}
	}

	result.PatternsDetected = e.DetectStructuring(batch)

	order, groups := groupByAccount(batch)
	for _, account := range order {
		result.Velocity = append(result.Velocity, e.CheckVelocity(account, groups[account]))
	}

	e.logger.Debug("Forensic analysis complete",
		zap.Int("transactions", len(batch)),
		zap.Int("high_risk", len(result.HighRiskTransactions)),
		zap.Int("patterns", len(result.PatternsDetected)),
		zap.Int("diagnostics", len(result.Diagnostics)))

	return result
}

// validateTransaction converts struct validation failures into diagnostics
func (e *ruleEngine) validateTransaction(index int, t kyt.Transaction) []kyt.Diagnostic {
	subject := t.ID
	if subject == "" {
		subject = fmt.Sprintf("index:%d", index)
	}

	var diags []kyt.Diagnostic
	if err := e.validate.Struct(t); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				diags = append(diags, kyt.Diagnostic{
					Stage:   kyt.StageForensic,
					Subject: subject,
					Code:    "INVALID_FIELD",
					Message: fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag()),
				})
			}
		} else {
			diags = append(diags, kyt.Diagnostic{
				Stage:   kyt.StageForensic,
				Subject: subject,
				Code:    "INVALID_TRANSACTION",
				Message: err.Error(),
			})
		}
	}

	if t.Amount.Malformed() {
		msg := "amount is missing"
		if raw := t.Amount.Raw(); raw != "" {
			msg = fmt.Sprintf("amount %q is not a non-negative number", raw)
		}
		diags = append(diags, kyt.Diagnostic{
			Stage:   kyt.StageForensic,
			Subject: subject,
			Code:    string(kyt.FindingMalformedAmount),
			Message: msg,
		})
	}

	return diags
}

// groupByAccount groups transactions by account, preserving first-seen order
func groupByAccount(batch []kyt.Transaction) ([]string, map[string][]kyt.Transaction) {
	var order []string
	groups := make(map[string][]kyt.Transaction)
	for _, t := range batch {
		key := t.GroupKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], t)
	}
	return order, groups
}

func clampScore(score int) int {
	if score > MaxRiskScore {
		return MaxRiskScore
	}
	if score < 0 {
		return 0
	}
	return score
}
