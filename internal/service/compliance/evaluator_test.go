package compliance

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
	"github.com/davidleathers/kyt-auditor/internal/domain/values"
	"github.com/davidleathers/kyt-auditor/internal/service/providers"
)

type MockSanctionsProvider struct {
	mock.Mock
}

func (m *MockSanctionsProvider) Search(ctx context.Context, query string) ([]kyt.SanctionsMatch, error) {
	args := m.Called(ctx, query)
	matches, _ := args.Get(0).([]kyt.SanctionsMatch)
	return matches, args.Error(1)
}

type sanctionsFunc func(ctx context.Context, query string) ([]kyt.SanctionsMatch, error)

func (f sanctionsFunc) Search(ctx context.Context, query string) ([]kyt.SanctionsMatch, error) {
	return f(ctx, query)
}

func testConfig() ServiceConfig {
	config := DefaultServiceConfig()
	config.Workers = 3
	config.ScreeningPolicy = providers.CallPolicy{Timeout: time.Second, MaxRetries: 1}
	config.PolicyLookup = providers.CallPolicy{Timeout: time.Second}
	return config
}

func newTestEvaluator(t *testing.T, sanctions providers.SanctionsProvider, policies providers.PolicyProvider) Evaluator {
	e, err := NewEvaluator(sanctions, policies, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return e
}

func match(entity, id, list string) kyt.SanctionsMatch {
	return kyt.SanctionsMatch{
		EntityQueried: entity,
		EntryID:       id,
		EntryName:     entity,
		ListName:      list,
		MatchScore:    1,
		MatchType:     kyt.MatchExact,
	}
}

func TestNewEvaluator_RequiresProvider(t *testing.T) {
	_, err := NewEvaluator(nil, nil, DefaultServiceConfig(), nil)
	assert.Error(t, err)
}

func TestEvaluator_ExtractEntities(t *testing.T) {
	e := newTestEvaluator(t, providers.NewReferenceSanctions(nil), nil)

	batch := []kyt.Transaction{
		{ID: "T1", SenderName: "Alice", ReceiverName: "ACME Shell Corporation"},
		{ID: "T2", SenderName: "ACME Shell Corporation", Counterparty: "Bob", Beneficiary: " Alice "},
		{ID: "T3"},
	}

	assert.Equal(t, []string{"Alice", "ACME Shell Corporation", "Bob"}, e.ExtractEntities(batch))
	assert.Empty(t, e.ExtractEntities(nil))
}

func TestEvaluator_CheckJurisdiction(t *testing.T) {
	e := newTestEvaluator(t, providers.NewReferenceSanctions(nil), nil)

	tests := []struct {
		input string
		want  kyt.RiskLevel
	}{
		{"Iran", kyt.RiskHigh},
		{"IR", kyt.RiskHigh},
		{"north korea", kyt.RiskHigh},
		{"Syrian Arab Republic", kyt.RiskHigh},
		{"United States", kyt.RiskLow},
		{"Ireland", kyt.RiskHigh},
		{"IRN", kyt.RiskHigh},
		{"Peru", kyt.RiskMedium},
		{"Panama", kyt.RiskMedium},
		{"by", kyt.RiskMedium},
		{"Cayman Islands", kyt.RiskMedium},
		{"", kyt.RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, e.CheckJurisdiction(tt.input).Level)
		})
	}
}

func TestEvaluator_ScreenEntities_Reference(t *testing.T) {
	e := newTestEvaluator(t, providers.NewReferenceSanctions(nil), nil)

	matches, diags, err := e.ScreenEntities(context.Background(), []string{"Jane Doe", "ACME Shell Corporation"})
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, matches, 1)
	assert.Equal(t, "OFAC SDN", matches[0].ListName)
	assert.Equal(t, "ACME Shell Corporation", matches[0].EntityQueried)
}

func TestEvaluator_ScreenEntities_PartialFailure(t *testing.T) {
	provider := new(MockSanctionsProvider)
	provider.On("Search", mock.Anything, "ACME Shell Corporation").
		Return([]kyt.SanctionsMatch{match("ACME Shell Corporation", "SDN-001", "OFAC SDN")}, nil)
	provider.On("Search", mock.Anything, "Offshore Trust Ltd").
		Return(nil, &providers.ProviderError{Code: providers.ErrCodeAuthenticationFailed, Provider: "sanctions", Message: "denied"})
	provider.On("Search", mock.Anything, "Shadow Finance Group").
		Return([]kyt.SanctionsMatch{match("Shadow Finance Group", "SDN-005", "EU Sanctions")}, nil)

	e := newTestEvaluator(t, provider, nil)
	entities := []string{"ACME Shell Corporation", "Offshore Trust Ltd", "Shadow Finance Group"}

	result, err := e.Evaluate(context.Background(), nil, entities)
	require.NoError(t, err)

	require.Len(t, result.SanctionsMatches, 2)
	assert.Equal(t, "SDN-001", result.SanctionsMatches[0].EntryID)
	assert.Equal(t, "SDN-005", result.SanctionsMatches[1].EntryID)
	assert.Equal(t, kyt.ComplianceReviewNeeded, result.ComplianceStatus)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, "Offshore Trust Ltd", result.Diagnostics[0].Subject)
	assert.Equal(t, providers.ErrCodeAuthenticationFailed, result.Diagnostics[0].Code)
	assert.Equal(t, kyt.StageCompliance, result.Diagnostics[0].Stage)

	provider.AssertNumberOfCalls(t, "Search", 3)
}

func TestEvaluator_ScreenEntities_RetriesOnce(t *testing.T) {
	var calls atomic.Int32
	provider := sanctionsFunc(func(ctx context.Context, query string) ([]kyt.SanctionsMatch, error) {
		if calls.Add(1) == 1 {
			return nil, &providers.ProviderError{Code: providers.ErrCodeProviderUnavailable, Provider: "sanctions", Retry: true}
		}
		return []kyt.SanctionsMatch{match(query, "SDN-002", "OFAC SDN")}, nil
	})

	e := newTestEvaluator(t, provider, nil)
	matches, diags, err := e.ScreenEntities(context.Background(), []string{"Offshore Trust Ltd"})
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Len(t, matches, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEvaluator_ScreenEntities_FiltersUnresolved(t *testing.T) {
	provider := new(MockSanctionsProvider)
	provider.On("Search", mock.Anything, "XYZ").Return([]kyt.SanctionsMatch{
		{EntityQueried: "XYZ", ListName: "OFAC SDN"},
		{EntityQueried: "XYZ", EntryName: "XYZ Holdings International", ListName: "OFAC SDN", Error: "stale index"},
		match("XYZ", "SDN-003", "OFAC SDN"),
	}, nil)

	e := newTestEvaluator(t, provider, nil)
	matches, _, err := e.ScreenEntities(context.Background(), []string{"XYZ"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "SDN-003", matches[0].EntryID)
}

func TestEvaluator_ScreenEntities_DeterministicOrder(t *testing.T) {
	entities := make([]string, 20)
	for i := range entities {
		entities[i] = fmt.Sprintf("Entity %02d", i)
	}
	provider := sanctionsFunc(func(ctx context.Context, query string) ([]kyt.SanctionsMatch, error) {
		// later entities finish first
		var n int
		fmt.Sscanf(query, "Entity %d", &n)
		time.Sleep(time.Duration(20-n) * time.Millisecond)
		return []kyt.SanctionsMatch{match(query, query, "OFAC SDN")}, nil
	})

	e := newTestEvaluator(t, provider, nil)
	matches, _, err := e.ScreenEntities(context.Background(), entities)
	require.NoError(t, err)
	require.Len(t, matches, len(entities))
	for i, m := range matches {
		assert.Equal(t, entities[i], m.EntityQueried)
	}
}

func TestEvaluator_ScreenEntities_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := sanctionsFunc(func(callCtx context.Context, query string) ([]kyt.SanctionsMatch, error) {
		cancel()
		return []kyt.SanctionsMatch{match(query, "SDN-001", "OFAC SDN")}, nil
	})

	e := newTestEvaluator(t, provider, nil)
	matches, _, err := e.ScreenEntities(ctx, []string{"A", "B", "C", "D", "E"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, matches)
}

func TestEvaluator_DetermineReporting(t *testing.T) {
	e := newTestEvaluator(t, providers.NewReferenceSanctions(nil), nil)

	tests := []struct {
		name string
		txn  kyt.Transaction
		want []kyt.ReportType
	}{
		{
			name: "cash at threshold",
			txn:  kyt.Transaction{ID: "T1", Amount: values.MustAmount(10000), Type: "cash_deposit"},
			want: []kyt.ReportType{kyt.ReportCTR, kyt.ReportSAR},
		},
		{
			name: "wire at threshold",
			txn:  kyt.Transaction{ID: "T2", Amount: values.MustAmount(10000), Type: "wire"},
			want: []kyt.ReportType{kyt.ReportSAR},
		},
		{
			name: "small flagged",
			txn:  kyt.Transaction{ID: "T3", Amount: values.MustAmount(120), SuspiciousFlag: true},
			want: []kyt.ReportType{kyt.ReportSAR},
		},
		{
			name: "small clean",
			txn:  kyt.Transaction{ID: "T4", Amount: values.MustAmount(4999.99), Type: "cash"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs := e.DetermineReporting(tt.txn)
			require.Len(t, reqs, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, want, reqs[i].ReportType)
				assert.Equal(t, tt.txn.ID, reqs[i].TransactionID)
			}
		})
	}

	reqs := e.DetermineReporting(kyt.Transaction{ID: "T5", Amount: values.MustAmount(25000), Type: "CASH"})
	require.Len(t, reqs, 2)
	assert.Equal(t, CTRRegulation, reqs[0].RegulationRef)
	assert.Equal(t, 15, reqs[0].DeadlineDays)
	assert.Equal(t, SARRegulation, reqs[1].RegulationRef)
	assert.Equal(t, 30, reqs[1].DeadlineDays)
}

func TestEvaluator_Evaluate(t *testing.T) {
	e := newTestEvaluator(t, providers.NewReferenceSanctions(nil), providers.NewReferencePolicySearch(nil))

	batch := []kyt.Transaction{
		{ID: "T1", AccountID: "A1", Amount: values.MustAmount(9500), Country: "US", SenderName: "Jane Doe"},
		{ID: "T2", AccountID: "A1", Amount: values.MustAmount(50000), Country: "Iran", Type: "cash"},
		{ID: "T3", AccountID: "A2", Amount: values.MustAmount(100), Country: "us"},
	}

	result, err := e.Evaluate(context.Background(), batch, e.ExtractEntities(batch))
	require.NoError(t, err)

	assert.Equal(t, []string{"Jane Doe"}, result.EntitiesScreened)
	assert.Empty(t, result.SanctionsMatches)
	assert.Equal(t, kyt.CompliancePassed, result.ComplianceStatus)

	require.Len(t, result.JurisdictionRisks, 2)
	assert.Equal(t, kyt.RiskLow, result.JurisdictionRisks[0].Level)
	assert.Equal(t, kyt.RiskHigh, result.JurisdictionRisks[1].Level)
	assert.True(t, result.HasHighJurisdiction())

	require.Len(t, result.ReportingRequirements, 3)
	assert.Equal(t, "T1", result.ReportingRequirements[0].TransactionID)
	assert.Equal(t, kyt.ReportCTR, result.ReportingRequirements[1].ReportType)

	ids := make([]string, 0, len(result.PolicyReferences))
	for _, doc := range result.PolicyReferences {
		ids = append(ids, doc.ID)
	}
	assert.Equal(t, []string{"POL-002", "POL-001", "POL-003"}, ids)
	assert.Empty(t, result.Diagnostics)
}
