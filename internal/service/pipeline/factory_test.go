package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
	"github.com/davidleathers/kyt-auditor/internal/infrastructure/config"
	"github.com/davidleathers/kyt-auditor/internal/service/forensic"
	"github.com/davidleathers/kyt-auditor/internal/testutil/fixtures"
)

func TestRulesFromConfig_MatchesDefaults(t *testing.T) {
	rules := RulesFromConfig(config.Defaults().Scoring)
	defaults := forensic.DefaultRules()

	assert.True(t, defaults.ReportingThreshold.Equal(rules.ReportingThreshold))
	assert.True(t, defaults.NearThresholdFloor.Equal(rules.NearThresholdFloor))
	assert.True(t, defaults.LargeAmountThreshold.Equal(rules.LargeAmountThreshold))
	assert.True(t, defaults.StructuringTotal.Equal(rules.StructuringTotal))
	assert.Equal(t, defaults.NearThresholdWeight, rules.NearThresholdWeight)
	assert.Equal(t, defaults.HighJurisdictionWeight, rules.HighJurisdictionWeight)
	assert.Equal(t, defaults.ReviewThreshold, rules.ReviewThreshold)
}

func TestFactory_CreateOrchestrator(t *testing.T) {
	o, cleanup, err := NewFactory(zaptest.NewLogger(t), config.Defaults()).CreateOrchestrator(Options{})
	require.NoError(t, err)
	defer cleanup()

	outcome, err := o.Analyze(context.Background(), fixtures.EndToEndBatch())
	require.NoError(t, err)
	assert.Equal(t, kyt.RiskHigh, outcome.Report.Summary.OverallRiskLevel)
	assert.Regexp(t, `^KYT-\d{8}-\d{6}-[0-9a-f]{8}$`, outcome.Report.AnalysisID)
}

func TestFactory_UnsupportedMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Providers.Sanctions.Mode = "carrier-pigeon"

	_, _, err := NewFactory(nil, cfg).CreateOrchestrator(Options{})
	assert.ErrorContains(t, err, "unsupported sanctions mode")
}

func TestFactory_CachedSanctions(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := config.Defaults()
	cfg.Redis.URL = mr.Addr()
	cfg.Providers.Sanctions.CacheEnabled = true

	o, cleanup, err := NewFactory(zaptest.NewLogger(t), cfg).CreateOrchestrator(Options{})
	require.NoError(t, err)
	defer cleanup()

	batch := fixtures.SanctionedPartyBatch("ACME Shell Corporation")
	for i := 0; i < 2; i++ {
		outcome, err := o.Analyze(context.Background(), batch)
		require.NoError(t, err)
		require.Len(t, outcome.Report.ComplianceEvaluation.SanctionsMatches, 1)
		assert.Equal(t, "OFAC SDN", outcome.Report.ComplianceEvaluation.SanctionsMatches[0].ListName)
	}
	assert.True(t, mr.Exists("kyt:sanctions:acme shell corporation"))
}

func TestFactory_CacheUnavailable(t *testing.T) {
	cfg := config.Defaults()
	cfg.Redis.URL = "127.0.0.1:1"
	cfg.Redis.DialTimeout = 100 * time.Millisecond
	cfg.Providers.Sanctions.CacheEnabled = true

	_, _, err := NewFactory(zaptest.NewLogger(t), cfg).CreateOrchestrator(Options{})
	assert.ErrorContains(t, err, "redis connection failed")
}
