package pipeline

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/kyt-auditor/internal/infrastructure/cache"
	"github.com/davidleathers/kyt-auditor/internal/infrastructure/config"
	"github.com/davidleathers/kyt-auditor/internal/metrics"
	"github.com/davidleathers/kyt-auditor/internal/service/bias"
	"github.com/davidleathers/kyt-auditor/internal/service/compliance"
	"github.com/davidleathers/kyt-auditor/internal/service/forensic"
	"github.com/davidleathers/kyt-auditor/internal/service/providers"
)

// Factory builds orchestrators from loaded configuration
type Factory struct {
	logger *zap.Logger
	config *config.Config
}

// NewFactory creates a new orchestrator factory
func NewFactory(logger *zap.Logger, cfg *config.Config) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		logger: logger,
		config: cfg,
	}
}

// Options carries the process-level collaborators an orchestrator reports to.
type Options struct {
	Tracer   trace.Tracer
	Metrics  *metrics.Registry
	Observer Observer
	Narrator providers.ReportNarrator
}

// CreateOrchestrator wires every stage from configuration. The returned
// cleanup releases external connections and must be called once the
// orchestrator is no longer used.
func (f *Factory) CreateOrchestrator(opts Options) (*Orchestrator, func() error, error) {
	if f.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	sanctions, cleanup, err := f.CreateSanctionsProvider()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create sanctions provider: %w", err)
	}

	evaluator, err := compliance.NewEvaluator(
		sanctions,
		providers.NewReferencePolicySearch(nil),
		f.complianceConfig(),
		f.logger,
	)
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("failed to create compliance evaluator: %w", err)
	}

	auditor, err := bias.NewAuditor(providers.NewReferenceTextSafety(), f.biasConfig(), f.logger)
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("failed to create bias auditor: %w", err)
	}

	o, err := NewOrchestrator(Config{
		RuleEngine: forensic.NewRuleEngine(RulesFromConfig(f.config.Scoring), nil, f.logger),
		Evaluator:  evaluator,
		Auditor:    auditor,
		Narrator:   opts.Narrator,
		Logger:     f.logger,
		Tracer:     opts.Tracer,
		Metrics:    opts.Metrics,
		Observer:   opts.Observer,
		MaxRuns:    f.config.History.MaxRuns,
	})
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	return o, cleanup, nil
}

// CreateSanctionsProvider selects the configured sanctions backend and
// decorates it with the Redis cache when enabled.
func (f *Factory) CreateSanctionsProvider() (providers.SanctionsProvider, func() error, error) {
	sc := f.config.Providers.Sanctions
	noop := func() error { return nil }

	var provider providers.SanctionsProvider
	switch sc.Mode {
	case "", "reference":
		provider = providers.NewReferenceSanctions(nil)
	case "http":
		provider = providers.NewHTTPSanctions(providers.HTTPSanctionsConfig{
			BaseURL:      sc.BaseURL,
			APIKey:       sc.APIKey,
			Timeout:      sc.Timeout,
			RateLimitRPS: sc.RateLimitRPS,
			CircuitConfig: providers.CircuitConfig{
				FailureThreshold: sc.FailureThreshold,
				RecoveryTimeout:  sc.RecoveryTimeout,
				SuccessThreshold: 1,
			},
		}, f.logger)
	default:
		return nil, nil, fmt.Errorf("unsupported sanctions mode %q", sc.Mode)
	}

	if !sc.CacheEnabled {
		return provider, noop, nil
	}

	c, err := cache.NewRedisCache(&f.config.Redis, f.logger)
	if err != nil {
		return nil, nil, err
	}
	f.logger.Info("Sanctions cache enabled", zap.Duration("ttl", sc.CacheTTL))
	return providers.NewCachedSanctions(provider, c, sc.CacheTTL, f.logger), c.Close, nil
}

func (f *Factory) complianceConfig() compliance.ServiceConfig {
	cfg := compliance.DefaultServiceConfig()
	cfg.Workers = f.config.Screening.Workers
	cfg.ScreeningPolicy = providers.CallPolicy{
		Timeout:    f.config.Screening.CallTimeout,
		MaxRetries: f.config.Screening.MaxRetries,
		Backoff:    f.config.Screening.Backoff,
	}
	cfg.PolicyLookup = cfg.ScreeningPolicy
	cfg.CTRThreshold = f.config.Scoring.ReportingThreshold
	return cfg
}

func (f *Factory) biasConfig() bias.Config {
	cfg := bias.DefaultConfig()
	cfg.FailClosed = f.config.Bias.FailClosed
	cfg.Concurrency = f.config.Bias.Concurrency
	cfg.CallPolicy.Timeout = f.config.Bias.CallTimeout
	cfg.CallPolicy.MaxRetries = f.config.Bias.MaxRetries
	return cfg
}

// RulesFromConfig converts the scoring section to rule engine weights.
func RulesFromConfig(s config.ScoringConfig) *forensic.Rules {
	return &forensic.Rules{
		ReportingThreshold:       decimal.NewFromFloat(s.ReportingThreshold),
		NearThresholdFloor:       decimal.NewFromFloat(s.NearThresholdFloor),
		LargeAmountThreshold:     decimal.NewFromFloat(s.LargeAmountThreshold),
		RoundAmountFloor:         decimal.NewFromFloat(s.RoundAmountFloor),
		RoundAmountUnit:          decimal.NewFromFloat(s.RoundAmountUnit),
		StructuringTotal:         decimal.NewFromFloat(s.StructuringTotal),
		RoundAmountWeight:        s.RoundAmountWeight,
		NearThresholdWeight:      s.NearThresholdWeight,
		LargeAmountWeight:        s.LargeAmountWeight,
		ThresholdWeight:          s.ThresholdWeight,
		HighJurisdictionWeight:   s.HighJurisdictionWeight,
		MediumJurisdictionWeight: s.MediumJurisdictionWeight,
		ReviewThreshold:          s.ReviewThreshold,
		StructuringMinCount:      s.StructuringMinCount,
		VelocityMaxCount:         s.VelocityMaxCount,
	}
}
