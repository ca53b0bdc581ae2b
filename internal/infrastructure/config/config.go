package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPath is read when Load is given an empty path.
const DefaultConfigPath = "configs/kyt.yaml"

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: KYT_SCREENING__WORKERS sets screening.workers.
const EnvPrefix = "KYT_"

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Scoring   ScoringConfig   `koanf:"scoring"`
	Screening ScreeningConfig `koanf:"screening"`
	Bias      BiasConfig      `koanf:"bias"`
	Providers ProvidersConfig `koanf:"providers"`
	Redis     RedisConfig     `koanf:"redis"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	History   HistoryConfig   `koanf:"history"`
}

type ScoringConfig struct {
	ReportingThreshold   float64 `koanf:"reporting_threshold"`
	NearThresholdFloor   float64 `koanf:"near_threshold_floor"`
	LargeAmountThreshold float64 `koanf:"large_amount_threshold"`
	RoundAmountFloor     float64 `koanf:"round_amount_floor"`
	RoundAmountUnit      float64 `koanf:"round_amount_unit"`
	StructuringTotal     float64 `koanf:"structuring_total"`

	RoundAmountWeight        int `koanf:"round_amount_weight"`
	NearThresholdWeight      int `koanf:"near_threshold_weight"`
	LargeAmountWeight        int `koanf:"large_amount_weight"`
	ThresholdWeight          int `koanf:"threshold_weight"`
	HighJurisdictionWeight   int `koanf:"high_jurisdiction_weight"`
	MediumJurisdictionWeight int `koanf:"medium_jurisdiction_weight"`

	ReviewThreshold     int `koanf:"review_threshold"`
	StructuringMinCount int `koanf:"structuring_min_count"`
	VelocityMaxCount    int `koanf:"velocity_max_count"`
}

type ScreeningConfig struct {
	Workers     int           `koanf:"workers"`
	CallTimeout time.Duration `koanf:"call_timeout"`
	MaxRetries  int           `koanf:"max_retries"`
	Backoff     time.Duration `koanf:"backoff"`
}

type BiasConfig struct {
	FailClosed  bool          `koanf:"fail_closed"`
	Concurrency int           `koanf:"concurrency"`
	CallTimeout time.Duration `koanf:"call_timeout"`
	MaxRetries  int           `koanf:"max_retries"`
}

type ProvidersConfig struct {
	Sanctions SanctionsProviderConfig `koanf:"sanctions"`
}

type SanctionsProviderConfig struct {
	// Mode is "reference" for the built-in list or "http" for a remote index
	Mode             string        `koanf:"mode"`
	BaseURL          string        `koanf:"base_url"`
	APIKey           string        `koanf:"api_key"`
	Timeout          time.Duration `koanf:"timeout"`
	RateLimitRPS     int           `koanf:"rate_limit_rps"`
	FailureThreshold int           `koanf:"failure_threshold"`
	RecoveryTimeout  time.Duration `koanf:"recovery_timeout"`
	CacheEnabled     bool          `koanf:"cache_enabled"`
	CacheTTL         time.Duration `koanf:"cache_ttl"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	ServiceName  string  `koanf:"service_name"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

type MetricsConfig struct {
	// Addr enables the Prometheus endpoint when non-empty
	Addr string `koanf:"addr"`
}

type HistoryConfig struct {
	MaxRuns int `koanf:"max_runs"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Scoring: ScoringConfig{
			ReportingThreshold:       10000,
			NearThresholdFloor:       9000,
			LargeAmountThreshold:     50000,
			RoundAmountFloor:         1000,
			RoundAmountUnit:          1000,
			StructuringTotal:         10000,
			RoundAmountWeight:        2,
			NearThresholdWeight:      5,
			LargeAmountWeight:        3,
			ThresholdWeight:          3,
			HighJurisdictionWeight:   5,
			MediumJurisdictionWeight: 2,
			ReviewThreshold:          5,
			StructuringMinCount:      3,
			VelocityMaxCount:         10,
		},
		Screening: ScreeningConfig{
			Workers:     4,
			CallTimeout: 5 * time.Second,
			MaxRetries:  1,
			Backoff:     100 * time.Millisecond,
		},
		Bias: BiasConfig{
			FailClosed:  true,
			Concurrency: 4,
			CallTimeout: 5 * time.Second,
			MaxRetries:  1,
		},
		Providers: ProvidersConfig{
			Sanctions: SanctionsProviderConfig{
				Mode:             "reference",
				Timeout:          10 * time.Second,
				RateLimitRPS:     10,
				FailureThreshold: 5,
				RecoveryTimeout:  30 * time.Second,
				CacheTTL:         time.Hour,
			},
		},
		Redis: RedisConfig{
			URL:          "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "kyt-auditor",
			OTLPEndpoint: "localhost:4317",
			SamplingRate: 1.0,
		},
		History: HistoryConfig{
			MaxRuns: 100,
		},
	}
}

// Load layers defaults, the optional YAML file at path and KYT_ environment
// variables, in that order.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Screening.Workers <= 0 {
		problems = append(problems, "screening.workers must be positive")
	}
	if c.Screening.CallTimeout <= 0 {
		problems = append(problems, "screening.call_timeout must be positive")
	}
	if c.Screening.MaxRetries < 0 {
		problems = append(problems, "screening.max_retries must not be negative")
	}
	if c.Bias.Concurrency <= 0 {
		problems = append(problems, "bias.concurrency must be positive")
	}
	if c.Bias.CallTimeout <= 0 {
		problems = append(problems, "bias.call_timeout must be positive")
	}
	if c.History.MaxRuns < 0 {
		problems = append(problems, "history.max_runs must not be negative")
	}
	switch c.Providers.Sanctions.Mode {
	case "reference":
	case "http":
		if c.Providers.Sanctions.BaseURL == "" {
			problems = append(problems, "providers.sanctions.base_url is required in http mode")
		}
	default:
		problems = append(problems, fmt.Sprintf("providers.sanctions.mode %q is not supported", c.Providers.Sanctions.Mode))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
