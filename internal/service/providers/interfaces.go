package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

// SanctionsProvider searches sanctions lists for an entity name. Entries
// with an empty EntryName or a non-empty Error are unresolved and must be
// filtered by the caller.
type SanctionsProvider interface {
	Search(ctx context.Context, query string) ([]kyt.SanctionsMatch, error)
}

// PolicyProvider searches regulatory policy documents. An empty category
// searches all categories.
type PolicyProvider interface {
	Search(ctx context.Context, topic, category string) ([]kyt.PolicyDoc, error)
}

// TextSafetyProvider classifies free text into harm categories.
type TextSafetyProvider interface {
	Classify(ctx context.Context, text string) (*kyt.TextSafetyResult, error)
}

// ReportNarrator renders prose from a finalized report. It receives a copy
// and cannot change the structured report.
type ReportNarrator interface {
	Narrate(ctx context.Context, report kyt.FinalReport) (string, error)
}

// ProviderError represents provider-specific errors
type ProviderError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Provider string `json:"provider"`
	Retry    bool   `json:"retry"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error [%s]: %s", e.Provider, e.Code, e.Message)
}

// IsRetryable reports whether the failed call may be retried
func (e *ProviderError) IsRetryable() bool {
	return e.Retry
}

// Error codes
const (
	ErrCodeConnectionFailed     = "CONNECTION_FAILED"
	ErrCodeAuthenticationFailed = "AUTH_FAILED"
	ErrCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidResponse      = "INVALID_RESPONSE"
	ErrCodeTimeout              = "TIMEOUT"
	ErrCodeProviderUnavailable  = "PROVIDER_UNAVAILABLE"
	ErrCodeCircuitOpen          = "CIRCUIT_OPEN"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitConfig contains circuit breaker configuration
type CircuitConfig struct {
	FailureThreshold int           `json:"failure_threshold"`
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`
	SuccessThreshold int           `json:"success_threshold"`
}
