package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

// HTTPSanctionsConfig contains configuration for the HTTP sanctions client
type HTTPSanctionsConfig struct {
	BaseURL      string        `json:"base_url"`
	APIKey       string        `json:"api_key"`
	Timeout      time.Duration `json:"timeout"`
	RateLimitRPS int           `json:"rate_limit_rps"`
	Top          int           `json:"top"`

	// Relevance at or above which a hit is EXACT; also the divisor that
	// normalises backend relevance to 0..1
	ExactScoreThreshold float64 `json:"exact_score_threshold"`

	CircuitConfig CircuitConfig `json:"circuit_config"`
}

// HTTPSanctions searches a remote sanctions index over HTTP.
type HTTPSanctions struct {
	config      HTTPSanctionsConfig
	client      *http.Client
	rateLimiter *rate.Limiter
	circuit     *circuitBreaker
	logger      *zap.Logger
}

type sanctionsSearchResponse struct {
	Results []sanctionsSearchHit `json:"results"`
}

type sanctionsSearchHit struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Aliases       []string `json:"aliases"`
	SanctionsList string   `json:"sanctions_list"`
	Country       string   `json:"country"`
	Score         float64  `json:"score"`
	Error         string   `json:"error"`
}

// NewHTTPSanctions creates a new HTTP sanctions client
func NewHTTPSanctions(config HTTPSanctionsConfig, logger *zap.Logger) *HTTPSanctions {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimitRPS == 0 {
		config.RateLimitRPS = 10
	}
	if config.Top == 0 {
		config.Top = 5
	}
	if config.ExactScoreThreshold == 0 {
		config.ExactScoreThreshold = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPSanctions{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: rate.NewLimiter(rate.Limit(config.RateLimitRPS), config.RateLimitRPS*2),
		circuit:     newCircuitBreaker(config.CircuitConfig),
		logger:      logger.Named("sanctions_http"),
	}
}

// CircuitState returns the current breaker state
func (p *HTTPSanctions) CircuitState() CircuitState {
	return p.circuit.State()
}

// Search queries the remote index for an entity name
func (p *HTTPSanctions) Search(ctx context.Context, query string) ([]kyt.SanctionsMatch, error) {
	if !p.circuit.Allow() {
		return nil, &ProviderError{
			Code:     ErrCodeCircuitOpen,
			Message:  "Circuit breaker is open",
			Provider: "sanctions",
			Retry:    false,
		}
	}

	if strings.TrimSpace(query) == "" {
		return nil, &ProviderError{
			Code:     ErrCodeInvalidRequest,
			Message:  "Empty query",
			Provider: "sanctions",
			Retry:    false,
		}
	}

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, &ProviderError{
			Code:     ErrCodeRateLimitExceeded,
			Message:  "Rate limit exceeded",
			Provider: "sanctions",
			Retry:    true,
		}
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("top", fmt.Sprintf("%d", p.config.Top))
	searchURL := strings.TrimRight(p.config.BaseURL, "/") + "/v1/sanctions/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, &ProviderError{
			Code:     ErrCodeInvalidRequest,
			Message:  fmt.Sprintf("Failed to create request: %v", err),
			Provider: "sanctions",
			Retry:    false,
		}
	}
	req.Header.Set("Accept", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.circuit.RecordFailure()
		code := ErrCodeConnectionFailed
		if errors.Is(err, context.DeadlineExceeded) {
			code = ErrCodeTimeout
		}
		return nil, &ProviderError{
			Code:     code,
			Message:  fmt.Sprintf("Request failed: %v", err),
			Provider: "sanctions",
			Retry:    true,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		perr := p.handleHTTPError(resp)
		if perr.Retry {
			p.circuit.RecordFailure()
		}
		p.logger.Warn("Sanctions search failed",
			zap.Int("status", resp.StatusCode),
			zap.String("code", perr.Code))
		return nil, perr
	}

	var body sanctionsSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		p.circuit.RecordFailure()
		return nil, &ProviderError{
			Code:     ErrCodeInvalidResponse,
			Message:  fmt.Sprintf("Failed to parse response: %v", err),
			Provider: "sanctions",
			Retry:    false,
		}
	}

	p.circuit.RecordSuccess()
	p.logger.Debug("Sanctions search complete",
		zap.Int("hits", len(body.Results)),
		zap.Duration("duration", time.Since(start)))

	matches := make([]kyt.SanctionsMatch, 0, len(body.Results))
	for _, hit := range body.Results {
		matchType := kyt.MatchFuzzy
		if hit.Score >= p.config.ExactScoreThreshold {
			matchType = kyt.MatchExact
		}
		score := hit.Score / p.config.ExactScoreThreshold
		if score > 1 {
			score = 1
		}
		matches = append(matches, kyt.SanctionsMatch{
			EntityQueried: query,
			EntryID:       hit.ID,
			EntryName:     hit.Name,
			ListName:      hit.SanctionsList,
			MatchScore:    score,
			MatchType:     matchType,
			Error:         hit.Error,
		})
	}
	return matches, nil
}

// handleHTTPError maps a non-200 response to a provider error
func (p *HTTPSanctions) handleHTTPError(resp *http.Response) *ProviderError {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &ProviderError{
			Code:     ErrCodeAuthenticationFailed,
			Message:  "Authentication failed",
			Provider: "sanctions",
			Retry:    false,
		}
	case http.StatusTooManyRequests:
		return &ProviderError{
			Code:     ErrCodeRateLimitExceeded,
			Message:  "Rate limit exceeded",
			Provider: "sanctions",
			Retry:    true,
		}
	case http.StatusBadRequest:
		return &ProviderError{
			Code:     ErrCodeInvalidRequest,
			Message:  "Bad request",
			Provider: "sanctions",
			Retry:    false,
		}
	case http.StatusServiceUnavailable:
		return &ProviderError{
			Code:     ErrCodeProviderUnavailable,
			Message:  "Service unavailable",
			Provider: "sanctions",
			Retry:    true,
		}
	default:
		return &ProviderError{
			Code:     ErrCodeProviderUnavailable,
			Message:  fmt.Sprintf("HTTP %d", resp.StatusCode),
			Provider: "sanctions",
			Retry:    resp.StatusCode >= 500,
		}
	}
}
