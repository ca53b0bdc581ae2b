package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

func TestHTTPSanctions_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sanctions/search", r.URL.Path)
		assert.Equal(t, "ACME Shell Corporation", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("top"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"id":"SDN-001","name":"ACME Shell Corporation","sanctions_list":"OFAC SDN","score":12.5},
			{"id":"SDN-003","name":"XYZ Holdings International","sanctions_list":"OFAC SDN","score":4},
			{"id":"","name":"","sanctions_list":"","score":0,"error":"index unavailable"}
		]}`))
	}))
	defer server.Close()

	p := NewHTTPSanctions(HTTPSanctionsConfig{BaseURL: server.URL, APIKey: "test-key"}, zaptest.NewLogger(t))

	matches, err := p.Search(context.Background(), "ACME Shell Corporation")
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "SDN-001", matches[0].EntryID)
	assert.Equal(t, kyt.MatchExact, matches[0].MatchType)
	assert.Equal(t, 1.0, matches[0].MatchScore)

	assert.Equal(t, kyt.MatchFuzzy, matches[1].MatchType)
	assert.InDelta(t, 0.4, matches[1].MatchScore, 0.0001)

	assert.Equal(t, "index unavailable", matches[2].Error)
	assert.Equal(t, CircuitClosed, p.CircuitState())
}

func TestHTTPSanctions_StatusMapping(t *testing.T) {
	tests := []struct {
		status    int
		wantCode  string
		wantRetry bool
	}{
		{http.StatusUnauthorized, ErrCodeAuthenticationFailed, false},
		{http.StatusForbidden, ErrCodeAuthenticationFailed, false},
		{http.StatusTooManyRequests, ErrCodeRateLimitExceeded, true},
		{http.StatusBadRequest, ErrCodeInvalidRequest, false},
		{http.StatusServiceUnavailable, ErrCodeProviderUnavailable, true},
		{http.StatusInternalServerError, ErrCodeProviderUnavailable, true},
		{http.StatusNotFound, ErrCodeProviderUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			p := NewHTTPSanctions(HTTPSanctionsConfig{BaseURL: server.URL}, zaptest.NewLogger(t))
			_, err := p.Search(context.Background(), "Shadow Finance Group")

			var perr *ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantCode, perr.Code)
			assert.Equal(t, tt.wantRetry, perr.IsRetryable())
		})
	}
}

func TestHTTPSanctions_InvalidInput(t *testing.T) {
	p := NewHTTPSanctions(HTTPSanctionsConfig{BaseURL: "http://127.0.0.1:1"}, zaptest.NewLogger(t))

	_, err := p.Search(context.Background(), "  ")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrCodeInvalidRequest, perr.Code)
}

func TestHTTPSanctions_BadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	p := NewHTTPSanctions(HTTPSanctionsConfig{BaseURL: server.URL}, zaptest.NewLogger(t))
	_, err := p.Search(context.Background(), "ACME")

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrCodeInvalidResponse, perr.Code)
	assert.False(t, perr.Retry)
}

func TestHTTPSanctions_CircuitOpens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewHTTPSanctions(HTTPSanctionsConfig{
		BaseURL: server.URL,
		CircuitConfig: CircuitConfig{
			FailureThreshold: 2,
			RecoveryTimeout:  time.Minute,
		},
	}, zaptest.NewLogger(t))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := p.Search(ctx, "ACME")
		require.Error(t, err)
	}
	assert.Equal(t, CircuitOpen, p.CircuitState())

	_, err := p.Search(ctx, "ACME")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrCodeCircuitOpen, perr.Code)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := newCircuitBreaker(CircuitConfig{FailureThreshold: 1, RecoveryTimeout: time.Second, SuccessThreshold: 2})
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, CircuitHalfOpen, cb.State())
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	now = now.Add(2 * time.Second)
	require.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.Equal(t, "open", cb.State().String())
}
