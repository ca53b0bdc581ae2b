package providers

import (
	"sync"
	"time"
)

// circuitBreaker trips after consecutive failures and lets a probe through
// once the recovery timeout has elapsed.
type circuitBreaker struct {
	config CircuitConfig
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	successCount    int
	lastFailureTime time.Time
}

func newCircuitBreaker(config CircuitConfig) *circuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	return &circuitBreaker{config: config, now: time.Now, state: CircuitClosed}
}

// Allow reports whether a call may proceed, moving an open circuit to
// half-open once the recovery timeout has passed.
func (cb *circuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.lastFailureTime) < cb.config.RecoveryTimeout {
			return false
		}
		cb.state = CircuitHalfOpen
		cb.successCount = 0
	}
	return true
}

func (cb *circuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successCount++
	switch cb.state {
	case CircuitHalfOpen:
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.state = CircuitClosed
			cb.failureCount = 0
		}
	case CircuitClosed:
		cb.failureCount = 0
	}
}

func (cb *circuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = cb.now()

	if cb.state == CircuitHalfOpen ||
		(cb.state == CircuitClosed && cb.failureCount >= cb.config.FailureThreshold) {
		cb.state = CircuitOpen
	}
}

func (cb *circuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
