package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

// AuditTrail records the hash-chained audit events of one run. Each event
// hash covers the previous event's hash, so editing any event breaks every
// later link.
type AuditTrail struct {
	now func() time.Time

	mu       sync.Mutex
	events   []kyt.AuditEvent
	lastHash string
}

// NewAuditTrail creates an empty trail stamped by now.
func NewAuditTrail(now func() time.Time) *AuditTrail {
	if now == nil {
		now = time.Now
	}
	return &AuditTrail{now: now}
}

// Record appends an event and returns it with its hash computed.
func (a *AuditTrail) Record(eventType kyt.AuditEventType, stage kyt.StageName, details map[string]string) (kyt.AuditEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq := int64(len(a.events) + 1)
	event := kyt.AuditEvent{
		EventID:      fmt.Sprintf("EVT-%06d", seq),
		SequenceNum:  seq,
		EventType:    eventType,
		Actor:        kyt.SystemActor,
		Timestamp:    a.now().UTC(),
		Stage:        stage,
		Details:      details,
		PreviousHash: a.lastHash,
	}

	hash, err := ComputeEventHash(event)
	if err != nil {
		return kyt.AuditEvent{}, err
	}
	event.EventHash = hash

	a.events = append(a.events, event)
	a.lastHash = hash
	return event, nil
}

// Events returns a copy of the recorded events in sequence order.
func (a *AuditTrail) Events() []kyt.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]kyt.AuditEvent, len(a.events))
	copy(out, a.events)
	return out
}

// ComputeEventHash hashes the integrity fields of an event, including its
// PreviousHash and excluding its own EventHash.
func ComputeEventHash(e kyt.AuditEvent) (string, error) {
	hashData := map[string]interface{}{
		"id":             e.EventID,
		"sequence_num":   e.SequenceNum,
		"timestamp_nano": e.Timestamp.UnixNano(),
		"type":           string(e.EventType),
		"actor":          e.Actor,
		"stage":          string(e.Stage),
		"details":        e.Details,
		"previous_hash":  e.PreviousHash,
	}

	jsonBytes, err := json.Marshal(hashData)
	if err != nil {
		return "", fmt.Errorf("marshaling audit event %s: %w", e.EventID, err)
	}
	hash := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(hash[:]), nil
}

// BreakType categorizes a detected chain break
type BreakType string

const (
	BreakTypeHashMismatch     BreakType = "hash_mismatch"
	BreakTypeMissingPrevious  BreakType = "missing_previous"
	BreakTypeSequenceGap      BreakType = "sequence_gap"
	BreakTypeTimestampReverse BreakType = "timestamp_reverse"
)

// ChainBreak describes one broken link
type ChainBreak struct {
	EventID     string    `json:"event_id"`
	SequenceNum int64     `json:"sequence_num"`
	BreakType   BreakType `json:"break_type"`
	Description string    `json:"description"`
}

// ChainVerificationResult is the outcome of VerifyAuditTrail
type ChainVerificationResult struct {
	IsValid        bool         `json:"is_valid"`
	EventsVerified int          `json:"events_verified"`
	ChainBreaks    []ChainBreak `json:"chain_breaks,omitempty"`
}

// VerifyAuditTrail checks sequence continuity, timestamp order, previous-hash
// links and every event hash. An empty trail is valid.
func VerifyAuditTrail(events []kyt.AuditEvent) ChainVerificationResult {
	result := ChainVerificationResult{IsValid: true}

	var previous *kyt.AuditEvent
	for i := range events {
		event := events[i]
		result.EventsVerified++

		addBreak := func(bt BreakType, description string) {
			result.IsValid = false
			result.ChainBreaks = append(result.ChainBreaks, ChainBreak{
				EventID:     event.EventID,
				SequenceNum: event.SequenceNum,
				BreakType:   bt,
				Description: description,
			})
		}

		expectedPrev := ""
		expectedSeq := int64(1)
		if previous != nil {
			expectedPrev = previous.EventHash
			expectedSeq = previous.SequenceNum + 1
			if event.Timestamp.Before(previous.Timestamp) {
				addBreak(BreakTypeTimestampReverse, "Event timestamp is before previous event")
			}
		}

		if event.SequenceNum != expectedSeq {
			addBreak(BreakTypeSequenceGap, fmt.Sprintf("Expected sequence %d, got %d", expectedSeq, event.SequenceNum))
		}
		if event.PreviousHash != expectedPrev {
			addBreak(BreakTypeMissingPrevious, "Previous hash does not link to the prior event")
		}

		computed, err := ComputeEventHash(event)
		if err != nil || computed != event.EventHash {
			addBreak(BreakTypeHashMismatch, "Hash chain break detected")
		}

		previous = &events[i]
	}
	return result
}
