package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

func recordTrail(t *testing.T, n int) []kyt.AuditEvent {
	trail := NewAuditTrail(fixedClock())
	for i := 0; i < n; i++ {
		_, err := trail.Record(kyt.AuditStageCompleted, kyt.Stages[i%len(kyt.Stages)], map[string]string{"index": string(rune('a' + i))})
		require.NoError(t, err)
	}
	return trail.Events()
}

func TestAuditTrail_Record(t *testing.T) {
	events := recordTrail(t, 3)

	require.Len(t, events, 3)
	assert.Equal(t, "EVT-000001", events[0].EventID)
	assert.Equal(t, int64(3), events[2].SequenceNum)
	assert.Equal(t, kyt.SystemActor, events[1].Actor)
	assert.Empty(t, events[0].PreviousHash)
	assert.Equal(t, events[0].EventHash, events[1].PreviousHash)
	assert.Equal(t, events[1].EventHash, events[2].PreviousHash)
	assert.True(t, events[1].Timestamp.After(events[0].Timestamp))

	again := recordTrail(t, 3)
	assert.Equal(t, events, again)
}

func TestVerifyAuditTrail(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func([]kyt.AuditEvent)
		wantBreak BreakType
	}{
		{
			name: "intact",
		},
		{
			name:      "edited details",
			mutate:    func(e []kyt.AuditEvent) { e[1].Details = map[string]string{"index": "z"} },
			wantBreak: BreakTypeHashMismatch,
		},
		{
			name:      "relinked",
			mutate:    func(e []kyt.AuditEvent) { e[2].PreviousHash = e[0].EventHash },
			wantBreak: BreakTypeMissingPrevious,
		},
		{
			name:      "sequence gap",
			mutate:    func(e []kyt.AuditEvent) { e[2].SequenceNum = 7 },
			wantBreak: BreakTypeSequenceGap,
		},
		{
			name:      "timestamp reversed",
			mutate:    func(e []kyt.AuditEvent) { e[2].Timestamp = e[0].Timestamp.Add(-1) },
			wantBreak: BreakTypeTimestampReverse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := recordTrail(t, 3)
			if tt.mutate != nil {
				tt.mutate(events)
			}

			result := VerifyAuditTrail(events)
			assert.Equal(t, 3, result.EventsVerified)
			if tt.wantBreak == "" {
				assert.True(t, result.IsValid)
				assert.Empty(t, result.ChainBreaks)
				return
			}
			assert.False(t, result.IsValid)
			types := make([]BreakType, 0, len(result.ChainBreaks))
			for _, b := range result.ChainBreaks {
				types = append(types, b.BreakType)
			}
			assert.Contains(t, types, tt.wantBreak)
		})
	}

	assert.True(t, VerifyAuditTrail(nil).IsValid)
}
