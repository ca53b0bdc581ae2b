package pipeline

import (
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/davidleathers/kyt-auditor/internal/domain/errors"
	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

func finishedRun(t *testing.T, id string) *kyt.AnalysisRun {
	t.Helper()
	run := kyt.NewAnalysisRun(id, 1, fixedTime)
	require.NoError(t, run.Start(fixedTime))
	require.NoError(t, run.RecordStage(kyt.StageForensic, &kyt.StageResult{Status: kyt.StageCompleted}))
	require.NoError(t, run.Complete(fixedTime.Add(time.Second)))
	return run
}

func TestHistory_Eviction(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Append(finishedRun(t, fmt.Sprintf("R%d", i)))
	}

	runs := h.Snapshot()
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"R3", "R4", "R5"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	_, err := h.Run("R1")
	assert.ErrorIs(t, err, apperrors.ErrRunNotFound)
}

func TestHistory_Unbounded(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < 50; i++ {
		h.Append(finishedRun(t, fmt.Sprintf("R%d", i)))
	}
	assert.Equal(t, 50, h.Len())
}

func TestHistory_SnapshotIsolation(t *testing.T) {
	h := NewHistory(0)
	original := finishedRun(t, "R1")
	h.Append(original)

	original.Status = kyt.RunFailed
	original.StageResults[kyt.StageCompliance] = &kyt.StageResult{Status: kyt.StageError}

	snap := h.Snapshot()
	snap[0].StageResults[kyt.StageForensic].Status = kyt.StageError
	*snap[0].CompletedAt = time.Time{}

	run, err := h.Run("R1")
	require.NoError(t, err)
	assert.Equal(t, kyt.RunCompleted, run.Status)
	assert.Len(t, run.StageResults, 1)
	assert.Equal(t, kyt.StageCompleted, run.StageResults[kyt.StageForensic].Status)
	assert.False(t, run.CompletedAt.IsZero())
}

func TestHistory_DiagnosticsIsolation(t *testing.T) {
	h := NewHistory(0)
	run := kyt.NewAnalysisRun("R1", 1, fixedTime)
	require.NoError(t, run.Start(fixedTime))
	require.NoError(t, run.RecordStage(kyt.StageCompliance, &kyt.StageResult{
		Status:      kyt.StageError,
		Diagnostics: []kyt.Diagnostic{{Stage: kyt.StageCompliance, Subject: "Bad Corp", Code: "TIMEOUT"}},
	}))
	require.NoError(t, run.Complete(fixedTime))
	h.Append(run)

	snap := h.Snapshot()
	snap[0].StageResults[kyt.StageCompliance].Diagnostics[0].Code = "REWRITTEN"

	stored, err := h.Run("R1")
	require.NoError(t, err)
	assert.Equal(t, "TIMEOUT", stored.StageResults[kyt.StageCompliance].Diagnostics[0].Code)
}

func TestHistory_ConcurrentAppend(t *testing.T) {
	h := NewHistory(0)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Append(finishedRun(t, fmt.Sprintf("R%d", i)))
			_ = h.Snapshot()
		}(i)
	}
	wg.Wait()

	runs := h.Snapshot()
	require.Len(t, runs, 100)
	seen := map[string]bool{}
	for _, r := range runs {
		seen[r.ID] = true
	}
	assert.Len(t, seen, 100)
}

func TestNewRunID(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 5, 7, 0, time.FixedZone("EST", -5*3600))
	id := NewRunID(now)
	assert.Regexp(t, regexp.MustCompile(`^KYT-20240301-140507-[0-9a-f]{8}$`), id)
	assert.NotEqual(t, id, NewRunID(now))
}
