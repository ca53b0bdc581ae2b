package pipeline

import (
	"sync"

	apperrors "github.com/davidleathers/kyt-auditor/internal/domain/errors"
	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

// History is the append-only record of finished runs. When MaxRuns is
// positive the oldest runs are evicted first. Runs go in and come out as
// clones; only StageResult.Payload is shared, so callers must not mutate it.
type History struct {
	mu      sync.RWMutex
	runs    []*kyt.AnalysisRun
	maxRuns int
}

func NewHistory(maxRuns int) *History {
	return &History{maxRuns: maxRuns}
}

// Append stores a copy of a terminal run and returns the retained count.
func (h *History) Append(run *kyt.AnalysisRun) int {
	c := run.Clone()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.runs = append(h.runs, c)
	if h.maxRuns > 0 && len(h.runs) > h.maxRuns {
		drop := len(h.runs) - h.maxRuns
		kept := make([]*kyt.AnalysisRun, h.maxRuns)
		copy(kept, h.runs[drop:])
		h.runs = kept
	}
	return len(h.runs)
}

// Snapshot returns copies of the retained runs, oldest first.
func (h *History) Snapshot() []*kyt.AnalysisRun {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*kyt.AnalysisRun, len(h.runs))
	for i, r := range h.runs {
		out[i] = r.Clone()
	}
	return out
}

// Run returns a copy of the most recent run with the given id.
func (h *History) Run(id string) (*kyt.AnalysisRun, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.runs) - 1; i >= 0; i-- {
		if h.runs[i].ID == id {
			return h.runs[i].Clone(), nil
		}
	}
	return nil, apperrors.ErrRunNotFound
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.runs)
}
