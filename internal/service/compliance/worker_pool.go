package compliance

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
	"github.com/davidleathers/kyt-auditor/internal/service/providers"
)

// screeningTask is one entity to search, tagged with its position in the
// entity list so results can be merged in input order.
type screeningTask struct {
	Index  int
	Entity string
}

// screeningResult is the outcome of one screeningTask
type screeningResult struct {
	Index    int
	Entity   string
	Matches  []kyt.SanctionsMatch
	Attempts int
	Error    error
	Duration time.Duration
}

// WorkerPoolStatus reports pool counters
type WorkerPoolStatus struct {
	ActiveWorkers  int   `json:"active_workers"`
	CompletedTasks int64 `json:"completed_tasks"`
	FailedTasks    int64 `json:"failed_tasks"`
}

// screeningPool runs sanctions searches on a fixed number of workers.
// A pool serves a single ScreenEntities call.
type screeningPool struct {
	workers  int
	provider providers.SanctionsProvider
	policy   providers.CallPolicy
	logger   *zap.Logger

	taskChan   chan screeningTask
	resultChan chan screeningResult
	wg         sync.WaitGroup

	completedTasks int64
	failedTasks    int64
}

func newScreeningPool(workers int, provider providers.SanctionsProvider, policy providers.CallPolicy, logger *zap.Logger) *screeningPool {
	if workers < 1 {
		workers = 1
	}
	return &screeningPool{
		workers:    workers,
		provider:   provider,
		policy:     policy,
		logger:     logger,
		taskChan:   make(chan screeningTask, workers*2),
		resultChan: make(chan screeningResult, workers*2),
	}
}

// run screens every entity and returns the results indexed by entity
// position. Workers stop taking tasks once ctx is cancelled; entities never
// started are left with a zero result and ctx.Err() is returned.
func (wp *screeningPool) run(ctx context.Context, entities []string) ([]screeningResult, error) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}

	go func() {
		defer close(wp.taskChan)
		for i, entity := range entities {
			select {
			case wp.taskChan <- screeningTask{Index: i, Entity: entity}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wp.wg.Wait()
		close(wp.resultChan)
	}()

	results := make([]screeningResult, len(entities))
	for result := range wp.resultChan {
		results[result.Index] = result
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// Status returns the current pool counters
func (wp *screeningPool) Status() WorkerPoolStatus {
	return WorkerPoolStatus{
		ActiveWorkers:  wp.workers,
		CompletedTasks: atomic.LoadInt64(&wp.completedTasks),
		FailedTasks:    atomic.LoadInt64(&wp.failedTasks),
	}
}

func (wp *screeningPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	logger := wp.logger.With(zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Worker stopping", zap.Error(ctx.Err()))
			return
		case task, ok := <-wp.taskChan:
			if !ok {
				return
			}

			result := wp.processTask(ctx, task)
			if result.Error == nil {
				atomic.AddInt64(&wp.completedTasks, 1)
			} else {
				atomic.AddInt64(&wp.failedTasks, 1)
			}

			// resultChan is drained until every worker exits
			wp.resultChan <- result
		}
	}
}

func (wp *screeningPool) processTask(ctx context.Context, task screeningTask) screeningResult {
	start := time.Now()
	matches, attempts, err := providers.Call(ctx, wp.policy, func(callCtx context.Context) ([]kyt.SanctionsMatch, error) {
		return wp.provider.Search(callCtx, task.Entity)
	})

	result := screeningResult{
		Index:    task.Index,
		Entity:   task.Entity,
		Matches:  matches,
		Attempts: attempts,
		Error:    err,
		Duration: time.Since(start),
	}

	wp.logger.Debug("Entity screened",
		zap.String("entity", task.Entity),
		zap.Int("matches", len(matches)),
		zap.Int("attempts", attempts),
		zap.Duration("duration", result.Duration),
		zap.Error(err))

	return result
}
