package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

// EventType identifies a progress milestone
type EventType string

const (
	EventRunStarted     EventType = "run.start"
	EventStageStarted   EventType = "stage.start"
	EventStageCompleted EventType = "stage.complete"
	EventRunCompleted   EventType = "run.complete"
	EventRunFailed      EventType = "run.failed"
)

// Event is a progress notification. Progress runs from 0 to 1.
type Event struct {
	Type      EventType
	RunID     string
	Stage     kyt.StageName
	Status    string
	Progress  float64
	Timestamp time.Time
}

// Observer receives progress events. Observers are informational and cannot
// affect the run; they are called synchronously on the run's goroutine.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) OnEvent(ctx context.Context, event Event) { f(ctx, event) }

// MultiObserver fans out events to multiple observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver forwards events to every non-nil observer.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}
	return &MultiObserver{observers: filtered}
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}

// LogObserver writes progress events to a zap logger at debug level.
type LogObserver struct {
	logger *zap.Logger
}

func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger.Named("progress")}
}

func (l *LogObserver) OnEvent(ctx context.Context, event Event) {
	l.logger.Debug("Pipeline progress",
		zap.String("event", string(event.Type)),
		zap.String("run_id", event.RunID),
		zap.String("stage", string(event.Stage)),
		zap.String("status", event.Status),
		zap.Float64("progress", event.Progress))
}

type milestone struct {
	start, end float64
}

const (
	progressRunStarted   = 0.1
	progressRunCompleted = 1.0
)

var stageMilestones = map[kyt.StageName]milestone{
	kyt.StageForensic:   {start: 0.15, end: 0.35},
	kyt.StageCompliance: {start: 0.4, end: 0.65},
	kyt.StageBias:       {start: 0.7, end: 0.8},
	kyt.StageReport:     {start: 0.85, end: 0.95},
}
