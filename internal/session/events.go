package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/autotype/internal/cadence"
	"github.com/verte-zerg/autotype/internal/model"
	"github.com/verte-zerg/autotype/internal/textnorm"
)

// EventKind identifies a status event.
type EventKind int

// Status events.
const (
	EventReady EventKind = iota
	EventCountdown
	EventStarted
	EventProgress
	EventFlowChanged
	EventTypo
	EventPaused
	EventResumed
	EventStopped
	EventCompleted
	EventFailed
	EventRejected
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventCountdown:
		return "countdown"
	case EventStarted:
		return "started"
	case EventProgress:
		return "progress"
	case EventFlowChanged:
		return "flow"
	case EventTypo:
		return "typo"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventStopped:
		return "stopped"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Event is a progress report from the controller.
type Event struct {
	Kind      EventKind
	RunID     string
	State     State
	Position  int
	Total     int
	Typed     int
	Typos     int
	Percent   float64
	WPM       float64
	BaseWPM   float64
	Flow      cadence.FlowState
	Elapsed   time.Duration
	Countdown int
	Summary   textnorm.Summary
	Preview   string
	Err       error

	// Set on stopped, completed and failed events.
	Stats *model.RunStats
	Flows []model.FlowStats
}

// StatusSink receives status events. Report must not block for long.
type StatusSink interface {
	Report(ev Event)
}

// SinkFunc adapts a function to StatusSink.
type SinkFunc func(ev Event)

// Report implements StatusSink.
func (f SinkFunc) Report(ev Event) {
	f(ev)
}

// Sinks fans events out in order.
type Sinks []StatusSink

// Report implements StatusSink.
func (s Sinks) Report(ev Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Report(ev)
		}
	}
}

// LogSink logs every event.
func LogSink(logger *zap.Logger) StatusSink {
	return SinkFunc(func(ev Event) {
		fields := []zap.Field{
			zap.String("event", ev.Kind.String()),
			zap.String("run_id", ev.RunID),
		}
		switch ev.Kind {
		case EventReady:
			logger.Debug("ready", append(fields,
				zap.Int("chars", ev.Summary.Chars),
				zap.Int("position", ev.Position),
				zap.Float64("wpm", ev.BaseWPM),
			)...)
		case EventCountdown:
			logger.Debug("countdown", append(fields, zap.Int("seconds", ev.Countdown))...)
		case EventStarted:
			logger.Info("typing started", append(fields,
				zap.Int("chars", ev.Summary.Chars),
				zap.Int("words", ev.Summary.Words),
				zap.Int("lines", ev.Summary.Lines),
				zap.Int("position", ev.Position),
				zap.Float64("wpm", ev.BaseWPM),
				zap.String("flow", ev.Flow.String()),
			)...)
		case EventProgress:
			logger.Info("progress", append(fields,
				zap.Float64("percent", ev.Percent),
				zap.Float64("wpm", ev.WPM),
				zap.String("flow", ev.Flow.String()),
			)...)
		case EventFlowChanged, EventTypo:
			logger.Debug(ev.Kind.String(), append(fields,
				zap.Int("position", ev.Position),
				zap.String("flow", ev.Flow.String()),
			)...)
		case EventPaused, EventResumed:
			logger.Info("typing "+ev.Kind.String(), append(fields, zap.Int("position", ev.Position))...)
		case EventStopped:
			logger.Info("typing stopped", append(fields,
				zap.Int("position", ev.Position),
				zap.Int("total", ev.Total),
			)...)
		case EventCompleted:
			logger.Info("typing finished", append(fields,
				zap.Int("typed", ev.Typed),
				zap.Duration("elapsed", ev.Elapsed),
				zap.Float64("wpm", ev.WPM),
			)...)
		case EventFailed:
			logger.Error("typing failed", append(fields,
				zap.Int("position", ev.Position),
				zap.Error(ev.Err),
			)...)
		case EventRejected:
			logger.Info("command rejected", append(fields, zap.Error(ev.Err))...)
		}
	})
}
