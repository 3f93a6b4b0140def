package pipeline

import (
	"context"
	"log/slog"
)

// Severity classifies a log line sent to a ProgressSink
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// ProgressSink receives a run's log lines and progress updates in the order they happen.
// Implementations are called from the run's goroutine.
type ProgressSink interface {
	OnLog(message string, severity Severity)
	OnProgress(completed, total int)
}

// EventKind tells which field of an Event is populated
type EventKind int

const (
	EventLog EventKind = iota
	EventProgress
	EventDone
)

// Event is one message produced by a run started with Start
type Event struct {
	Kind      EventKind
	Message   string
	Severity  Severity
	Completed int
	Total     int
	Summary   *RunSummary
	Err       error
}

// ChannelSink forwards sink calls onto a channel. Sends block, so nothing is dropped.
type ChannelSink struct {
	ctx    context.Context
	events chan<- Event
}

func NewChannelSink(ctx context.Context, events chan<- Event) *ChannelSink {
	return &ChannelSink{ctx: ctx, events: events}
}

func (s *ChannelSink) OnLog(message string, severity Severity) {
	s.send(Event{Kind: EventLog, Message: message, Severity: severity})
}

func (s *ChannelSink) OnProgress(completed, total int) {
	s.send(Event{Kind: EventProgress, Completed: completed, Total: total})
}

func (s *ChannelSink) send(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// Drain replays events onto sink until the channel is closed and returns the final summary.
// It runs on the caller's goroutine, which is where UI updates belong.
func Drain(events <-chan Event, sink ProgressSink) (*RunSummary, error) {
	var (
		summary *RunSummary
		err     error
	)
	for ev := range events {
		switch ev.Kind {
		case EventLog:
			sink.OnLog(ev.Message, ev.Severity)
		case EventProgress:
			sink.OnProgress(ev.Completed, ev.Total)
		case EventDone:
			summary, err = ev.Summary, ev.Err
		}
	}
	return summary, err
}

type multiSink []ProgressSink

func (m multiSink) OnLog(message string, severity Severity) {
	for _, s := range m {
		s.OnLog(message, severity)
	}
}

func (m multiSink) OnProgress(completed, total int) {
	for _, s := range m {
		s.OnProgress(completed, total)
	}
}

// MultiSink fans every call out to each sink in order
func MultiSink(sinks ...ProgressSink) ProgressSink {
	return multiSink(sinks)
}

// LogSink writes events through slog. A nil Logger means slog.Default().
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s LogSink) OnLog(message string, severity Severity) {
	switch severity {
	case SeverityError:
		s.logger().Error(message)
	case SeverityWarning:
		s.logger().Warn(message)
	default:
		s.logger().Info(message)
	}
}

func (s LogSink) OnProgress(completed, total int) {
	s.logger().Info("Progress", "completed", completed, "total", total)
}
