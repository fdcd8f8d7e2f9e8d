// SPDX-License-Identifier: MPL-2.0

package progress

import (
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
)

// Event levels, ordered by severity. Success is reported at info severity but
// rendered distinctly so summaries stand out.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelSuccess
	LevelWarn
	LevelError
)

type (
	// Level is the severity of an Event.
	Level int

	// Event is one structured progress record emitted by a build component.
	Event struct {
		Level   Level
		Phase   string // component that emitted the event, e.g. "interpreter"
		Message string
		Attrs   []any // alternating key/value pairs
	}

	// Sink receives progress events. Implementations must tolerate being
	// called from a single goroutine in strict sequence; no ordering across
	// sinks is implied.
	Sink interface {
		Emit(Event)
	}

	// Reporter is a convenience wrapper binding a Sink to a phase name.
	Reporter struct {
		sink  Sink
		phase string
	}

	// LogSink renders events through a charmbracelet/log logger.
	LogSink struct {
		logger *log.Logger
	}

	// Recorder is an in-memory Sink for tests.
	Recorder struct {
		mu     sync.Mutex
		events []Event
	}

	discard struct{}
)

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

func (discard) Emit(Event) {}

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// For returns a Reporter that tags every event with phase. A nil sink
// discards events.
func For(sink Sink, phase string) Reporter {
	if sink == nil {
		sink = Discard
	}
	return Reporter{sink: sink, phase: phase}
}

// Sink returns the underlying sink so callers can hand it to collaborators.
func (r Reporter) Sink() Sink { return r.sink }

func (r Reporter) Debug(msg string, kv ...any)   { r.emit(LevelDebug, msg, kv) }
func (r Reporter) Info(msg string, kv ...any)    { r.emit(LevelInfo, msg, kv) }
func (r Reporter) Success(msg string, kv ...any) { r.emit(LevelSuccess, msg, kv) }
func (r Reporter) Warn(msg string, kv ...any)    { r.emit(LevelWarn, msg, kv) }
func (r Reporter) Error(msg string, kv ...any)   { r.emit(LevelError, msg, kv) }

func (r Reporter) emit(level Level, msg string, kv []any) {
	r.sink.Emit(Event{Level: level, Phase: r.phase, Message: msg, Attrs: kv})
}

// NewLogSink creates a sink writing to w. Debug events are shown only when
// verbose is true.
func NewLogSink(w io.Writer, verbose bool) *LogSink {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "pybundle",
		ReportTimestamp: false,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return &LogSink{logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(e Event) {
	l := s.logger
	if e.Phase != "" {
		l = l.WithPrefix(e.Phase)
	}
	switch e.Level {
	case LevelDebug:
		l.Debug(e.Message, e.Attrs...)
	case LevelInfo:
		l.Info(e.Message, e.Attrs...)
	case LevelSuccess:
		l.Info("✓ "+e.Message, e.Attrs...)
	case LevelWarn:
		l.Warn(e.Message, e.Attrs...)
	default:
		l.Error(e.Message, e.Attrs...)
	}
}

// Emit implements Sink.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of every recorded event in emission order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Messages returns the messages of recorded events at the given level.
func (r *Recorder) Messages(level Level) []string {
	var out []string
	for _, e := range r.Events() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Warnings is shorthand for Messages(LevelWarn).
func (r *Recorder) Warnings() []string { return r.Messages(LevelWarn) }

// Phases returns the distinct phases in first-seen order.
func (r *Recorder) Phases() []string {
	var out []string
	for _, e := range r.Events() {
		if !slices.Contains(out, e.Phase) {
			out = append(out, e.Phase)
		}
	}
	return out
}
