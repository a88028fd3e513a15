// Package marker sends event markers to external recording equipment at the
// moment a frame carrying the event is committed.
package marker

import "go.uber.org/zap"

type Event int

const (
	TrialStart Event = iota + 1
	FirstOnset
	SwitchOnset
	FeedbackOnset
)

func (e Event) String() string {
	switch e {
	case TrialStart:
		return "trial_start"
	case FirstOnset:
		return "first_onset"
	case SwitchOnset:
		return "switch_onset"
	case FeedbackOnset:
		return "feedback_onset"
	}
	return "unknown"
}

// Sink receives events. Mark is called from the render loop and must not
// block.
type Sink interface {
	Mark(e Event, t float64)
}

type Nop struct{}

func (Nop) Mark(Event, float64) {}

// Log writes every event to a zap logger at debug level.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Mark(e Event, t float64) {
	l.Logger.Debug("Marker", zap.Stringer("event", e), zap.Float64("t", t))
}

// Multi fans an event out to several sinks.
type Multi []Sink

func (m Multi) Mark(e Event, t float64) {
	for _, s := range m {
		s.Mark(e, t)
	}
}
