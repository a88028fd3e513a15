package machine

import (
	"github.com/aforren1/replan-2finger/internal/input"
	"github.com/aforren1/replan-2finger/internal/trial"
)

// Timing classifies a response against the final metronome click.
type Timing int

const (
	Unscored Timing = iota
	OnTime
	TooFast
	TooSlow
)

func (t Timing) String() string {
	switch t {
	case OnTime:
		return "on_time"
	case TooFast:
		return "too_fast"
	case TooSlow:
		return "too_slow"
	}
	return "unscored"
}

// Score classifies press against the click at lastClick (seconds from trial
// start) with a symmetric window. An absent press is too slow. Correctness
// only depends on which channel was pressed.
func Score(press input.Press, spec trial.Spec, lastClick, window float64) (correct bool, timing Timing) {
	if !press.Valid {
		return false, TooSlow
	}
	correct = press.Channel == spec.Second
	delta := press.Time - lastClick
	switch {
	case delta > window:
		timing = TooSlow
	case delta < -window:
		timing = TooFast
	default:
		timing = OnTime
	}
	return correct, timing
}
