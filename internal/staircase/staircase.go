// Package staircase adapts the preparation time of switch trials to the
// participant's accuracy.
package staircase

import "math"

const (
	InitialPrepTime = 0.5
	MinPrepTime     = 0.05
	MaxPrepTime     = 0.6
	frame           = 1.0 / 60
)

// State is carried in the session between trials.
type State struct {
	PrepTime     float64
	SignSwitches int
	Trials       int // completed switch trials
	lastSign     float64
}

func New() State {
	return State{PrepTime: InitialPrepTime}
}

// Update folds one completed switch trial into the staircase. Correct
// answers shrink the preparation time; errors grow it. The step shrinks as
// the direction keeps reversing.
func (s State) Update(correct bool) State {
	sign := 1.0
	if correct {
		sign = -1.0
	}
	s.Trials++

	var step float64
	switch s.Trials {
	case 1:
		step = 16 * frame
	case 2:
		step = 8 * frame
	default:
		step = math.Max(frame, math.Pow(2, float64(3-s.SignSwitches))*frame)
	}
	if s.Trials > 1 && sign != s.lastSign {
		s.SignSwitches++
	}
	s.lastSign = sign
	s.PrepTime = clamp(s.PrepTime+step*sign, MinPrepTime, MaxPrepTime)
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
