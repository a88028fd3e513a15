package machine

import (
	"github.com/aforren1/replan-2finger/internal/clock"
	"github.com/aforren1/replan-2finger/internal/input"
	"github.com/aforren1/replan-2finger/internal/staircase"
)

// EffectKind names an action deferred to the next committed frame.
type EffectKind int

const (
	PlayMetronome EffectKind = iota + 1
	ArmTrialTimer
	ArmFeedbackTimer
	ArmPostTimer
	RecordTrialStart
	RecordSwitch
	RecordFirstOnset
)

func (k EffectKind) String() string {
	switch k {
	case PlayMetronome:
		return "play_metronome"
	case ArmTrialTimer:
		return "arm_trial_timer"
	case ArmFeedbackTimer:
		return "arm_feedback_timer"
	case ArmPostTimer:
		return "arm_post_timer"
	case RecordTrialStart:
		return "record_trial_start"
	case RecordSwitch:
		return "record_switch"
	case RecordFirstOnset:
		return "record_first_onset"
	}
	return "unknown"
}

// Effect is queued on the session and applied exactly once, right after the
// display commits the frame drawn in the same tick.
type Effect struct {
	Kind     EffectKind
	Duration float64
}

// Session is the whole mutable state of an experiment run. It is passed into
// and returned from every evaluation; nothing else holds trial state.
type Session struct {
	Phase      Phase
	TrialIndex int
	TrialStart float64

	// FirstPress is the first response since the fields were last cleared,
	// relative to TrialStart.
	FirstPress input.Press
	DeviceOn   bool

	// Scored is FirstPress frozen at the end of the response window.
	Scored  input.Press
	Correct bool
	Timing  Timing

	Switched       bool
	RealSwitchTime float64

	TrialTimer    clock.Countdown
	FeedbackTimer clock.Countdown
	PostTimer     clock.Countdown

	Staircase staircase.State

	Pending []Effect
}

func NewSession() Session {
	return Session{Phase: Wait, Staircase: staircase.New()}
}

// schedule appends effects without sharing the backing array of the caller's
// copy.
func (s Session) schedule(effects ...Effect) Session {
	pending := make([]Effect, 0, len(s.Pending)+len(effects))
	pending = append(pending, s.Pending...)
	s.Pending = append(pending, effects...)
	return s
}

func (s Session) clearResponse() Session {
	s.FirstPress = input.Press{}
	s.Scored = input.Press{}
	s.Correct = false
	s.Timing = Unscored
	s.Switched = false
	s.RealSwitchTime = 0
	return s
}

// PrepTime is the interval between the committed switch and the scored
// press; ok is false when either is missing.
func (s Session) PrepTime() (float64, bool) {
	if !s.Scored.Valid || !s.Switched {
		return 0, false
	}
	return s.Scored.Time - s.RealSwitchTime, true
}
