// Package machine is the frame-synchronised trial engine. It advances a
// Session through the per-trial phases one guarded transition per display
// tick and defers everything that must line up with a visible frame until
// the display reports the frame as committed.
package machine

import (
	"go.uber.org/zap"

	"github.com/aforren1/replan-2finger/internal/clock"
	"github.com/aforren1/replan-2finger/internal/input"
	"github.com/aforren1/replan-2finger/internal/marker"
	"github.com/aforren1/replan-2finger/internal/record"
	"github.com/aforren1/replan-2finger/internal/trial"
)

// Display reports on the most recently committed frame.
type Display interface {
	// FrameTimestamp is the clock time of the last committed frame.
	FrameTimestamp() float64
	// FramePeriod is the measured refresh interval.
	FramePeriod() float64
}

// Audio plays the pre-rendered click train and the reward cue.
type Audio interface {
	PlayMetronome()
	PlayReward()
	// LastClickOffset is the time from playback start to the onset of the
	// final click.
	LastClickOffset() float64
	// Position is how far the current click train has been handed to the
	// output, in seconds.
	Position() float64
}

// Presentation draws one experiment variant's stimuli. Calls toggle what is
// drawn from the next frame on.
type Presentation interface {
	// Begin hides the start prompt and reveals fixation and the input dot.
	Begin()
	ShowFirst(spec trial.Spec)
	ShowSecond(spec trial.Spec)
	ShowFeedback(correct bool, timing Timing)
	// Reset hides stimuli and feedback text and restores neutral colours.
	Reset()
}

// Recorder appends one row per completed trial.
type Recorder interface {
	Append(record.Row) error
}

// Options holds the timing constants and the per-variant switches.
type Options struct {
	Subject string

	// LeadIn is the delay after playback start before the first stimulus.
	LeadIn float64
	// TrialTail is how long the response window stays open after the last
	// click.
	TrialTail        float64
	FeedbackDuration float64
	PostDuration     float64
	// TimingWindow is the half-width of the on-time window around the last
	// click.
	TimingWindow float64

	// PostTrialNeedsResponse adds "a response has been registered" to the
	// guards of PostTrial → Pretrial.
	PostTrialNeedsResponse bool
	// EndPast ends the session once the trial index is strictly greater
	// than the table length instead of greater or equal.
	EndPast bool

	Adaptive bool
}

func DefaultOptions() Options {
	return Options{
		LeadIn:                 0.1,
		TrialTail:              0.2,
		FeedbackDuration:       0.3,
		PostDuration:           0.1,
		TimingWindow:           0.075,
		PostTrialNeedsResponse: true,
	}
}

// Deps are the capability providers the machine calls into.
type Deps struct {
	Clock        clock.Clock
	Display      Display
	Audio        Audio
	Presentation Presentation
	Recorder     Recorder
	Table        *trial.Table
	Marker       marker.Sink
	Logger       *zap.Logger
	// OnCleanup runs once when the session reaches Cleanup.
	OnCleanup func(Session)
}

type Machine struct {
	Deps
	opts        Options
	transitions []transition
}

func New(deps Deps, opts Options) *Machine {
	if deps.Marker == nil {
		deps.Marker = marker.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	m := &Machine{Deps: deps, opts: opts}
	m.transitions = m.buildTransitions()
	return m
}

func (m *Machine) Options() Options { return m.opts }

// Tick runs one driver step after the previous frame was committed: update
// the response state, evaluate one transition, then honour an abort.
func (m *Machine) Tick(s Session, r input.Reading, abort bool) (Session, error) {
	s = m.Observe(s, r)
	s, err := m.Step(s)
	if err != nil {
		return s, err
	}
	if abort {
		s = m.Abort(s)
	}
	return s, nil
}

// Observe copies the input snapshot into the session. Only the first onset
// after the response fields were cleared is kept.
func (m *Machine) Observe(s Session, r input.Reading) Session {
	s.DeviceOn = r.Active
	if !s.FirstPress.Valid && r.Onset {
		s.FirstPress = r.RelativeTo(s.TrialStart)
		m.Logger.Debug("Response registered",
			zap.Int("trial", s.TrialIndex),
			zap.Int("channel", s.FirstPress.Channel),
			zap.Float64("time", s.FirstPress.Time))
	}
	return s
}

// Step fires the first transition out of the current phase whose guards
// all hold. With no satisfied guard the session is returned untouched.
func (m *Machine) Step(s Session) (Session, error) {
	if s.Phase.Terminal() {
		return s, nil
	}
	now := m.Clock.Now()
	fp := m.Display.FramePeriod()
	for _, tr := range m.transitions {
		if tr.source != s.Phase || !tr.permitted(s, now, fp) {
			continue
		}
		next := s
		if tr.action != nil {
			var err error
			next, err = tr.action(s, now, fp)
			if err != nil {
				return s, err
			}
		}
		next.Phase = tr.dest
		m.Logger.Debug("Transition",
			zap.Stringer("from", tr.source),
			zap.Stringer("to", tr.dest),
			zap.Int("trial", next.TrialIndex),
			zap.Float64("now", now))
		return next, nil
	}
	return s, nil
}

// Abort forces Cleanup from any phase, bypassing every guard. Effects not
// yet committed are dropped.
func (m *Machine) Abort(s Session) Session {
	if s.Phase.Terminal() {
		return s
	}
	m.Logger.Info("Session aborted", zap.Stringer("phase", s.Phase), zap.Int("trial", s.TrialIndex))
	s.Phase = Cleanup
	s.Pending = nil
	m.cleanup(s)
	return s
}

// Flipped drains the effects scheduled before the frame that was just
// committed. Each effect runs exactly once.
func (m *Machine) Flipped(s Session) Session {
	if len(s.Pending) == 0 {
		return s
	}
	frameT := m.Display.FrameTimestamp()
	now := m.Clock.Now()
	pending := s.Pending
	s.Pending = nil
	for _, e := range pending {
		switch e.Kind {
		case PlayMetronome:
			m.Audio.PlayMetronome()
			m.Marker.Mark(marker.TrialStart, frameT)
		case ArmTrialTimer:
			s.TrialTimer.Reset(now, e.Duration)
		case ArmFeedbackTimer:
			s.FeedbackTimer.Reset(now, e.Duration)
			m.Marker.Mark(marker.FeedbackOnset, frameT)
		case ArmPostTimer:
			s.PostTimer.Reset(now, e.Duration)
		case RecordTrialStart:
			s.TrialStart = frameT
		case RecordSwitch:
			s.Switched = true
			s.RealSwitchTime = frameT - s.TrialStart
			m.Marker.Mark(marker.SwitchOnset, frameT)
			m.Logger.Debug("Switch committed",
				zap.Int("trial", s.TrialIndex),
				zap.Float64("intended", m.Audio.LastClickOffset()-m.switchTime(s)),
				zap.Float64("actual", s.RealSwitchTime),
				zap.Float64("audio", m.Audio.Position()))
		case RecordFirstOnset:
			m.Marker.Mark(marker.FirstOnset, frameT)
			m.Logger.Debug("First target committed",
				zap.Int("trial", s.TrialIndex),
				zap.Float64("intended", m.opts.LeadIn),
				zap.Float64("actual", frameT-s.TrialStart),
				zap.Float64("audio", m.Audio.Position()))
		}
	}
	return s
}

func (m *Machine) cleanup(s Session) {
	if m.OnCleanup != nil {
		m.OnCleanup(s)
	}
}
