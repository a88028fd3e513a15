package machine

import (
	"math"

	"go.uber.org/zap"

	"github.com/aforren1/replan-2finger/internal/record"
	"github.com/aforren1/replan-2finger/internal/trial"
)

type guard func(s Session, now, fp float64) bool

type action func(s Session, now, fp float64) (Session, error)

type transition struct {
	source Phase
	guards []guard
	action action
	dest   Phase
}

func (t transition) permitted(s Session, now, fp float64) bool {
	for _, g := range t.guards {
		if !g(s, now, fp) {
			return false
		}
	}
	return true
}

// buildTransitions lays out the phase graph. Order matters: the first
// permitted transition out of a phase wins.
func (m *Machine) buildTransitions() []transition {
	nextTrial := []guard{m.postTimerElapsed}
	if m.opts.PostTrialNeedsResponse {
		nextTrial = append(nextTrial, m.responseRegistered)
	}
	return []transition{
		{source: Wait, guards: []guard{m.responseRegistered}, action: m.begin, dest: Pretrial},
		{source: Pretrial, guards: []guard{m.inputReleased}, action: m.startTrial, dest: EnterTrial},
		{source: EnterTrial, guards: []guard{m.leadInPassed}, action: m.showFirst, dest: FirstTarget},
		{source: FirstTarget, guards: []guard{m.switchDue}, action: m.showSecond, dest: SecondTarget},
		{source: SecondTarget, guards: []guard{m.trialTimerElapsed}, action: m.score, dest: Feedback},
		{source: Feedback, guards: []guard{m.feedbackTimerElapsed}, action: m.finishTrial, dest: PostTrial},
		{source: PostTrial, guards: []guard{m.postTimerElapsed, m.tableExhausted}, action: m.finish, dest: Cleanup},
		{source: PostTrial, guards: nextTrial, dest: Pretrial},
	}
}

// trialLength is the trial timer's span: the click train plus the tail.
func (m *Machine) trialLength() float64 {
	return m.Audio.LastClickOffset() + m.opts.TrialTail
}

func (m *Machine) spec(s Session) trial.Spec {
	return m.Table.At(s.TrialIndex)
}

// switchTime is the current trial's switch time, taken from the staircase
// on adaptive switch trials.
func (m *Machine) switchTime(s Session) float64 {
	spec := m.spec(s)
	if m.opts.Adaptive && spec.IsSwitch() {
		return s.Staircase.PrepTime
	}
	return spec.SwitchTime
}

// guards

func (m *Machine) responseRegistered(s Session, _, _ float64) bool {
	return s.FirstPress.Valid
}

func (m *Machine) inputReleased(s Session, _, _ float64) bool {
	return !s.DeviceOn
}

func (m *Machine) leadInPassed(s Session, now, fp float64) bool {
	return m.trialLength()-s.TrialTimer.Remaining(now)+fp >= m.opts.LeadIn
}

func (m *Machine) switchDue(s Session, now, fp float64) bool {
	return s.TrialTimer.Remaining(now)-m.opts.TrialTail-fp <= m.switchTime(s)
}

func (m *Machine) trialTimerElapsed(s Session, now, _ float64) bool {
	return s.TrialTimer.Elapsed(now)
}

func (m *Machine) feedbackTimerElapsed(s Session, now, _ float64) bool {
	return s.FeedbackTimer.Elapsed(now)
}

func (m *Machine) postTimerElapsed(s Session, now, _ float64) bool {
	return s.PostTimer.Elapsed(now)
}

func (m *Machine) tableExhausted(s Session, _, _ float64) bool {
	if m.opts.EndPast {
		return s.TrialIndex > m.Table.Len()
	}
	return s.TrialIndex >= m.Table.Len()
}

// actions

func (m *Machine) begin(s Session, _, _ float64) (Session, error) {
	m.Presentation.Begin()
	return s, nil
}

func (m *Machine) startTrial(s Session, _, fp float64) (Session, error) {
	s = s.schedule(
		Effect{Kind: PlayMetronome},
		Effect{Kind: ArmTrialTimer, Duration: m.trialLength() - fp},
		Effect{Kind: RecordTrialStart},
	)
	return s.clearResponse(), nil
}

func (m *Machine) showFirst(s Session, _, _ float64) (Session, error) {
	m.Presentation.ShowFirst(m.spec(s))
	return s.schedule(Effect{Kind: RecordFirstOnset}), nil
}

func (m *Machine) showSecond(s Session, _, _ float64) (Session, error) {
	m.Presentation.ShowSecond(m.spec(s))
	return s.schedule(Effect{Kind: RecordSwitch}), nil
}

func (m *Machine) score(s Session, _, fp float64) (Session, error) {
	spec := m.spec(s)
	s.Scored = s.FirstPress
	s.Correct, s.Timing = Score(s.Scored, spec, m.Audio.LastClickOffset(), m.opts.TimingWindow)
	m.Presentation.ShowFeedback(s.Correct, s.Timing)
	if s.Correct && s.Timing == OnTime {
		m.Audio.PlayReward()
	}
	m.Logger.Debug("Trial scored",
		zap.Int("trial", s.TrialIndex),
		zap.Bool("correct", s.Correct),
		zap.Stringer("timing", s.Timing))
	return s.schedule(Effect{Kind: ArmFeedbackTimer, Duration: m.opts.FeedbackDuration - fp}), nil
}

func (m *Machine) finishTrial(s Session, _, fp float64) (Session, error) {
	m.Presentation.Reset()

	row := m.row(s)
	if err := m.Recorder.Append(row); err != nil {
		return s, err
	}
	m.Logger.Info("Trial recorded",
		zap.Int("index", row.Index),
		zap.Int("first", row.FirstTarget),
		zap.Int("second", row.SecondTarget),
		zap.Bool("correct", row.Correct),
		zap.Stringer("timing", s.Timing))

	if m.opts.Adaptive && m.spec(s).IsSwitch() {
		s.Staircase = s.Staircase.Update(s.Correct)
		m.Logger.Info("Staircase updated",
			zap.Int("switch_trials", s.Staircase.Trials),
			zap.Int("sign_switches", s.Staircase.SignSwitches),
			zap.Float64("prep_time", s.Staircase.PrepTime))
	}

	s.TrialIndex++
	return s.schedule(Effect{Kind: ArmPostTimer, Duration: m.opts.PostDuration - fp}), nil
}

func (m *Machine) finish(s Session, _, _ float64) (Session, error) {
	m.Logger.Info("Trial table finished", zap.Int("trials", s.TrialIndex))
	m.cleanup(s)
	return s, nil
}

func (m *Machine) row(s Session) record.Row {
	spec := m.spec(s)
	r := record.Row{
		Index:          s.TrialIndex,
		Subject:        m.opts.Subject,
		FirstTarget:    spec.First,
		SecondTarget:   spec.Second,
		RealSwitchTime: math.NaN(),
		FirstPressTime: math.NaN(),
		PrepTime:       math.NaN(),
		Correct:        s.Correct,
	}
	if s.Switched {
		r.RealSwitchTime = s.RealSwitchTime
	}
	if s.Scored.Valid {
		r.HasPress = true
		r.FirstPress = s.Scored.Channel
		r.FirstPressTime = s.Scored.Time
	}
	if prep, ok := s.PrepTime(); ok {
		r.PrepTime = prep
	}
	return r
}
