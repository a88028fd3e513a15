package machine

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aforren1/replan-2finger/internal/input"
	"github.com/aforren1/replan-2finger/internal/marker"
	"github.com/aforren1/replan-2finger/internal/record"
	"github.com/aforren1/replan-2finger/internal/staircase"
	"github.com/aforren1/replan-2finger/internal/trial"
)

const fp = 1.0 / 60

type fakeClock struct{ now float64 }

func (c *fakeClock) Now() float64 { return c.now }

type fakeDisplay struct {
	stamp  float64
	period float64
}

func (d *fakeDisplay) FrameTimestamp() float64 { return d.stamp }
func (d *fakeDisplay) FramePeriod() float64    { return d.period }

// fakeAudio plays back in step with the clock.
type fakeAudio struct {
	clk       *fakeClock
	started   float64
	metronome int
	reward    int
}

func (a *fakeAudio) PlayMetronome() {
	a.metronome++
	a.started = a.clk.now
}

func (a *fakeAudio) Position() float64 {
	if a.metronome == 0 {
		return 0
	}
	return a.clk.now - a.started
}

func (a *fakeAudio) PlayReward()              { a.reward++ }
func (a *fakeAudio) LastClickOffset() float64 { return 1.3 }

type fakePresentation struct {
	calls []string
	first []trial.Spec
}

func (p *fakePresentation) Begin() { p.calls = append(p.calls, "begin") }
func (p *fakePresentation) ShowFirst(s trial.Spec) {
	p.calls = append(p.calls, "first")
	p.first = append(p.first, s)
}
func (p *fakePresentation) ShowSecond(trial.Spec)     { p.calls = append(p.calls, "second") }
func (p *fakePresentation) ShowFeedback(bool, Timing) { p.calls = append(p.calls, "feedback") }
func (p *fakePresentation) Reset()                    { p.calls = append(p.calls, "reset") }

func (p *fakePresentation) count(call string) int {
	n := 0
	for _, c := range p.calls {
		if c == call {
			n++
		}
	}
	return n
}

type fakeRecorder struct {
	rows []record.Row
	err  error
}

func (r *fakeRecorder) Append(row record.Row) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, row)
	return nil
}

type markLog []marker.Event

func (m *markLog) Mark(e marker.Event, _ float64) { *m = append(*m, e) }

// choice answers a trial with a channel pressed at a time after trial start.
type choice struct {
	channel int
	at      float64
	press   bool
}

// participant produces keyboard readings: one press to leave the start
// screen, one scripted press per trial, and a press after any trial left
// unanswered so the next one can start.
type participant struct {
	answer    func(index int, spec trial.Spec) choice
	table     *trial.Table
	holdUntil float64
	answered  map[int]bool
	started   bool
	// patient participants never press just to move on.
	patient bool
}

func (p *participant) press(channel int, now float64) input.Reading {
	p.holdUntil = now + 0.05
	return input.Reading{Active: true, Onset: true, Channel: channel, Timestamp: now}
}

func (p *participant) read(s Session, now float64) input.Reading {
	if now < p.holdUntil {
		return input.Reading{Active: true, Timestamp: now}
	}
	switch s.Phase {
	case Wait:
		if !p.started {
			p.started = true
			return p.press(0, now)
		}
	case EnterTrial, FirstTarget, SecondTarget:
		if p.answered[s.TrialIndex] {
			break
		}
		c := p.answer(s.TrialIndex, p.table.At(s.TrialIndex))
		if c.press && now-s.TrialStart >= c.at {
			p.answered[s.TrialIndex] = true
			return p.press(c.channel, now)
		}
	case PostTrial:
		if !s.FirstPress.Valid && !p.patient {
			return p.press(0, now)
		}
	}
	return input.Reading{Timestamp: now}
}

type harness struct {
	clk     *fakeClock
	disp    *fakeDisplay
	audio   *fakeAudio
	pres    *fakePresentation
	rec     *fakeRecorder
	marks   *markLog
	cleanup int
	m       *Machine
	s       Session
	who     *participant
}

func newHarness(t *testing.T, specs []trial.Spec, opts Options, answer func(int, trial.Spec) choice) *harness {
	t.Helper()
	table := trial.NewTable("test", specs)
	clk := &fakeClock{now: 10}
	h := &harness{
		clk:   clk,
		disp:  &fakeDisplay{stamp: 10, period: fp},
		audio: &fakeAudio{clk: clk},
		pres:  &fakePresentation{},
		rec:   &fakeRecorder{},
		marks: &markLog{},
		s:     NewSession(),
	}
	h.who = &participant{answer: answer, table: table, answered: map[int]bool{}}
	h.m = New(Deps{
		Clock:        h.clk,
		Display:      h.disp,
		Audio:        h.audio,
		Presentation: h.pres,
		Recorder:     h.rec,
		Table:        table,
		Marker:       h.marks,
		Logger:       zaptest.NewLogger(t),
		OnCleanup:    func(Session) { h.cleanup++ },
	}, opts)
	return h
}

// frame commits the previous frame and runs one driver tick.
func (h *harness) frame(abort bool) error {
	h.clk.now += h.disp.period
	h.disp.stamp = h.clk.now
	h.s = h.m.Flipped(h.s)
	var err error
	h.s, err = h.m.Tick(h.s, h.who.read(h.s, h.clk.now), abort)
	return err
}

func (h *harness) run(t *testing.T, frames int) {
	t.Helper()
	for i := 0; i < frames && h.s.Phase != Cleanup; i++ {
		require.NoError(t, h.frame(false))
	}
}

func onTimeSecond(_ int, s trial.Spec) choice {
	return choice{channel: s.Second, at: 1.3, press: true}
}

func threeTrials() []trial.Spec {
	return []trial.Spec{
		{First: 1, Second: 1, SwitchTime: 0},
		{First: 1, Second: 2, SwitchTime: 0.3},
		{First: 2, Second: 1, SwitchTime: 0.5},
	}
}

func TestRunRecordsOneRowPerTrial(t *testing.T) {
	h := newHarness(t, threeTrials(), DefaultOptions(), onTimeSecond)
	h.run(t, 2000)

	require.Equal(t, Cleanup, h.s.Phase)
	require.Len(t, h.rec.rows, 3)
	for i, row := range h.rec.rows {
		assert.Equal(t, i, row.Index)
		assert.True(t, row.Correct)
		assert.True(t, row.HasPress)
	}
	assert.Equal(t, 1, h.cleanup)
	assert.Equal(t, 3, h.audio.metronome)
	assert.Equal(t, 3, h.audio.reward)
	assert.Equal(t, 1, h.pres.count("begin"))
	assert.Equal(t, 3, h.pres.count("second"))
	assert.Equal(t, 3, h.pres.count("reset"))
	assert.Empty(t, h.s.Pending)
}

func TestMarkersFollowCommittedFrames(t *testing.T) {
	h := newHarness(t, threeTrials()[:1], DefaultOptions(), onTimeSecond)
	h.run(t, 2000)

	assert.Equal(t, markLog{marker.TrialStart, marker.FirstOnset, marker.SwitchOnset, marker.FeedbackOnset}, *h.marks)
}

func TestOnsetLogsCarryAudioPosition(t *testing.T) {
	h := newHarness(t, threeTrials()[1:2], DefaultOptions(), onTimeSecond)
	core, logs := observer.New(zapcore.DebugLevel)
	h.m.Logger = zap.New(core)
	h.run(t, 2000)

	for _, msg := range []string{"First target committed", "Switch committed"} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		fields := entries[0].ContextMap()
		require.Contains(t, fields, "audio", msg)
		assert.Greater(t, fields["audio"], 0.0, msg)
		assert.InDelta(t, fields["actual"], fields["audio"], 1e-9, msg)
	}
}

func TestCorrectIffPressMatchesSecondTarget(t *testing.T) {
	// Odd trials answer the first target instead.
	answer := func(i int, s trial.Spec) choice {
		if i%2 == 1 {
			return choice{channel: s.First, at: 1.25, press: true}
		}
		return choice{channel: s.Second, at: 1.35, press: true}
	}
	h := newHarness(t, threeTrials(), DefaultOptions(), answer)
	h.run(t, 2000)

	require.Len(t, h.rec.rows, 3)
	for _, row := range h.rec.rows {
		assert.Equal(t, row.HasPress && row.FirstPress == row.SecondTarget, row.Correct, "row %d", row.Index)
	}
	assert.False(t, h.rec.rows[1].Correct)
	assert.Equal(t, 2, h.audio.reward)
}

func TestPrepTimeIsPressMinusSwitch(t *testing.T) {
	h := newHarness(t, threeTrials(), DefaultOptions(), onTimeSecond)
	h.run(t, 2000)

	require.Len(t, h.rec.rows, 3)
	for i, row := range h.rec.rows {
		spec := threeTrials()[i]
		assert.InDelta(t, 1.3-spec.SwitchTime, row.RealSwitchTime, 2*fp, "row %d", i)
		assert.InDelta(t, row.FirstPressTime-row.RealSwitchTime, row.PrepTime, 1e-9, "row %d", i)
		assert.InDelta(t, 1.3, row.FirstPressTime, fp, "row %d", i)
	}
}

func TestZeroSwitchTimeStillSwitches(t *testing.T) {
	h := newHarness(t, []trial.Spec{{First: 3, Second: 3}}, DefaultOptions(), onTimeSecond)
	h.run(t, 2000)

	require.Len(t, h.rec.rows, 1)
	row := h.rec.rows[0]
	assert.False(t, math.IsNaN(row.RealSwitchTime))
	assert.InDelta(t, 1.3, row.RealSwitchTime, 2*fp)
	assert.Contains(t, *h.marks, marker.SwitchOnset)
}

func TestMissingResponseIsTooSlow(t *testing.T) {
	opts := DefaultOptions()
	opts.PostTrialNeedsResponse = false
	silent := func(int, trial.Spec) choice { return choice{} }
	h := newHarness(t, threeTrials()[:2], opts, silent)
	h.run(t, 2000)

	require.Equal(t, Cleanup, h.s.Phase)
	require.Len(t, h.rec.rows, 2)
	for _, row := range h.rec.rows {
		assert.False(t, row.HasPress)
		assert.False(t, row.Correct)
		assert.True(t, math.IsNaN(row.FirstPressTime))
		assert.True(t, math.IsNaN(row.PrepTime))
		assert.False(t, math.IsNaN(row.RealSwitchTime))
	}
	assert.Zero(t, h.audio.reward)
}

func TestPostTrialWaitsForResponse(t *testing.T) {
	silent := func(int, trial.Spec) choice { return choice{} }
	h := newHarness(t, threeTrials(), DefaultOptions(), silent)
	h.who.patient = true
	for i := 0; i < 600; i++ {
		require.NoError(t, h.frame(false))
	}

	assert.Equal(t, PostTrial, h.s.Phase)
	assert.Equal(t, 1, h.s.TrialIndex)
	assert.Len(t, h.rec.rows, 1)
}

func TestEndPastRunsOneExtraTrial(t *testing.T) {
	opts := DefaultOptions()
	opts.EndPast = true
	h := newHarness(t, threeTrials()[:2], opts, onTimeSecond)
	h.run(t, 3000)

	require.Equal(t, Cleanup, h.s.Phase)
	require.Len(t, h.rec.rows, 3)
	assert.Equal(t, h.rec.rows[1].SecondTarget, h.rec.rows[2].SecondTarget)
}

func TestAbortStopsRecording(t *testing.T) {
	h := newHarness(t, threeTrials(), DefaultOptions(), onTimeSecond)
	for len(h.rec.rows) == 0 {
		require.NoError(t, h.frame(false))
	}
	// Abort just after the metronome started.
	for h.s.Phase != EnterTrial {
		require.NoError(t, h.frame(false))
	}
	require.NoError(t, h.frame(true))

	assert.Equal(t, Cleanup, h.s.Phase)
	assert.Empty(t, h.s.Pending)
	assert.Equal(t, 1, h.cleanup)

	for i := 0; i < 500; i++ {
		require.NoError(t, h.frame(false))
	}
	assert.Equal(t, Cleanup, h.s.Phase)
	assert.Len(t, h.rec.rows, 1)
	assert.Equal(t, 1, h.cleanup)
}

func TestRecorderErrorIsFatal(t *testing.T) {
	h := newHarness(t, threeTrials(), DefaultOptions(), onTimeSecond)
	h.rec.err = errors.New("disk full")

	var err error
	for i := 0; i < 2000 && err == nil; i++ {
		err = h.frame(false)
	}
	require.Error(t, err)
	assert.Equal(t, Feedback, h.s.Phase)
	assert.Zero(t, h.s.TrialIndex)
}

func TestStepWithoutProgressIsIdempotent(t *testing.T) {
	h := newHarness(t, threeTrials(), DefaultOptions(), onTimeSecond)
	for h.s.Phase != FirstTarget {
		require.NoError(t, h.frame(false))
	}

	first, err := h.m.Step(h.s)
	require.NoError(t, err)
	second, err := h.m.Step(first)
	require.NoError(t, err)
	assert.Equal(t, FirstTarget, second.Phase)
	assert.Equal(t, first, second)
}

func TestFlippedDrainsOnce(t *testing.T) {
	h := newHarness(t, threeTrials(), DefaultOptions(), onTimeSecond)
	for h.s.Phase != EnterTrial {
		require.NoError(t, h.frame(false))
	}
	require.NotEmpty(t, h.s.Pending)

	h.s = h.m.Flipped(h.s)
	h.s = h.m.Flipped(h.s)

	assert.Equal(t, 1, h.audio.metronome)
	assert.Equal(t, h.disp.stamp, h.s.TrialStart)
	assert.InDelta(t, h.clk.now+1.5-fp, h.s.TrialTimer.Deadline, 1e-9)
}

func TestQuickTapRegisters(t *testing.T) {
	h := newHarness(t, threeTrials(), DefaultOptions(), onTimeSecond)
	s := NewSession()
	s.TrialStart = 2

	s = h.m.Observe(s, input.Reading{Onset: true, Channel: 4, Timestamp: 3.25})
	assert.Equal(t, input.Press{Valid: true, Channel: 4, Time: 1.25}, s.FirstPress)
	assert.False(t, s.DeviceOn)

	s = h.m.Observe(s, input.Reading{Active: true, Onset: true, Channel: 1, Timestamp: 3.5})
	assert.Equal(t, 4, s.FirstPress.Channel)
	assert.True(t, s.DeviceOn)
}

func TestAdaptiveStaircaseDrivesSwitchTime(t *testing.T) {
	specs := []trial.Spec{
		{First: 1, Second: 2, SwitchTime: 0.1},
		{First: 2, Second: 2},
		{First: 2, Second: 1, SwitchTime: 0.1},
		{First: 1, Second: 2, SwitchTime: 0.1},
	}
	// Correct, correct (no switch), wrong, correct.
	answer := func(i int, s trial.Spec) choice {
		if i == 2 {
			return choice{channel: s.First, at: 1.3, press: true}
		}
		return choice{channel: s.Second, at: 1.3, press: true}
	}
	opts := DefaultOptions()
	opts.Adaptive = true
	h := newHarness(t, specs, opts, answer)
	h.run(t, 4000)

	require.Len(t, h.rec.rows, 4)
	want := staircase.New()
	assert.InDelta(t, 1.3-want.PrepTime, h.rec.rows[0].RealSwitchTime, 2*fp)
	want = want.Update(true)
	assert.InDelta(t, 1.3, h.rec.rows[1].RealSwitchTime, 2*fp)
	assert.InDelta(t, 1.3-want.PrepTime, h.rec.rows[2].RealSwitchTime, 2*fp)
	want = want.Update(false)
	assert.InDelta(t, 1.3-want.PrepTime, h.rec.rows[3].RealSwitchTime, 2*fp)
	want = want.Update(true)

	assert.Equal(t, want, h.s.Staircase)
	assert.Equal(t, 3, h.s.Staircase.Trials)
	assert.InDelta(t, 0.3, h.s.Staircase.PrepTime, 1e-9)
}

func TestScore(t *testing.T) {
	spec := trial.Spec{First: 1, Second: 2}
	tests := []struct {
		name    string
		press   input.Press
		correct bool
		timing  Timing
	}{
		{"absent", input.Press{}, false, TooSlow},
		{"on time", input.Press{Valid: true, Channel: 2, Time: 1.35}, true, OnTime},
		{"late", input.Press{Valid: true, Channel: 2, Time: 1.4}, true, TooSlow},
		{"early wrong", input.Press{Valid: true, Channel: 1, Time: 1.2}, false, TooFast},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			correct, timing := Score(tt.press, spec, 1.3, 0.075)
			assert.Equal(t, tt.correct, correct)
			assert.Equal(t, tt.timing, timing)
		})
	}
}
