package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonoIsMonotonic(t *testing.T) {
	c := NewMono()
	a := c.Now()
	time.Sleep(2 * time.Millisecond)
	b := c.Now()
	require.GreaterOrEqual(t, a, 0.0)
	assert.Greater(t, b, a)
}

func TestCountdown(t *testing.T) {
	var cd Countdown
	cd.Reset(10, 1.5)

	assert.InDelta(t, 1.5, cd.Remaining(10), 1e-12)
	assert.InDelta(t, 0.5, cd.Remaining(11), 1e-12)
	assert.False(t, cd.Elapsed(11))
	assert.True(t, cd.Elapsed(11.5))
	assert.InDelta(t, -0.5, cd.Remaining(12), 1e-12)
	assert.True(t, cd.Elapsed(12))
}

func TestZeroCountdownIsElapsed(t *testing.T) {
	var cd Countdown
	assert.True(t, cd.Elapsed(0))
}

func TestFramesTracksPeriod(t *testing.T) {
	f := NewFrames(1.0 / 60)
	now := 1.0
	for i := 0; i < 200; i++ {
		f.Commit(now)
		now += 1.0 / 120
	}

	assert.Equal(t, 200, f.Count())
	assert.InDelta(t, now-1.0/120, f.FrameTimestamp(), 1e-9)
	assert.InDelta(t, 1.0/120, f.FramePeriod(), 1e-6)
}

func TestFramesIgnoresDroppedFrames(t *testing.T) {
	f := NewFrames(1.0 / 60)
	f.Commit(1)
	f.Commit(1 + 1.0/60)
	f.Commit(1.5)

	assert.InDelta(t, 1.0/60, f.FramePeriod(), 1e-9)
	assert.Equal(t, 1.5, f.FrameTimestamp())
}

func TestFramesSlowDisplay(t *testing.T) {
	for _, hz := range []float64{24, 25, 30} {
		f := NewFrames(1.0 / 60)
		now := 2.0
		for i := 0; i < 50; i++ {
			f.Commit(now)
			now += 1 / hz
		}
		assert.InDelta(t, 1/hz, f.FramePeriod(), 1e-6, "%v Hz", hz)
	}
}

func TestFramesKeepsNominalUntilSecondFrame(t *testing.T) {
	f := NewFrames(1.0 / 60)
	assert.Equal(t, 1.0/60, f.FramePeriod())
	f.Commit(3)
	assert.Equal(t, 1.0/60, f.FramePeriod())
}
