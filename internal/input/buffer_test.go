package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyboardDecoding(t *testing.T) {
	b := NewBuffer(10, 0)

	r := b.Update(Keyboard{Timestamp: 1.2, Changes: []KeyChange{{Index: 3, Pressed: true}}}, true)
	assert.True(t, r.Active)
	assert.True(t, r.Onset)
	assert.Equal(t, 3, r.Channel)
	assert.Equal(t, 1.2, r.Timestamp)

	// No new sample: activity carries forward, onset does not repeat.
	r = b.Update(nil, false)
	assert.True(t, r.Active)
	assert.False(t, r.Onset)

	r = b.Update(Keyboard{Timestamp: 1.5, Changes: []KeyChange{{Index: 3, Pressed: false}}}, true)
	assert.False(t, r.Active)
	assert.False(t, r.Onset)
}

func TestKeyboardFirstPressWins(t *testing.T) {
	b := NewBuffer(10, 0)
	r := b.Update(Keyboard{Timestamp: 2, Changes: []KeyChange{
		{Index: 1, Pressed: false},
		{Index: 7, Pressed: true},
		{Index: 2, Pressed: true},
	}}, true)
	assert.Equal(t, 7, r.Channel)
}

func TestKeyboardIgnoresUnknownKeys(t *testing.T) {
	b := NewBuffer(2, 0)
	r := b.Update(Keyboard{Changes: []KeyChange{{Index: 5, Pressed: true}, {Index: -1, Pressed: true}}}, true)
	assert.False(t, r.Active)
	assert.False(t, r.Onset)
}

func TestForceDecoding(t *testing.T) {
	b := NewBuffer(0, 1.0)

	r := b.Update(Force{Timestamp: 0.5, Channels: []float64{0.1, 0.2}}, true)
	assert.False(t, r.Active)

	r = b.Update(Force{Timestamp: 0.6, Channels: []float64{0.1, 1.4, 2.0}}, true)
	assert.True(t, r.Active)
	assert.True(t, r.Onset)
	assert.Equal(t, 1, r.Channel)

	// Still held: no new onset.
	r = b.Update(Force{Timestamp: 0.7, Channels: []float64{3, 1.4, 2.0}}, true)
	assert.True(t, r.Active)
	assert.False(t, r.Onset)

	r = b.Update(Force{Timestamp: 0.8, Channels: []float64{0, 0, 0}}, true)
	assert.False(t, r.Active)
	assert.Equal(t, r, b.Latest())
}

func TestRelativeTo(t *testing.T) {
	r := Reading{Active: true, Onset: true, Channel: 4, Timestamp: 10.75}
	assert.Equal(t, Press{Valid: true, Channel: 4, Time: 0.75}, r.RelativeTo(10))
	assert.Equal(t, Press{}, Reading{Active: true}.RelativeTo(10))
}
