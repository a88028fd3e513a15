// Package metronome renders the click train and the reward cue into memory
// so playback can start on the exact frame the machine asks for it.
package metronome

import (
	"math"
	"sync"

	"github.com/faiface/beep"
)

// Options describes the click train. Times are in seconds.
type Options struct {
	Frequencies []float64 `mapstructure:"frequencies" yaml:"frequencies"`
	Interval    float64   `mapstructure:"interval" yaml:"interval"`
	ClickLength float64   `mapstructure:"click_length" yaml:"click_length"`
	LeadSilence float64   `mapstructure:"lead_silence" yaml:"lead_silence"`
	Amplitude   float64   `mapstructure:"amplitude" yaml:"amplitude"`
}

// DefaultOptions is four rising clicks (C5 E5 G5 C6) 400 ms apart.
func DefaultOptions() Options {
	return Options{
		Frequencies: []float64{523.251, 659.255, 783.991, 1046.5},
		Interval:    0.4,
		ClickLength: 0.04,
		LeadSilence: 0.1,
		Amplitude:   0.3,
	}
}

// LastClickOffset is the time from playback start to the final click's
// onset.
func (o Options) LastClickOffset() float64 {
	if len(o.Frequencies) == 0 {
		return o.LeadSilence
	}
	return o.LeadSilence + o.Interval*float64(len(o.Frequencies)-1)
}

// Render synthesises the click train at sr.
func Render(sr beep.SampleRate, o Options) *beep.Buffer {
	buf := beep.NewBuffer(Format(sr))
	buf.Append(beep.Silence(frames(sr, o.LeadSilence)))
	for i, f := range o.Frequencies {
		buf.Append(Tone(sr, f, o.ClickLength, o.Amplitude))
		if i < len(o.Frequencies)-1 {
			buf.Append(beep.Silence(frames(sr, o.Interval) - frames(sr, o.ClickLength)))
		}
	}
	return buf
}

// Reward is a short two-note chime.
func Reward(sr beep.SampleRate) *beep.Buffer {
	buf := beep.NewBuffer(Format(sr))
	buf.Append(Tone(sr, 880, 0.08, 0.25))
	buf.Append(Tone(sr, 1318.51, 0.12, 0.25))
	return buf
}

func Format(sr beep.SampleRate) beep.Format {
	return beep.Format{SampleRate: sr, NumChannels: 2, Precision: 2}
}

// Tone is a sine of the given length with 5 ms raised-cosine edges.
func Tone(sr beep.SampleRate, freq, length, amp float64) beep.Streamer {
	n := frames(sr, length)
	ramp := frames(sr, 0.005)
	if 2*ramp > n {
		ramp = n / 2
	}
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= n {
			return 0, false
		}
		i := 0
		for ; i < len(samples) && pos < n; i++ {
			v := amp * math.Sin(2*math.Pi*freq*float64(pos)/float64(sr))
			switch {
			case pos < ramp:
				v *= edge(pos, ramp)
			case pos >= n-ramp:
				v *= edge(n-1-pos, ramp)
			}
			samples[i][0], samples[i][1] = v, v
			pos++
		}
		return i, true
	})
}

func edge(i, ramp int) float64 {
	return 0.5 - 0.5*math.Cos(math.Pi*float64(i)/float64(ramp))
}

func frames(sr beep.SampleRate, seconds float64) int {
	return int(math.Round(seconds * float64(sr)))
}

// Tap counts the samples pulled through a streamer so the render loop can
// see how far playback has got.
type Tap struct {
	Source beep.Streamer
	mu     sync.RWMutex
	n      int
}

func NewTap(src beep.Streamer) *Tap {
	return &Tap{Source: src}
}

func (t *Tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.Source.Stream(samples)
	if n > 0 {
		t.mu.Lock()
		t.n += n
		t.mu.Unlock()
	}
	return n, ok
}

func (t *Tap) Err() error { return t.Source.Err() }

// Streamed is the number of samples handed to the output so far.
func (t *Tap) Streamed() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.n
}
