// Package input decodes timestamped samples from response devices into the
// participant's current response.
package input

// Sample is what a Device yields on a tick. It is one of Keyboard or Force.
type Sample interface {
	Time() float64
	isSample()
}

// KeyChange is a single key transition; Index is the key's position in the
// device's key map.
type KeyChange struct {
	Index   int
	Pressed bool
}

// Keyboard carries the key transitions observed since the previous sample.
type Keyboard struct {
	Timestamp float64
	Changes   []KeyChange
}

func (k Keyboard) Time() float64 { return k.Timestamp }
func (Keyboard) isSample()       {}

// Force carries one frame of the force board's analog channels.
type Force struct {
	Timestamp float64
	Channels  []float64
}

func (f Force) Time() float64 { return f.Timestamp }
func (Force) isSample()       {}

// Device returns the newest sample, or false when nothing new arrived. Read
// must not block.
type Device interface {
	Read() (Sample, bool)
}
