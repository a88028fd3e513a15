package input

// Press is a registered response: which channel and when, relative to the
// trial start. The zero value is the absent response.
type Press struct {
	Valid   bool
	Channel int
	Time    float64
}

// Reading is the buffer's snapshot handed to the state machine each tick.
type Reading struct {
	// Active is true while any channel is held.
	Active bool
	// Onset is the first channel that became active in the newest sample,
	// with the sample's absolute timestamp.
	Onset     bool
	Channel   int
	Timestamp float64
}

// RelativeTo converts the reading's onset into a Press measured from start.
func (r Reading) RelativeTo(start float64) Press {
	if !r.Onset {
		return Press{}
	}
	return Press{Valid: true, Channel: r.Channel, Time: r.Timestamp - start}
}

// Buffer holds the latest decoded response state. It is owned by the input
// stage of the driver loop.
type Buffer struct {
	keys      []bool
	threshold float64
	latest    Reading
}

// NewBuffer tracks channels key slots; threshold is the force level (in
// device units) above which a force channel counts as active.
func NewBuffer(channels int, threshold float64) *Buffer {
	return &Buffer{keys: make([]bool, channels), threshold: threshold}
}

// Update decodes a sample. Without a new sample the previous activity state
// carries forward and no onset is reported.
func (b *Buffer) Update(s Sample, ok bool) Reading {
	b.latest.Onset = false
	if !ok || s == nil {
		return b.latest
	}

	switch v := s.(type) {
	case Keyboard:
		onset := -1
		for _, c := range v.Changes {
			if c.Index < 0 || c.Index >= len(b.keys) {
				continue
			}
			b.keys[c.Index] = c.Pressed
			if c.Pressed && onset < 0 {
				onset = c.Index
			}
		}
		b.latest.Active = anyTrue(b.keys)
		b.setOnset(onset, v.Timestamp)
	case Force:
		onset := -1
		active := false
		for i, f := range v.Channels {
			if f < b.threshold {
				continue
			}
			active = true
			if onset < 0 {
				onset = i
			}
		}
		wasActive := b.latest.Active
		b.latest.Active = active
		if wasActive {
			onset = -1
		}
		b.setOnset(onset, v.Timestamp)
	}
	return b.latest
}

func (b *Buffer) setOnset(channel int, ts float64) {
	if channel < 0 {
		return
	}
	b.latest.Onset = true
	b.latest.Channel = channel
	b.latest.Timestamp = ts
}

// Latest returns the most recent snapshot.
func (b *Buffer) Latest() Reading { return b.latest }

func anyTrue(v []bool) bool {
	for _, x := range v {
		if x {
			return true
		}
	}
	return false
}
