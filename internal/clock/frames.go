package clock

// periodSmoothing weights the previous estimate of the frame period against
// each new interval.
const periodSmoothing = 0.9

// Frames tracks when frames were committed and estimates the refresh
// period from the intervals between them.
type Frames struct {
	stamp  float64
	period float64
	count  int
}

// NewFrames starts from a nominal refresh period.
func NewFrames(nominal float64) *Frames {
	return &Frames{period: nominal}
}

// Commit records a frame presented at now. The first interval replaces the
// nominal period outright. Later intervals of twice the estimate or more are
// dropped frames and do not move it.
func (f *Frames) Commit(now float64) {
	dt := now - f.stamp
	switch {
	case f.count == 0 || dt <= 0:
	case f.count == 1:
		f.period = dt
	case dt < 2*f.period:
		f.period = periodSmoothing*f.period + (1-periodSmoothing)*dt
	}
	f.stamp = now
	f.count++
}

// FrameTimestamp is the time of the last committed frame.
func (f *Frames) FrameTimestamp() float64 { return f.stamp }

func (f *Frames) FramePeriod() float64 { return f.period }

// Count is the number of committed frames.
func (f *Frames) Count() int { return f.count }
