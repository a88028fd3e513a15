package input

import "sync"

// history records the last N force frames in a ring so the tick side can
// filter recent samples while the reader goroutine keeps writing.
type history struct {
	frames    [][]float64
	nextIndex int
	filled    int
	mu        sync.RWMutex
}

func newHistory(size int) *history {
	return &history{frames: make([][]float64, size)}
}

func (h *history) push(frame []float64) {
	h.mu.Lock()
	h.frames[h.nextIndex] = frame
	h.nextIndex++
	if h.nextIndex >= len(h.frames) {
		h.nextIndex = 0
	}
	if h.filled < len(h.frames) {
		h.filled++
	}
	h.mu.Unlock()
}

// snapshot returns up to the last n frames, most recent last.
func (h *history) snapshot(n int) [][]float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > h.filled {
		n = h.filled
	}
	out := make([][]float64, 0, n)
	// Walk backwards from nextIndex - 1
	idx := h.nextIndex - 1
	if idx < 0 {
		idx = len(h.frames) - 1
	}
	for i := 0; i < n; i++ {
		out = append(out, h.frames[idx])
		idx--
		if idx < 0 {
			idx = len(h.frames) - 1
		}
	}
	// reverse to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// median returns the per-channel median of frames. Frames shorter than the
// widest one contribute nothing to the missing channels.
func median(frames [][]float64) []float64 {
	width := 0
	for _, f := range frames {
		if len(f) > width {
			width = len(f)
		}
	}
	out := make([]float64, width)
	col := make([]float64, 0, len(frames))
	for c := 0; c < width; c++ {
		col = col[:0]
		for _, f := range frames {
			if c < len(f) {
				col = append(col, f[c])
			}
		}
		out[c] = medianOf(col)
	}
	return out
}

func medianOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	// insertion sort; windows are a handful of frames
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
	m := len(s) / 2
	if len(s)%2 == 1 {
		return s[m]
	}
	return (s[m-1] + s[m]) / 2
}
