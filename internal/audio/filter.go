package audio

import (
	"math"

	"github.com/gopxl/beep/v2"
)

// lowPass is a biquad low-pass filter (RBJ cookbook). Disabled filters
// pass samples through untouched.
type lowPass struct {
	s          beep.Streamer
	sampleRate float64
	enabled    bool

	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     [2]float64
}

func newLowPass(s beep.Streamer, sampleRate int) *lowPass {
	return &lowPass{s: s, sampleRate: float64(sampleRate)}
}

func (f *lowPass) set(enabled bool, cutoff, q float64) {
	f.enabled = enabled
	if !enabled {
		return
	}
	nyquist := f.sampleRate / 2
	cutoff = clamp(cutoff, 20, nyquist*0.99)
	q = clamp(q, 0.1, 20)

	w0 := 2 * math.Pi * cutoff / f.sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw := math.Cos(w0)
	a0 := 1 + alpha
	f.b0 = (1 - cosw) / 2 / a0
	f.b1 = (1 - cosw) / a0
	f.b2 = f.b0
	f.a1 = -2 * cosw / a0
	f.a2 = (1 - alpha) / a0
}

func (f *lowPass) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = f.s.Stream(samples)
	if !f.enabled {
		return n, ok
	}
	for i := range samples[:n] {
		for c := 0; c < 2; c++ {
			x := samples[i][c]
			y := f.b0*x + f.b1*f.x1[c] + f.b2*f.x2[c] - f.a1*f.y1[c] - f.a2*f.y2[c]
			f.x2[c], f.x1[c] = f.x1[c], x
			f.y2[c], f.y1[c] = f.y1[c], y
			samples[i][c] = y
		}
	}
	return n, ok
}

func (f *lowPass) Err() error { return f.s.Err() }
