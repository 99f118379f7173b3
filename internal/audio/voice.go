package audio

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

// Voice plays one buffer through the device mixer. A voice is owned by a
// single goroutine; the mixer side only sees it through the device lock.
type Voice struct {
	device *Device
	buf    *Buffer
	closed bool

	state VoiceState
	done  *atomic.Bool

	volume    float64
	pitch     float64
	pan       float64
	loopCount int

	filterOn bool
	cutoff   float64
	q        float64

	ctrl      *beep.Ctrl
	gain      *effects.Gain
	panner    *effects.Pan
	resampler *beep.Resampler
	filter    *lowPass
}

// Bind attaches a buffer. The voice must be stopped.
func (v *Voice) Bind(b *Buffer) {
	v.Stop()
	v.buf = b
}

// Buffer returns the bound buffer.
func (v *Voice) Buffer() *Buffer { return v.buf }

// Play starts the bound buffer from the beginning.
func (v *Voice) Play() error {
	if v.closed {
		return errors.New("voice closed")
	}
	if v.buf == nil {
		return errors.New("no buffer bound")
	}

	d := v.device
	d.mu.Lock()
	defer d.mu.Unlock()

	if v.ctrl != nil {
		v.ctrl.Streamer = nil
	}

	src := newLooper(newBufferSeeker(v.buf.buf), v.loopCount, v.buf.loopStart, v.buf.loopLength)
	v.filter = newLowPass(src, int(v.buf.format.SampleRate))
	v.filter.set(v.filterOn, v.cutoff, v.q)
	v.resampler = beep.Resample(resampleQuality, v.buf.format.SampleRate, d.format.SampleRate, v.filter)
	v.resampler.SetRatio(v.ratio())
	v.gain = &effects.Gain{Streamer: v.resampler, Gain: v.volume - 1}
	v.panner = &effects.Pan{Streamer: v.gain, Pan: v.pan}
	v.ctrl = &beep.Ctrl{Streamer: v.panner}

	done := &atomic.Bool{}
	v.done = done
	d.add(beep.Seq(v.ctrl, beep.Callback(func() { done.Store(true) })))
	v.state = Playing
	return nil
}

func (v *Voice) ratio() float64 {
	return float64(v.buf.format.SampleRate) / float64(v.device.format.SampleRate) * math.Pow(2, v.pitch)
}

// State returns the current state; a voice whose buffer ran out reads as
// Stopped.
func (v *Voice) State() VoiceState {
	if v.state != Stopped && v.done != nil && v.done.Load() {
		v.state = Stopped
	}
	return v.state
}

func (v *Voice) Pause() {
	if v.State() != Playing {
		return
	}
	v.device.mu.Lock()
	v.ctrl.Paused = true
	v.device.mu.Unlock()
	v.state = Paused
}

func (v *Voice) Resume() {
	if v.State() != Paused {
		return
	}
	v.device.mu.Lock()
	v.ctrl.Paused = false
	v.device.mu.Unlock()
	v.state = Playing
}

// Stop halts playback; the mixer drops the voice on its next pass.
func (v *Voice) Stop() {
	if v.ctrl != nil {
		v.device.mu.Lock()
		v.ctrl.Streamer = nil
		v.device.mu.Unlock()
		v.ctrl = nil
	}
	v.state = Stopped
}

// SetVolume sets the linear gain (0.0 to 2.0)
func (v *Voice) SetVolume(volume float64) {
	v.volume = clamp(volume, 0, 2)
	if v.gain != nil {
		v.device.mu.Lock()
		v.gain.Gain = v.volume - 1
		v.device.mu.Unlock()
	}
}

func (v *Voice) Volume() float64 { return v.volume }

// SetPitch sets the pitch in octaves; 0 plays at the source rate.
func (v *Voice) SetPitch(pitch float64) {
	v.pitch = clamp(pitch, -4, 4)
	if v.resampler != nil {
		v.device.mu.Lock()
		v.resampler.SetRatio(v.ratio())
		v.device.mu.Unlock()
	}
}

func (v *Voice) Pitch() float64 { return v.pitch }

// SetPan sets the stereo position, -1 (left) to 1 (right).
func (v *Voice) SetPan(pan float64) {
	v.pan = clamp(pan, -1, 1)
	if v.panner != nil {
		v.device.mu.Lock()
		v.panner.Pan = v.pan
		v.device.mu.Unlock()
	}
}

func (v *Voice) Pan() float64 { return v.pan }

// SetLoopCount sets how many extra passes the loop region plays before
// the voice runs out; negative loops forever. Takes effect on Play.
func (v *Voice) SetLoopCount(n int) { v.loopCount = n }

// SetLooped loops forever or not at all.
func (v *Voice) SetLooped(looped bool) {
	if looped {
		v.loopCount = -1
	} else {
		v.loopCount = 0
	}
}

func (v *Voice) IsLooped() bool { return v.loopCount != 0 }

// SetFilter configures the low-pass slot. Cutoff is in Hz.
func (v *Voice) SetFilter(enabled bool, cutoff, q float64) {
	v.filterOn, v.cutoff, v.q = enabled, cutoff, q
	if v.filter != nil {
		v.device.mu.Lock()
		v.filter.set(enabled, cutoff, q)
		v.device.mu.Unlock()
	}
}

// Reset stops the voice and restores every parameter to its default.
func (v *Voice) Reset() {
	v.Stop()
	v.buf = nil
	v.done = nil
	v.volume = 1.0
	v.pitch = 0
	v.pan = 0
	v.loopCount = 0
	v.filterOn, v.cutoff, v.q = false, 0, 0
	v.gain, v.panner, v.resampler, v.filter = nil, nil, nil, nil
}

// Close stops the voice and returns its slot to the device.
func (v *Voice) Close() {
	if v.closed {
		return
	}
	v.Reset()
	v.closed = true
	v.device.releaseVoice()
}
