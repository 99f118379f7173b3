package audio

import (
	"errors"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

// StreamVoice plays a queue of PCM buffers. Buffers move to the processed
// list once fully played and are reclaimed in order with Unqueue. Running
// out of queued data stops the voice; Play restarts it.
type StreamVoice struct {
	device *Device
	rate   beep.SampleRate
	closed bool

	// guarded by device.mu
	queue     []*queuedBuffer
	processed []int
	nextID    int
	gain      *effects.Gain
	ctrl      *beep.Ctrl

	volume float64
	state  VoiceState
	done   *atomic.Bool
}

type queuedBuffer struct {
	id      int
	samples []int16
	pos     int
}

// NewStreamVoice allocates a streaming voice fed with sampleRate stereo
// 16-bit frames.
func (d *Device) NewStreamVoice(sampleRate int) (*StreamVoice, error) {
	if err := d.claimVoice(); err != nil {
		return nil, err
	}
	return &StreamVoice{device: d, rate: beep.SampleRate(sampleRate), volume: 1.0}, nil
}

// Queue appends interleaved stereo samples and returns the buffer id.
func (v *StreamVoice) Queue(samples []int16) int {
	v.device.mu.Lock()
	defer v.device.mu.Unlock()
	v.nextID++
	v.queue = append(v.queue, &queuedBuffer{id: v.nextID, samples: samples})
	return v.nextID
}

// Processed returns how many buffers finished playing and await Unqueue.
func (v *StreamVoice) Processed() int {
	v.device.mu.Lock()
	defer v.device.mu.Unlock()
	return len(v.processed)
}

// Queued returns how many buffers are waiting to play.
func (v *StreamVoice) Queued() int {
	v.device.mu.Lock()
	defer v.device.mu.Unlock()
	return len(v.queue)
}

// Unqueue pops the oldest processed buffer id.
func (v *StreamVoice) Unqueue() (int, bool) {
	v.device.mu.Lock()
	defer v.device.mu.Unlock()
	if len(v.processed) == 0 {
		return 0, false
	}
	id := v.processed[0]
	v.processed = v.processed[1:]
	return id, true
}

// Stream must be called with device.mu held, which the mixer does.
func (v *StreamVoice) Stream(samples [][2]float64) (n int, ok bool) {
	for len(samples) > 0 && len(v.queue) > 0 {
		q := v.queue[0]
		for len(samples) > 0 && q.pos+1 < len(q.samples) {
			samples[0] = [2]float64{
				float64(q.samples[q.pos]) / 32768.0,
				float64(q.samples[q.pos+1]) / 32768.0,
			}
			q.pos += 2
			samples = samples[1:]
			n++
		}
		if q.pos+1 >= len(q.samples) {
			v.queue = v.queue[1:]
			v.processed = append(v.processed, q.id)
		}
	}
	return n, n > 0
}

func (v *StreamVoice) Err() error { return nil }

func (v *StreamVoice) Play() error {
	if v.closed {
		return errors.New("voice closed")
	}
	d := v.device
	d.mu.Lock()
	defer d.mu.Unlock()

	if v.ctrl != nil {
		v.ctrl.Streamer = nil
	}
	resampled := beep.Resample(resampleQuality, v.rate, d.format.SampleRate, v)
	v.gain = &effects.Gain{Streamer: resampled, Gain: v.volume - 1}
	v.ctrl = &beep.Ctrl{Streamer: v.gain}

	done := &atomic.Bool{}
	v.done = done
	d.add(beep.Seq(v.ctrl, beep.Callback(func() { done.Store(true) })))
	v.state = Playing
	return nil
}

func (v *StreamVoice) State() VoiceState {
	if v.state != Stopped && v.done != nil && v.done.Load() {
		v.state = Stopped
	}
	return v.state
}

func (v *StreamVoice) Pause() {
	if v.State() != Playing {
		return
	}
	v.device.mu.Lock()
	v.ctrl.Paused = true
	v.device.mu.Unlock()
	v.state = Paused
}

func (v *StreamVoice) Resume() {
	if v.State() != Paused {
		return
	}
	v.device.mu.Lock()
	v.ctrl.Paused = false
	v.device.mu.Unlock()
	v.state = Playing
}

// Stop halts playback and moves every pending buffer to processed.
func (v *StreamVoice) Stop() {
	v.device.mu.Lock()
	if v.ctrl != nil {
		v.ctrl.Streamer = nil
		v.ctrl = nil
	}
	for _, q := range v.queue {
		v.processed = append(v.processed, q.id)
	}
	v.queue = nil
	v.device.mu.Unlock()
	v.state = Stopped
}

// SetVolume sets the linear gain (0.0 to 2.0)
func (v *StreamVoice) SetVolume(volume float64) {
	v.volume = clamp(volume, 0, 2)
	v.device.mu.Lock()
	if v.gain != nil {
		v.gain.Gain = v.volume - 1
	}
	v.device.mu.Unlock()
}

func (v *StreamVoice) Close() {
	if v.closed {
		return
	}
	v.Stop()
	v.closed = true
	v.device.releaseVoice()
}
