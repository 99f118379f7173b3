package xact

import (
	"time"

	"xact-engine/internal/audio"
)

// waveInstance is one voice generated from a PlayWave event.
type waveInstance struct {
	voice *audio.Voice
	sound *audio.Sound

	baseVolume float64
	basePitch  float64
	delay      time.Duration
	started    bool
}

// rpcParams is the combined output of a sound's RPC curves.
type rpcParams struct {
	gain   float64
	pitch  float64
	filter bool
	cutoff float64
	q      float64
}

const defaultFilterQ = 0.707

func (p rpcParams) filterQ() float64 {
	if p.q <= 0 {
		return defaultFilterQ
	}
	return p.q
}

// apply pushes the cue's mix onto the voice.
func (w *waveInstance) apply(p rpcParams, categoryVolume, pitchOffset, pan float64) {
	w.voice.SetVolume(w.baseVolume * p.gain * categoryVolume)
	w.voice.SetPitch(w.basePitch + p.pitch + pitchOffset)
	w.voice.SetPan(pan)
	w.voice.SetFilter(p.filter, p.cutoff, p.filterQ())
}

func (w *waveInstance) volume() float64 {
	if !w.started {
		return 0
	}
	return w.voice.Volume()
}
