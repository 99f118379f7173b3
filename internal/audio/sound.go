package audio

import (
	"fmt"
	"sync/atomic"
	"time"

	"xact-engine/internal/adpcm"
)

// SoundOptions describes how NewSound interprets raw bytes.
type SoundOptions struct {
	// Loop region in sample frames. A zero length loops the whole sound.
	LoopStart  int
	LoopLength int
	// ADPCM data is decoded with BlockAlign-byte blocks.
	ADPCM      bool
	BlockAlign int
	// 8-bit PCM is unsigned and widened to 16 bits.
	EightBit bool
}

// Sound is decoded 16-bit PCM held in memory. Sounds are immutable once
// built; the pool caches device buffers keyed by *Sound.
type Sound struct {
	Name       string
	SampleRate int
	Channels   int
	LoopStart  int
	LoopLength int

	samples  []int16
	released atomic.Bool
}

// NewSound decodes data into a Sound.
func NewSound(data []byte, sampleRate, channels int, opts SoundOptions) (*Sound, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	var samples []int16
	switch {
	case opts.ADPCM:
		var err error
		samples, err = adpcm.Decode(data, channels, opts.BlockAlign)
		if err != nil {
			return nil, fmt.Errorf("failed to decode ADPCM: %w", err)
		}
	case opts.EightBit:
		samples = make([]int16, len(data))
		for i, b := range data {
			samples[i] = (int16(b) - 128) << 8
		}
	default:
		samples = make([]int16, len(data)/2)
		for i := range samples {
			samples[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		}
	}
	// Drop a dangling half frame.
	samples = samples[:len(samples)/channels*channels]

	s := &Sound{
		SampleRate: sampleRate,
		Channels:   channels,
		LoopStart:  opts.LoopStart,
		LoopLength: opts.LoopLength,
		samples:    samples,
	}
	return s, nil
}

// NewSoundFromSamples wraps already decoded interleaved samples.
func NewSoundFromSamples(samples []int16, sampleRate, channels int) *Sound {
	return &Sound{SampleRate: sampleRate, Channels: channels, samples: samples}
}

// Frames returns the length in sample frames.
func (s *Sound) Frames() int {
	if s.Channels == 0 {
		return 0
	}
	return len(s.samples) / s.Channels
}

// Duration returns the play length of one pass through the sound.
func (s *Sound) Duration() time.Duration {
	if s.SampleRate == 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.SampleRate)
}

// Size returns the decoded size in bytes.
func (s *Sound) Size() int { return len(s.samples) * 2 }

// Samples returns the interleaved samples, or nil once released.
func (s *Sound) Samples() []int16 {
	if s.released.Load() {
		return nil
	}
	return s.samples
}

// Release drops the decoded data. Device buffers already built from it
// keep playing.
func (s *Sound) Release() {
	s.released.Store(true)
	s.samples = nil
}

func (s *Sound) Released() bool { return s.released.Load() }
