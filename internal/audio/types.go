package audio

import (
	"errors"
	"time"
)

// Audio constants
const (
	DefaultSampleRate = 44100
	DefaultMaxVoices  = 256

	// Resample quality handed to beep.Resample (1..64).
	resampleQuality = 4
)

// ErrNoVoices is returned when the device cannot provide another voice.
var ErrNoVoices = errors.New("no free voices")

// ErrReleased is returned when playing a sound whose data was released.
var ErrReleased = errors.New("sound data released")

// VoiceState reports what a voice is doing.
type VoiceState int

const (
	Stopped VoiceState = iota
	Playing
	Paused
)

func (s VoiceState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Config represents configuration for the output device
type Config struct {
	SampleRate int
	MaxVoices  int
	// Headless devices never open an output; Mix advances playback.
	Headless   bool
	BufferSize time.Duration
}

// DefaultConfig returns default device configuration
func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		MaxVoices:  DefaultMaxVoices,
		BufferSize: 50 * time.Millisecond,
	}
}

// PoolConfig controls voice and buffer recycling.
type PoolConfig struct {
	// Voices allocated at once when the free stack runs dry.
	Batch int
	// Free voices Tidy keeps around.
	Baseline int
	// How long an unreferenced buffer survives before eviction.
	IdleTimeout time.Duration
}

// DefaultPoolConfig returns default pool configuration
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Batch:       8,
		Baseline:    16,
		IdleTimeout: 10 * time.Second,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
