package audio

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/gopxl/beep/v2"
	ebaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Device mixes every live voice into one stereo stream. Unless headless it
// feeds an ebiten audio player; the player pulls through Read.
type Device struct {
	mu      sync.Mutex
	format  beep.Format
	mixer   *beep.Mixer
	scratch [][2]float64
	volume  float64

	cfg       Config
	voices    int
	maxVoices int

	context *ebaudio.Context
	player  *ebaudio.Player
}

// NewDevice creates a new output device
func NewDevice(cfg Config) (*Device, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.MaxVoices <= 0 {
		cfg.MaxVoices = DefaultMaxVoices
	}
	return &Device{
		format:    beep.Format{SampleRate: beep.SampleRate(cfg.SampleRate), NumChannels: 2, Precision: 2},
		mixer:     &beep.Mixer{},
		volume:    1.0,
		cfg:       cfg,
		maxVoices: cfg.MaxVoices,
	}, nil
}

// Init opens the output player
func (d *Device) Init() error {
	if d.cfg.Headless {
		log.Println("Audio device initialized (headless)")
		return nil
	}

	d.context = ebaudio.NewContext(d.cfg.SampleRate)
	player, err := d.context.NewPlayer(d)
	if err != nil {
		return fmt.Errorf("failed to create output player: %w", err)
	}
	if d.cfg.BufferSize > 0 {
		player.SetBufferSize(d.cfg.BufferSize)
	}
	player.Play()
	d.player = player

	log.Printf("Audio device initialized at %d Hz, %d voices", d.cfg.SampleRate, d.maxVoices)
	return nil
}

// SampleRate returns the output rate in Hz.
func (d *Device) SampleRate() int { return int(d.format.SampleRate) }

// SetMasterVolume sets the output gain (0.0 to 1.0)
func (d *Device) SetMasterVolume(volume float64) {
	d.mu.Lock()
	d.volume = clamp(volume, 0, 1)
	d.mu.Unlock()
}

// Read renders 16-bit little-endian stereo frames for the output player.
func (d *Device) Read(p []byte) (int, error) {
	frames := len(p) / 4
	if frames == 0 {
		return 0, nil
	}

	d.mu.Lock()
	samples := d.mix(frames)
	for i, s := range samples {
		l := int16(clamp(s[0]*d.volume, -1, 1) * 32767)
		r := int16(clamp(s[1]*d.volume, -1, 1) * 32767)
		binary.LittleEndian.PutUint16(p[4*i:], uint16(l))
		binary.LittleEndian.PutUint16(p[4*i+2:], uint16(r))
	}
	d.mu.Unlock()

	return frames * 4, nil
}

// Mix advances every voice by frames without producing output. Headless
// hosts and tests use it in place of the output player.
func (d *Device) Mix(frames int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for frames > 0 {
		n := min(frames, 4096)
		d.mix(n)
		frames -= n
	}
}

// mix must be called with d.mu held.
func (d *Device) mix(frames int) [][2]float64 {
	if cap(d.scratch) < frames {
		d.scratch = make([][2]float64, frames)
	}
	samples := d.scratch[:frames]
	n, _ := d.mixer.Stream(samples)
	for i := n; i < frames; i++ {
		samples[i] = [2]float64{}
	}
	return samples
}

// NewBuffer uploads a sound for playback.
func (d *Device) NewBuffer(s *Sound) (*Buffer, error) {
	samples := s.Samples()
	if samples == nil && s.Released() {
		return nil, ErrReleased
	}
	format := beep.Format{SampleRate: beep.SampleRate(s.SampleRate), NumChannels: 2, Precision: 2}
	buf := beep.NewBuffer(format)
	buf.Append(&pcmStreamer{samples: samples, channels: s.Channels})
	return &Buffer{
		buf:        buf,
		format:     format,
		loopStart:  s.LoopStart,
		loopLength: s.LoopLength,
	}, nil
}

// NewVoice allocates a voice, failing with ErrNoVoices at the limit.
func (d *Device) NewVoice() (*Voice, error) {
	if err := d.claimVoice(); err != nil {
		return nil, err
	}
	return &Voice{device: d, volume: 1.0}, nil
}

// ActiveVoices returns the number of allocated voices.
func (d *Device) ActiveVoices() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voices
}

func (d *Device) claimVoice() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.voices >= d.maxVoices {
		return ErrNoVoices
	}
	d.voices++
	return nil
}

func (d *Device) releaseVoice() {
	d.mu.Lock()
	if d.voices > 0 {
		d.voices--
	}
	d.mu.Unlock()
}

// add must be called with d.mu held.
func (d *Device) add(s beep.Streamer) {
	d.mixer.Add(s)
}

// Close stops output and drops every voice from the mixer
func (d *Device) Close() {
	d.mu.Lock()
	d.mixer.Clear()
	d.mu.Unlock()

	if d.player != nil {
		d.player.Close()
		d.player = nil
	}

	log.Println("Audio device closed")
}

// Buffer is a sound converted to the mixer's sample format.
type Buffer struct {
	buf        *beep.Buffer
	format     beep.Format
	loopStart  int
	loopLength int
}

// Frames returns the buffer length in sample frames.
func (b *Buffer) Frames() int { return b.buf.Len() }

type pcmStreamer struct {
	samples  []int16
	channels int
	pos      int
}

func (p *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if p.pos >= len(p.samples) {
		return 0, false
	}
	for i := range samples {
		if p.pos+p.channels > len(p.samples) {
			return i, i > 0
		}
		l := float64(p.samples[p.pos]) / 32768.0
		r := l
		if p.channels == 2 {
			r = float64(p.samples[p.pos+1]) / 32768.0
		}
		samples[i] = [2]float64{l, r}
		p.pos += p.channels
		n++
	}
	return n, true
}

func (p *pcmStreamer) Err() error { return nil }
