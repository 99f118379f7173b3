package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"xact-engine/internal/audio"
)

// Config controls buffering for streamed music.
type Config struct {
	// Frames decoded into each queued buffer.
	BufferFrames int
	// Buffers kept queued per stream.
	Buffers int
	// How often the background goroutine services streams.
	Interval time.Duration
}

// DefaultConfig returns default streaming configuration
func DefaultConfig() Config {
	return Config{
		BufferFrames: 4096,
		Buffers:      4,
		Interval:     20 * time.Millisecond,
	}
}

// Only one stream decodes at a time; they share the scratch buffer.
var (
	decodeMu sync.Mutex
	scratch  []byte
)

var underrunLog = rate.NewLimiter(rate.Every(time.Second), 3)

// Manager owns every open stream and keeps their voices fed.
type Manager struct {
	device *audio.Device
	cfg    Config

	mu     sync.RWMutex
	active map[*Stream]struct{}
	opened map[*Stream]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a new streaming manager
func NewManager(device *audio.Device, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.BufferFrames <= 0 {
		cfg.BufferFrames = def.BufferFrames
	}
	if cfg.Buffers <= 0 {
		cfg.Buffers = def.Buffers
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	return &Manager{
		device: device,
		cfg:    cfg,
		active: make(map[*Stream]struct{}),
		opened: make(map[*Stream]struct{}),
	}
}

// Start runs the servicing goroutine until ctx is cancelled or Close is
// called.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		cancel()
		return
	}
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Update()
			}
		}
	}()
	log.Println("Stream manager started")
}

// Update services every active stream once: reclaims played buffers,
// decodes fresh ones and restarts voices that ran dry.
func (m *Manager) Update() {
	m.mu.RLock()
	streams := make([]*Stream, 0, len(m.active))
	for s := range m.active {
		streams = append(streams, s)
	}
	m.mu.RUnlock()

	for _, s := range streams {
		s.service()
	}
}

// Open reads r into memory and wraps it in a decoder chosen by name's
// extension. r is closed if it is an io.Closer. The stream is idle until
// Play.
func (m *Manager) Open(name string, r io.Reader) (*Stream, error) {
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream %s: %w", name, err)
	}
	dec, err := NewDecoder(name, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded stream %s (%s)", name, humanize.IBytes(uint64(len(data))))
	return m.OpenDecoder(name, dec)
}

// OpenDecoder creates a stream over an existing decoder.
func (m *Manager) OpenDecoder(name string, dec Decoder) (*Stream, error) {
	voice, err := m.device.NewStreamVoice(dec.SampleRate())
	if err != nil {
		return nil, fmt.Errorf("failed to open stream %s: %w", name, err)
	}
	s := &Stream{
		manager: m,
		name:    name,
		dec:     dec,
		voice:   voice,
		volume:  1.0,
		state:   audio.Stopped,
	}
	m.mu.Lock()
	m.opened[s] = struct{}{}
	m.mu.Unlock()

	log.Printf("Opened stream %s (%d Hz)", name, dec.SampleRate())
	return s, nil
}

// Active returns the number of streams being serviced.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Close stops the servicing goroutine and closes every stream.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	streams := make([]*Stream, 0, len(m.opened))
	for s := range m.opened {
		streams = append(streams, s)
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	for _, s := range streams {
		s.Close()
	}
	log.Println("Stream manager closed")
}

func (m *Manager) activate(s *Stream) {
	m.mu.Lock()
	m.active[s] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) deactivate(s *Stream) {
	m.mu.Lock()
	delete(m.active, s)
	m.mu.Unlock()
}

func (m *Manager) forget(s *Stream) {
	m.mu.Lock()
	delete(m.active, s)
	delete(m.opened, s)
	m.mu.Unlock()
}

// decode fills one buffer of interleaved samples from dec. It returns
// io.EOF once the decoder is exhausted and nothing was read.
func (m *Manager) decode(dec Decoder) ([]int16, error) {
	decodeMu.Lock()
	defer decodeMu.Unlock()

	size := m.cfg.BufferFrames * 4
	if cap(scratch) < size {
		scratch = make([]byte, size)
	}
	buf := scratch[:size]
	n, err := io.ReadFull(dec, buf)
	if err == io.ErrUnexpectedEOF || (err == io.EOF && n > 0) {
		err = nil
	}
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	samples := make([]int16, n/2)
	for i := range samples {
		samples[i] = int16(uint16(buf[2*i]) | uint16(buf[2*i+1])<<8)
	}
	return samples, nil
}
