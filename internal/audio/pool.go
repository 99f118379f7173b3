package audio

import (
	"log"
	"sync"
	"time"
)

// Pool recycles voices and shares device buffers between concurrent plays
// of the same sound. It is safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	device  *Device
	cfg     PoolConfig
	now     func() time.Time
	free    []*Voice
	busy    map[*Voice]*Sound
	buffers map[*Sound]*bufferRef
}

type bufferRef struct {
	buf       *Buffer
	refs      int
	idleSince time.Time
	forgotten bool
}

// PoolStats is a snapshot of pool occupancy.
type PoolStats struct {
	Free    int
	Busy    int
	Buffers int
}

// NewPool creates a pool drawing voices from device.
func NewPool(device *Device, cfg PoolConfig) *Pool {
	if cfg.Batch <= 0 {
		cfg.Batch = 1
	}
	if cfg.Baseline < 0 {
		cfg.Baseline = 0
	}
	return &Pool{
		device:  device,
		cfg:     cfg,
		now:     time.Now,
		busy:    make(map[*Voice]*Sound),
		buffers: make(map[*Sound]*bufferRef),
	}
}

// SetClock replaces the time source used for idle eviction.
func (p *Pool) SetClock(now func() time.Time) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
}

// Device returns the device voices are drawn from.
func (p *Pool) Device() *Device { return p.device }

// Acquire returns a stopped voice with the sound's buffer bound.
func (p *Pool) Acquire(s *Sound) (*Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s.Released() {
		return nil, ErrReleased
	}

	ref, ok := p.buffers[s]
	if !ok {
		buf, err := p.device.NewBuffer(s)
		if err != nil {
			return nil, err
		}
		ref = &bufferRef{buf: buf}
		p.buffers[s] = ref
	}

	v, err := p.popVoice()
	if err != nil {
		if ref.refs == 0 {
			ref.idleSince = p.now()
		}
		return nil, err
	}

	ref.refs++
	v.Bind(ref.buf)
	p.busy[v] = s
	return v, nil
}

// popVoice must be called with p.mu held.
func (p *Pool) popVoice() (*Voice, error) {
	if len(p.free) == 0 {
		for i := 0; i < p.cfg.Batch; i++ {
			v, err := p.device.NewVoice()
			if err != nil {
				break
			}
			p.free = append(p.free, v)
		}
		if len(p.free) == 0 {
			return nil, ErrNoVoices
		}
	}
	v := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return v, nil
}

// Release stops and resets v, returns it to the free stack and drops its
// buffer reference.
func (p *Pool) Release(v *Voice) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.busy[v]
	if !ok {
		return
	}
	delete(p.busy, v)
	v.Reset()
	p.free = append(p.free, v)

	ref := p.buffers[s]
	if ref == nil {
		return
	}
	ref.refs--
	if ref.refs <= 0 {
		ref.refs = 0
		ref.idleSince = p.now()
		if ref.forgotten {
			delete(p.buffers, s)
		}
	}
}

// Forget drops the cached buffer for s once nothing plays it.
func (p *Pool) Forget(s *Sound) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ref, ok := p.buffers[s]
	if !ok {
		return
	}
	if ref.refs == 0 {
		delete(p.buffers, s)
		return
	}
	ref.forgotten = true
}

// Tidy evicts idle buffers and trims the free stack back to its baseline
// once it grows past twice that size.
func (p *Pool) Tidy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for s, ref := range p.buffers {
		if ref.refs == 0 && now.Sub(ref.idleSince) >= p.cfg.IdleTimeout {
			delete(p.buffers, s)
		}
	}

	if len(p.free) > 2*p.cfg.Baseline {
		for _, v := range p.free[p.cfg.Baseline:] {
			v.Close()
		}
		trimmed := len(p.free) - p.cfg.Baseline
		p.free = p.free[:p.cfg.Baseline]
		log.Printf("Voice pool trimmed by %d voices", trimmed)
	}
}

// Stats returns current occupancy.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Free: len(p.free), Busy: len(p.busy), Buffers: len(p.buffers)}
}

// Close releases every voice back to the device.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for v := range p.busy {
		v.Close()
	}
	for _, v := range p.free {
		v.Close()
	}
	p.busy = make(map[*Voice]*Sound)
	p.free = nil
	p.buffers = make(map[*Sound]*bufferRef)
}
