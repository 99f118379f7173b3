package stream

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"xact-engine/internal/audio"
)

// ErrClosed is returned when using a closed stream.
var ErrClosed = errors.New("stream closed")

// Stream plays one long decoded source through a queue of buffers.
type Stream struct {
	manager *Manager
	name    string

	mu       sync.Mutex
	dec      Decoder
	voice    *audio.StreamVoice
	inflight []int
	looping  bool
	ended    bool
	volume   float64
	state    audio.VoiceState
	closed   bool
}

func (s *Stream) Name() string { return s.name }

// State returns the playback state as seen by the last service pass.
func (s *Stream) State() audio.VoiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) IsPlaying() bool { return s.State() == audio.Playing }

// Play primes the buffer queue and starts the voice. A stopped stream
// starts again from the beginning.
func (s *Stream) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	switch s.state {
	case audio.Playing:
		return nil
	case audio.Paused:
		s.voice.Resume()
		s.state = audio.Playing
		return nil
	}

	if s.ended {
		if err := s.dec.Rewind(); err != nil {
			return fmt.Errorf("failed to rewind stream %s: %w", s.name, err)
		}
		s.ended = false
	}
	if err := s.fill(); err != nil {
		return err
	}
	if err := s.voice.Play(); err != nil {
		return fmt.Errorf("failed to play stream %s: %w", s.name, err)
	}
	s.voice.SetVolume(s.volume)
	s.state = audio.Playing
	s.manager.activate(s)

	log.Printf("Playing stream %s (looping: %v)", s.name, s.looping)
	return nil
}

func (s *Stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != audio.Playing {
		return
	}
	s.voice.Pause()
	s.state = audio.Paused
}

// Stop halts playback and drops queued data; the next Play starts over.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
}

func (s *Stream) stop() {
	if s.closed || s.state == audio.Stopped {
		return
	}
	s.voice.Stop()
	s.reclaim()
	s.ended = true
	s.state = audio.Stopped
	s.manager.deactivate(s)
}

// SetVolume sets the linear gain (0.0 to 2.0)
func (s *Stream) SetVolume(volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
	if !s.closed {
		s.voice.SetVolume(volume)
	}
}

func (s *Stream) SetLooping(looping bool) {
	s.mu.Lock()
	s.looping = looping
	s.mu.Unlock()
}

func (s *Stream) IsLooping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.looping
}

// Close stops the stream and frees its voice.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stop()
	s.voice.Close()
	s.closed = true
	s.manager.forget(s)
	if c, ok := s.dec.(io.Closer); ok {
		c.Close()
	}
}

// service runs on the manager goroutine.
func (s *Stream) service() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state == audio.Stopped {
		return
	}

	s.reclaim()
	if err := s.fill(); err != nil {
		log.Printf("Warning: stream %s: %v", s.name, err)
		s.stop()
		return
	}

	if s.state == audio.Playing && s.voice.State() == audio.Stopped {
		if len(s.inflight) == 0 {
			s.state = audio.Stopped
			s.manager.deactivate(s)
			log.Printf("Stream %s finished", s.name)
			return
		}
		if underrunLog.Allow() {
			log.Printf("Warning: stream %s underrun, restarting", s.name)
		}
		if err := s.voice.Play(); err != nil {
			log.Printf("Warning: failed to restart stream %s: %v", s.name, err)
		}
	}
}

// reclaim pops played buffers. They come back in queue order; anything
// else means the bookkeeping is corrupt.
func (s *Stream) reclaim() {
	for {
		id, ok := s.voice.Unqueue()
		if !ok {
			return
		}
		if len(s.inflight) == 0 || s.inflight[0] != id {
			panic(fmt.Sprintf("stream %s: unqueued buffer %d, expected %v", s.name, id, s.inflight))
		}
		s.inflight = s.inflight[1:]
	}
}

// fill tops the voice queue up to the configured depth.
func (s *Stream) fill() error {
	rewound := false
	for len(s.inflight) < s.manager.cfg.Buffers && !s.ended {
		samples, err := s.manager.decode(s.dec)
		if err == io.EOF {
			// An empty source never loops.
			if !s.looping || rewound {
				s.ended = true
				return nil
			}
			if err := s.dec.Rewind(); err != nil {
				return fmt.Errorf("failed to rewind: %w", err)
			}
			rewound = true
			continue
		}
		rewound = false
		if err != nil {
			return fmt.Errorf("decode failed: %w", err)
		}

		s.manager.mu.Lock()
		s.inflight = append(s.inflight, s.voice.Queue(samples))
		s.manager.mu.Unlock()
	}
	return nil
}
