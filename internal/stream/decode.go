package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/gen2brain/mpeg"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// Decoder produces interleaved stereo 16-bit little-endian PCM.
type Decoder interface {
	io.Reader
	SampleRate() int
	// Rewind restarts decoding from the first sample.
	Rewind() error
}

// NewDecoder picks a decoder from the file extension of name.
func NewDecoder(name string, r io.Reader) (Decoder, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".ogg":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if fixed, err := fixOggHeader(data); err == nil {
			data = fixed
		} else {
			log.Printf("Warning: %s: %v", name, err)
		}
		s, err := vorbis.DecodeWithoutResampling(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode OGG file %s: %w", name, err)
		}
		return &seekDecoder{ReadSeeker: s, rate: s.SampleRate()}, nil

	case ".wav":
		rs, err := readSeeker(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		s, err := wav.DecodeWithoutResampling(rs)
		if err != nil {
			return nil, fmt.Errorf("failed to decode WAV file %s: %w", name, err)
		}
		return &seekDecoder{ReadSeeker: s, rate: s.SampleRate()}, nil

	case ".mp2", ".mpg", ".mpeg":
		d, err := newMPEGDecoder(name, r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode MPEG file %s: %w", name, err)
		}
		return d, nil

	default:
		return nil, fmt.Errorf("unsupported stream format %q", ext)
	}
}

func readSeeker(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

type seekDecoder struct {
	io.ReadSeeker
	rate int
}

func (d *seekDecoder) SampleRate() int { return d.rate }

func (d *seekDecoder) Rewind() error {
	_, err := d.Seek(0, io.SeekStart)
	return err
}

// mpegDecoder reads MPEG-1 layer II audio, either a bare .mp2 stream or
// the audio track of a program stream.
type mpegDecoder struct {
	decode  func() *mpeg.Samples
	rewind  func()
	rate    int
	pending []byte
}

func newMPEGDecoder(name string, r io.Reader) (*mpegDecoder, error) {
	if strings.EqualFold(filepath.Ext(name), ".mp2") {
		buf, err := mpeg.NewBuffer(r)
		if err != nil {
			return nil, err
		}
		a := mpeg.NewAudio(buf)
		if !a.HasHeader() {
			return nil, errors.New("no MPEG audio header")
		}
		a.SetFormat(mpeg.AudioS16)
		return &mpegDecoder{decode: a.Decode, rewind: a.Rewind, rate: a.Samplerate()}, nil
	}

	m, err := mpeg.New(r)
	if err != nil {
		return nil, err
	}
	if !m.HasAudio() {
		return nil, errors.New("no audio track")
	}
	m.SetVideoEnabled(false)
	m.SetAudioFormat(mpeg.AudioS16)
	return &mpegDecoder{decode: m.DecodeAudio, rewind: m.Rewind, rate: m.Samplerate()}, nil
}

func (d *mpegDecoder) SampleRate() int { return d.rate }

func (d *mpegDecoder) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(d.pending) == 0 {
			s := d.decode()
			if s == nil {
				if n > 0 {
					return n, nil
				}
				return 0, io.EOF
			}
			d.pending = d.pending[:0]
			for _, v := range s.S16 {
				d.pending = binary.LittleEndian.AppendUint16(d.pending, uint16(v))
			}
		}
		c := copy(p[n:], d.pending)
		d.pending = d.pending[c:]
		n += c
	}
	return n, nil
}

func (d *mpegDecoder) Rewind() error {
	d.rewind()
	d.pending = nil
	return nil
}
