package xact

import (
	"fmt"

	"xact-engine/internal/chunk"
)

// Sound flag bits.
const (
	soundComplex = 0x01
	soundRPC     = 0x0E
	soundDSP     = 0x10
)

// Event type tags.
const (
	eventPlayWave             = 1
	eventPlayWaveTrackVar     = 3
	eventPlayWaveEffectVar    = 4
	eventPlayWaveTrackEffVar  = 6
	eventPlayWaveUndocumented = 8
)

// Variation flag bits on effect-variation events.
const (
	variationPitch  = 0x10
	variationVolume = 0x20
)

// Sound is an authored node: volume, pitch, category and clips.
type Sound struct {
	Flags    uint8
	Category uint16
	Volume   float64
	// Pitch in octaves.
	Pitch    float64
	Priority uint8
	Clips    []*Clip
	RPCCodes []uint32
	DSPCodes []uint32
}

// Clip groups events under one volume.
type Clip struct {
	Volume float64
	Events []Event
}

// Event is the smallest authored action. PlayWaveEvent is the only kind.
type Event interface {
	// Timestamp is the delay in milliseconds from the start of the cue.
	Timestamp() uint32
	isEvent()
}

// LoopInfinite as a loop count repeats forever.
const LoopInfinite = 255

// PlayWaveEvent triggers one wave track picked by weight from its list.
type PlayWaveEvent struct {
	Type      uint8
	Time      uint32
	Tracks    []uint16
	WaveBanks []uint8
	Weights   []float64

	MinPitch, MaxPitch   float64
	HasVolumeVariation   bool
	MinVolume, MaxVolume float64
	LoopCount            uint8
	VariationType        uint16
}

func (e *PlayWaveEvent) Timestamp() uint32 { return e.Time }
func (*PlayWaveEvent) isEvent()            {}

// Loops converts LoopCount to a voice loop count.
func (e *PlayWaveEvent) Loops() int {
	if e.LoopCount == LoopInfinite {
		return -1
	}
	return int(e.LoopCount)
}

// singleTrackSound is the inline form used by simple sounds and by
// variation tables that name a wave directly.
func singleTrackSound(track uint16, waveBank uint8) *Sound {
	return &Sound{
		Volume: 1,
		Clips: []*Clip{{
			Volume: 1,
			Events: []Event{singleTrackEvent(eventPlayWave, 0, track, waveBank, 0)},
		}},
	}
}

func singleTrackEvent(typ uint8, ts uint32, track uint16, waveBank uint8, loops uint8) *PlayWaveEvent {
	return &PlayWaveEvent{
		Type:      typ,
		Time:      ts,
		Tracks:    []uint16{track},
		WaveBanks: []uint8{waveBank},
		Weights:   []float64{1},
		LoopCount: loops,
	}
}

func parseSound(r *chunk.Reader) (*Sound, error) {
	s := &Sound{}
	s.Flags = r.U8()
	s.Category = r.U16()
	s.Volume = DecodeVolumeByte(r.U8())
	s.Pitch = float64(r.I16()) / 1000.0
	s.Priority = r.U8()
	r.Skip(2) // entry length

	complex := s.Flags&soundComplex != 0
	numClips := 1
	if complex {
		numClips = int(r.U8())
	} else {
		track := r.U16()
		waveBank := r.U8()
		s.Clips = []*Clip{{
			Volume: 1,
			Events: []Event{singleTrackEvent(eventPlayWave, 0, track, waveBank, 0)},
		}}
	}

	if s.Flags&soundRPC != 0 {
		length := int(r.U16())
		read := 2
		for read < length && r.Err() == nil {
			n := int(r.U8())
			read++
			for i := 0; i < n; i++ {
				s.RPCCodes = append(s.RPCCodes, r.U32())
				read += 4
			}
		}
	}

	if s.Flags&soundDSP != 0 {
		return nil, notImplementedf("DSP preset list on sound at offset %d", r.Pos())
	}

	if complex {
		for i := 0; i < numClips; i++ {
			volume := DecodeVolumeByte(r.U8())
			offset := int64(r.U32())
			r.Skip(4) // filter settings
			var clip *Clip
			err := r.At(offset, func() error {
				var err error
				clip, err = parseClip(r, volume)
				return err
			})
			if err != nil {
				return nil, fmt.Errorf("clip %d: %w", i, err)
			}
			s.Clips = append(s.Clips, clip)
		}
	}

	if err := r.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseClip(r *chunk.Reader, volume float64) (*Clip, error) {
	c := &Clip{Volume: volume}
	n := int(r.U8())
	for i := 0; i < n; i++ {
		ev, err := parseEvent(r)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		c.Events = append(c.Events, ev)
	}
	return c, r.Err()
}

func parseEvent(r *chunk.Reader) (Event, error) {
	info := r.U32()
	typ := uint8(info & 0x1F)
	ts := (info >> 5) & 0xFFFF
	r.Skip(2) // random offset

	switch typ {
	case eventPlayWave:
		r.Skip(2) // unknown, flags
		track := r.U16()
		waveBank := r.U8()
		loops := r.U8()
		r.Skip(4) // speaker angle and arc
		return singleTrackEvent(typ, ts, track, waveBank, loops), r.Err()

	case eventPlayWaveTrackVar:
		r.Skip(2)
		loops := r.U8()
		r.Skip(4)
		ev := &PlayWaveEvent{Type: typ, Time: ts, LoopCount: loops}
		readTrackVariation(r, ev)
		return ev, r.Err()

	case eventPlayWaveEffectVar:
		r.Skip(2)
		track := r.U16()
		waveBank := r.U8()
		loops := r.U8()
		r.Skip(4)
		ev := singleTrackEvent(typ, ts, track, waveBank, loops)
		readEffectVariation(r, ev)
		return ev, r.Err()

	case eventPlayWaveTrackEffVar:
		r.Skip(2)
		loops := r.U8()
		r.Skip(4)
		ev := &PlayWaveEvent{Type: typ, Time: ts, LoopCount: loops}
		readEffectVariation(r, ev)
		readTrackVariation(r, ev)
		return ev, r.Err()

	case eventPlayWaveUndocumented:
		// Seen in shipped banks without a known layout. The payload is
		// skipped and the first track of the first bank is played.
		r.Skip(11)
		return singleTrackEvent(typ, ts, 0, 0, 0), r.Err()

	default:
		return nil, notImplementedf("event type %d at offset %d", typ, r.Pos()-6)
	}
}

func readEffectVariation(r *chunk.Reader, ev *PlayWaveEvent) {
	minPitch := float64(r.I16()) / 1000.0
	maxPitch := float64(r.I16()) / 1000.0
	minVolume := DecodeVolumeByte(r.U8())
	maxVolume := DecodeVolumeByte(r.U8())
	r.Skip(16) // filter and reverb ranges
	flags := r.U8()
	if flags&variationPitch != 0 {
		ev.MinPitch, ev.MaxPitch = minPitch, maxPitch
	}
	if flags&variationVolume != 0 {
		ev.HasVolumeVariation = true
		ev.MinVolume, ev.MaxVolume = minVolume, maxVolume
	}
}

func readTrackVariation(r *chunk.Reader, ev *PlayWaveEvent) {
	n := int(r.U16())
	ev.VariationType = r.U16() & 0x000F
	r.Skip(4)
	for i := 0; i < n && r.Err() == nil; i++ {
		ev.Tracks = append(ev.Tracks, r.U16())
		ev.WaveBanks = append(ev.WaveBanks, r.U8())
		lo := r.U8()
		hi := r.U8()
		ev.Weights = append(ev.Weights, float64(hi)-float64(lo))
	}
}
