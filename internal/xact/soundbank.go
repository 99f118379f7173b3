package xact

import (
	"fmt"
	"io"
	"log"

	"xact-engine/internal/audio"
	"xact-engine/internal/chunk"
)

// Complex cue flag: the cue points straight at a sound instead of a
// variation table.
const cueDirectSound = 0x04

// Variation table encodings.
const (
	variationWaveByte    = 0
	variationSoundByte   = 1
	variationSoundFloat  = 3
	variationWaveCompact = 4
)

// CueData is a parsed cue: candidate sounds with weights plus limits.
type CueData struct {
	Name          string
	Sounds        []*Sound
	Weights       []float64
	Category      uint16
	InstanceLimit uint8
	MaxBehavior   MaxInstanceBehavior
	FadeInMS      uint16
	FadeOutMS     uint16
	FadeType      uint8
	// Interactive variation variable index, stored but unused.
	Variable uint16
}

func newCueData(name string, sounds []*Sound, weights []float64) *CueData {
	d := &CueData{
		Name:          name,
		Sounds:        sounds,
		Weights:       weights,
		InstanceLimit: unlimitedInstance,
	}
	if len(sounds) > 0 {
		d.Category = sounds[0].Category
	}
	return d
}

// SoundBankData is the parsed contents of a sound bank file.
type SoundBankData struct {
	Name          string
	WaveBankNames []string
	CueNames      []string
	Cues          map[string]*CueData
	SimpleCues    int
	ComplexCues   int
}

// ReadSoundBank parses a sound bank whose content version must match
// contentVersion.
func ReadSoundBank(r io.Reader, contentVersion uint16) (*SoundBankData, error) {
	cr, err := chunk.ReadAll(r)
	if err != nil {
		return nil, err
	}
	d, err := parseSoundBank(cr, contentVersion)
	if err != nil {
		return nil, formatError("sound bank", err)
	}
	return d, nil
}

func parseSoundBank(r *chunk.Reader, contentVersion uint16) (*SoundBankData, error) {
	r.Expect32("magic", soundBankMagic)
	r.Expect16("content version", contentVersion)
	r.Expect16("tool version", soundBankToolVer)
	r.Skip(2) // crc
	r.Skip(8) // last modified
	r.Skip(1) // platform

	numSimple := int(r.U16())
	numComplex := int(r.U16())
	r.Skip(2)
	r.Skip(2) // total cues
	numWaveBanks := int(r.U8())
	r.Skip(2) // sounds
	cueNameLength := int(r.U16())
	r.Skip(2)

	simpleOffset := int64(r.U32())
	complexOffset := int64(r.U32())
	cueNameOffset := int64(r.U32())
	r.Skip(4)
	r.Skip(4) // variation table offset, reached through the cues
	r.Skip(4)
	waveBankNameOffset := int64(r.U32())
	r.Skip(4 + 4 + 4) // cue name hash, hash values, sound offset

	d := &SoundBankData{
		Name:        r.FixedString(64),
		Cues:        make(map[string]*CueData),
		SimpleCues:  numSimple,
		ComplexCues: numComplex,
	}
	if err := r.Err(); err != nil {
		return nil, err
	}

	r.Seek(waveBankNameOffset)
	for i := 0; i < numWaveBanks; i++ {
		d.WaveBankNames = append(d.WaveBankNames, r.FixedString(64))
	}

	r.Seek(cueNameOffset)
	names := r.Strings(cueNameLength)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("name tables: %w", err)
	}
	if len(names) < numSimple+numComplex {
		return nil, formatf("cue name table holds %d names for %d cues", len(names), numSimple+numComplex)
	}
	d.CueNames = names[:numSimple+numComplex]

	r.Seek(simpleOffset)
	for i := 0; i < numSimple; i++ {
		r.Skip(1) // flags
		offset := int64(r.U32())
		var s *Sound
		err := r.At(offset, func() error {
			var err error
			s, err = parseSound(r)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("simple cue %q: %w", d.CueNames[i], err)
		}
		name := d.CueNames[i]
		d.Cues[name] = newCueData(name, []*Sound{s}, []float64{1})
	}

	r.Seek(complexOffset)
	for i := 0; i < numComplex; i++ {
		name := d.CueNames[numSimple+i]
		flags := r.U8()

		var data *CueData
		if flags&cueDirectSound != 0 {
			offset := int64(r.U32())
			r.Skip(4)
			var s *Sound
			err := r.At(offset, func() error {
				var err error
				s, err = parseSound(r)
				return err
			})
			if err != nil {
				return nil, fmt.Errorf("complex cue %q: %w", name, err)
			}
			data = newCueData(name, []*Sound{s}, []float64{1})
		} else {
			offset := int64(r.U32())
			r.Skip(4) // transition table
			err := r.At(offset, func() error {
				var err error
				data, err = parseVariationTable(r, name)
				return err
			})
			if err != nil {
				return nil, fmt.Errorf("complex cue %q: %w", name, err)
			}
		}

		data.InstanceLimit = r.U8()
		data.FadeInMS = r.U16()
		data.FadeOutMS = r.U16()
		instanceFlags := r.U8()
		data.MaxBehavior = MaxInstanceBehavior(instanceFlags >> 3)
		data.FadeType = instanceFlags & 0x07
		d.Cues[name] = data
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("cues: %w", err)
	}
	return d, nil
}

func parseVariationTable(r *chunk.Reader, name string) (*CueData, error) {
	n := int(r.U16())
	flags := r.U16()
	r.Skip(2)
	variable := r.U16()
	kind := (flags >> 3) & 0x07

	sounds := make([]*Sound, 0, n)
	weights := make([]float64, 0, n)
	readSoundAt := func(offset int64) error {
		return r.At(offset, func() error {
			s, err := parseSound(r)
			if err != nil {
				return err
			}
			sounds = append(sounds, s)
			return nil
		})
	}

	for i := 0; i < n; i++ {
		switch kind {
		case variationWaveByte:
			track := r.U16()
			waveBank := r.U8()
			lo, hi := r.U8(), r.U8()
			sounds = append(sounds, singleTrackSound(track, waveBank))
			weights = append(weights, float64(hi)-float64(lo))
		case variationSoundByte:
			offset := int64(r.U32())
			lo, hi := r.U8(), r.U8()
			if err := readSoundAt(offset); err != nil {
				return nil, fmt.Errorf("variation %d: %w", i, err)
			}
			weights = append(weights, float64(hi)-float64(lo))
		case variationSoundFloat:
			offset := int64(r.U32())
			lo, hi := r.F32(), r.F32()
			r.Skip(4)
			if err := readSoundAt(offset); err != nil {
				return nil, fmt.Errorf("variation %d: %w", i, err)
			}
			weights = append(weights, float64(hi)-float64(lo))
		case variationWaveCompact:
			track := r.U16()
			waveBank := r.U8()
			sounds = append(sounds, singleTrackSound(track, waveBank))
			weights = append(weights, 1)
		default:
			return nil, formatf("variation table type %d", kind)
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if len(sounds) == 0 {
		return nil, formatf("empty variation table")
	}

	d := newCueData(name, sounds, weights)
	d.Variable = variable
	return d, nil
}

// SoundBank holds parsed cues and resolves their wave references against
// the engine's wave banks.
type SoundBank struct {
	engine    *Engine
	data      *SoundBankData
	waveBanks []*WaveBank
	disposed  bool
}

// NewSoundBank loads the sound bank at path.
func NewSoundBank(e *Engine, path string) (*SoundBank, error) {
	f, err := e.open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sound bank: %w", err)
	}
	defer f.Close()

	d, err := ReadSoundBank(f, e.ContentVersion())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Printf("Loaded sound bank %s: %d cues, wave banks %v", d.Name, len(d.Cues), d.WaveBankNames)
	return NewSoundBankFromData(e, d), nil
}

// NewSoundBankFromData wraps already parsed bank data.
func NewSoundBankFromData(e *Engine, d *SoundBankData) *SoundBank {
	return &SoundBank{
		engine:    e,
		data:      d,
		waveBanks: make([]*WaveBank, len(d.WaveBankNames)),
	}
}

func (b *SoundBank) Name() string { return b.data.Name }

// CueNames returns cue names in file order.
func (b *SoundBank) CueNames() []string { return b.data.CueNames }

// Data returns the parsed bank.
func (b *SoundBank) Data() *SoundBankData { return b.data }

// GetCue creates a new cue. The caller owns it and must Dispose it.
func (b *SoundBank) GetCue(name string) (*Cue, error) {
	if b.disposed || b.engine.disposed {
		return nil, ErrDisposed
	}
	data, ok := b.data.Cues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrCueNotFound, name, b.data.Name)
	}
	return newCue(b, name, data)
}

// PlayCue plays a cue that disposes itself once it stops.
func (b *SoundBank) PlayCue(name string) error {
	_, err := b.playCue(name, nil)
	return err
}

// PlayCue3D is PlayCue positioned at emitter relative to listener.
func (b *SoundBank) PlayCue3D(name string, listener Listener, emitter Emitter) error {
	_, err := b.playCue(name, func(c *Cue) error { return c.Apply3D(listener, emitter) })
	return err
}

func (b *SoundBank) playCue(name string, setup func(*Cue) error) (*Cue, error) {
	c, err := b.GetCue(name)
	if err != nil {
		return nil, err
	}
	c.autoDispose = true
	if setup != nil {
		if err := setup(c); err != nil {
			c.Dispose()
			return nil, err
		}
	}
	if err := c.Play(); err != nil {
		c.Dispose()
		return nil, err
	}
	return c, nil
}

// resolveTrack finds the decoded sound for a wave reference. Banks are
// looked up by name on first use so load order does not matter.
func (b *SoundBank) resolveTrack(bank uint8, track uint16) (*audio.Sound, error) {
	if int(bank) >= len(b.data.WaveBankNames) {
		return nil, fmt.Errorf("%w: index %d", ErrWaveBankNotFound, bank)
	}
	wb := b.waveBanks[bank]
	if wb == nil || wb.disposed {
		var err error
		wb, err = b.engine.WaveBank(b.data.WaveBankNames[bank])
		if err != nil {
			return nil, err
		}
		b.waveBanks[bank] = wb
	}
	return wb.Sound(int(track))
}

// Dispose stops and disposes every cue created from this bank.
func (b *SoundBank) Dispose() {
	if b.disposed {
		return
	}
	b.disposed = true
	if b.engine.disposed {
		return
	}
	for _, cat := range b.engine.categories {
		for _, c := range append([]*Cue(nil), cat.cues...) {
			if c.bank == b {
				c.Dispose()
			}
		}
	}
	b.waveBanks = nil
}

func (b *SoundBank) IsDisposed() bool { return b.disposed }
