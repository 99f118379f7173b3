package xact

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/fs"
	"math"
	"math/rand"
	"testing"
	"time"

	"xact-engine/internal/audio"
)

// writer assembles little-endian test files.
type writer struct{ b []byte }

func (w *writer) u8(v uint8)   { w.b = append(w.b, v) }
func (w *writer) u16(v uint16) { w.b = binary.LittleEndian.AppendUint16(w.b, v) }
func (w *writer) i16(v int16)  { w.u16(uint16(v)) }
func (w *writer) u32(v uint32) { w.b = binary.LittleEndian.AppendUint32(w.b, v) }
func (w *writer) u64(v uint64) { w.b = binary.LittleEndian.AppendUint64(w.b, v) }
func (w *writer) f32(v float32) {
	w.u32(math.Float32bits(v))
}
func (w *writer) zero(n int)    { w.b = append(w.b, make([]byte, n)...) }
func (w *writer) cstr(s string) { w.b = append(append(w.b, s...), 0) }
func (w *writer) fixed(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	w.b = append(w.b, b...)
}
func (w *writer) off() uint32 { return uint32(len(w.b)) }
func (w *writer) put16(at int, v uint16) {
	binary.LittleEndian.PutUint16(w.b[at:], v)
}
func (w *writer) put32(at int, v uint32) {
	binary.LittleEndian.PutUint32(w.b[at:], v)
}

// Engine settings.

type testCategory struct {
	name         string
	volume       uint8
	maxInstances uint8
	behavior     MaxInstanceBehavior
	parent       uint16
	visibility   uint8
}

func defaultCategory(name string) testCategory {
	return testCategory{name: name, volume: 0xB4, maxInstances: unlimitedInstance, parent: noParentCategory}
}

type testVariable struct {
	name          string
	flags         uint8
	initial, a, b float32
}

type testRPC struct {
	variable uint16
	param    RPCParameter
	points   [][2]float32
}

type settingsFixture struct {
	magic      uint32
	content    uint16
	categories []testCategory
	variables  []testVariable
	rpcs       []testRPC
	dspParams  int
	dspPresets []uint32 // parameter count per preset
}

// build returns the file bytes and the code of every RPC curve.
func (f settingsFixture) build() ([]byte, []uint32) {
	if f.magic == 0 {
		f.magic = settingsMagic
	}
	if f.content == 0 {
		f.content = ContentVersion
	}
	w := &writer{}
	w.u32(f.magic)
	w.u16(f.content)
	w.u16(settingsToolVer)
	w.u16(0)
	w.u64(0)
	w.u8(1)
	w.u16(uint16(len(f.categories)))
	w.u16(uint16(len(f.variables)))
	w.u16(0)
	w.u16(0)
	w.u16(uint16(len(f.rpcs)))
	w.u16(uint16(len(f.dspPresets)))
	w.u16(uint16(f.dspParams))
	offsets := int(w.off())
	w.zero(44)

	categoryNames := w.off()
	for _, c := range f.categories {
		w.cstr(c.name)
	}
	categories := w.off()
	for _, c := range f.categories {
		w.u8(c.maxInstances)
		w.u16(0)
		w.u16(0)
		w.u8(uint8(c.behavior) << 3)
		w.u16(c.parent)
		w.u8(c.volume)
		w.u8(c.visibility)
	}
	variableNames := w.off()
	for _, v := range f.variables {
		w.cstr(v.name)
	}
	variables := w.off()
	for _, v := range f.variables {
		w.u8(v.flags)
		w.f32(v.initial)
		w.f32(v.a)
		w.f32(v.b)
	}
	rpcs := w.off()
	var codes []uint32
	for _, r := range f.rpcs {
		codes = append(codes, w.off())
		w.u16(r.variable)
		w.u8(uint8(len(r.points)))
		w.u16(uint16(r.param))
		for _, p := range r.points {
			w.f32(p[0])
			w.f32(p[1])
			w.u8(0)
		}
	}
	dspParams := w.off()
	for i := 0; i < f.dspParams; i++ {
		w.u8(uint8(i))
		w.f32(float32(i))
		w.f32(0)
		w.f32(100)
		w.u16(0)
	}
	dspPresets := w.off()
	for _, n := range f.dspPresets {
		w.u8(1)
		w.u32(n)
	}

	// The four words between the variable and category name offsets are
	// unused by the reader; filling them makes a misaligned table visible.
	const unused = 0xFFFFFFFF
	for i, v := range []uint32{categories, variables, unused, unused, unused, unused, categoryNames, variableNames, rpcs, dspPresets, dspParams} {
		w.put32(offsets+4*i, v)
	}
	return w.b, codes
}

// Sound banks.

type testTrack struct {
	track    uint16
	bank     uint8
	min, max uint8
}

type testEvent struct {
	typ   uint8
	time  uint32
	track uint16
	bank  uint8
	loops uint8

	tracks   []testTrack
	pitch    [2]int16
	volume   [2]uint8
	varFlags uint8
}

type testClip struct {
	volume uint8
	events []testEvent
}

type testSound struct {
	category uint16
	volume   uint8
	pitch    int16
	priority uint8
	rpcCodes []uint32
	dsp      bool
	track    uint16
	bank     uint8
	clips    []testClip // complex when set
}

type testVariation struct {
	sound    *testSound
	track    uint16
	bank     uint8
	min, max uint8
	fmin     float32
	fmax     float32
}

type testCue struct {
	name       string
	sound      *testSound
	kind       uint16
	variations []testVariation
	limit      uint8
	behavior   MaxInstanceBehavior
	fadeType   uint8
}

type soundBankFixture struct {
	content   uint16
	name      string
	waveBanks []string
	simple    []testCue
	complex   []testCue
}

func simpleSound(track uint16) *testSound {
	return &testSound{volume: 0xB4, track: track}
}

func (f soundBankFixture) build() []byte {
	if f.content == 0 {
		f.content = ContentVersion
	}
	w := &writer{}
	w.u32(soundBankMagic)
	w.u16(f.content)
	w.u16(soundBankToolVer)
	w.u16(0)
	w.u64(0)
	w.u8(1)
	w.u16(uint16(len(f.simple)))
	w.u16(uint16(len(f.complex)))
	w.u16(0)
	w.u16(uint16(len(f.simple) + len(f.complex)))
	w.u8(uint8(len(f.waveBanks)))
	w.u16(0)
	cueNameLength := int(w.off())
	w.u16(0)
	w.u16(0)
	offsets := int(w.off())
	w.zero(40)
	w.fixed(f.name, 64)

	waveBankNames := w.off()
	for _, n := range f.waveBanks {
		w.fixed(n, 64)
	}

	cueNames := w.off()
	for _, c := range append(append([]testCue(nil), f.simple...), f.complex...) {
		w.cstr(c.name)
	}
	w.put16(cueNameLength, uint16(w.off()-cueNames))

	soundOffsets := make(map[*testSound]uint32)
	writeSound := func(s *testSound) uint32 {
		if off, ok := soundOffsets[s]; ok {
			return off
		}
		var clipOffsets []uint32
		for _, c := range s.clips {
			clipOffsets = append(clipOffsets, w.off())
			writeClip(w, c)
		}
		off := w.off()
		var flags uint8
		if s.clips != nil {
			flags |= soundComplex
		}
		if s.rpcCodes != nil {
			flags |= 0x02
		}
		if s.dsp {
			flags |= soundDSP
		}
		w.u8(flags)
		w.u16(s.category)
		w.u8(s.volume)
		w.i16(s.pitch)
		w.u8(s.priority)
		w.u16(0)
		if s.clips != nil {
			w.u8(uint8(len(s.clips)))
		} else {
			w.u16(s.track)
			w.u8(s.bank)
		}
		if s.rpcCodes != nil {
			w.u16(uint16(2 + 1 + 4*len(s.rpcCodes)))
			w.u8(uint8(len(s.rpcCodes)))
			for _, c := range s.rpcCodes {
				w.u32(c)
			}
		}
		for i, c := range s.clips {
			w.u8(c.volume)
			w.u32(clipOffsets[i])
			w.u32(0)
		}
		soundOffsets[s] = off
		return off
	}

	simpleSounds := make([]uint32, len(f.simple))
	for i, c := range f.simple {
		simpleSounds[i] = writeSound(c.sound)
	}
	complexRefs := make([]uint32, len(f.complex))
	for i, c := range f.complex {
		if c.sound != nil {
			complexRefs[i] = writeSound(c.sound)
			continue
		}
		var variationSounds []uint32
		for _, v := range c.variations {
			if v.sound != nil {
				variationSounds = append(variationSounds, writeSound(v.sound))
			} else {
				variationSounds = append(variationSounds, 0)
			}
		}
		complexRefs[i] = w.off()
		w.u16(uint16(len(c.variations)))
		w.u16(c.kind << 3)
		w.u16(0)
		w.u16(0)
		for j, v := range c.variations {
			switch c.kind {
			case variationWaveByte:
				w.u16(v.track)
				w.u8(v.bank)
				w.u8(v.min)
				w.u8(v.max)
			case variationSoundByte:
				w.u32(variationSounds[j])
				w.u8(v.min)
				w.u8(v.max)
			case variationSoundFloat:
				w.u32(variationSounds[j])
				w.f32(v.fmin)
				w.f32(v.fmax)
				w.u32(0)
			default:
				w.u16(v.track)
				w.u8(v.bank)
			}
		}
	}

	simpleCues := w.off()
	for _, off := range simpleSounds {
		w.u8(0)
		w.u32(off)
	}
	complexCues := w.off()
	for i, c := range f.complex {
		if c.sound != nil {
			w.u8(cueDirectSound)
			w.u32(complexRefs[i])
			w.u32(0)
		} else {
			w.u8(0)
			w.u32(complexRefs[i])
			w.u32(0)
		}
		limit := c.limit
		if limit == 0 {
			limit = unlimitedInstance
		}
		w.u8(limit)
		w.u16(0)
		w.u16(0)
		w.u8(uint8(c.behavior)<<3 | c.fadeType&0x07)
	}

	for i, v := range []uint32{simpleCues, complexCues, cueNames, 0, 0, 0, waveBankNames, 0, 0, 0} {
		w.put32(offsets+4*i, v)
	}
	return w.b
}

func writeClip(w *writer, c testClip) {
	w.u8(uint8(len(c.events)))
	for _, e := range c.events {
		w.u32(uint32(e.typ) | e.time<<5)
		w.u16(0)
		switch e.typ {
		case eventPlayWave:
			w.u16(0)
			w.u16(e.track)
			w.u8(e.bank)
			w.u8(e.loops)
			w.u32(0)
		case eventPlayWaveTrackVar:
			w.u16(0)
			w.u8(e.loops)
			w.u32(0)
			writeTrackVariation(w, e.tracks)
		case eventPlayWaveEffectVar:
			w.u16(0)
			w.u16(e.track)
			w.u8(e.bank)
			w.u8(e.loops)
			w.u32(0)
			writeEffectVariation(w, e)
		case eventPlayWaveTrackEffVar:
			w.u16(0)
			w.u8(e.loops)
			w.u32(0)
			writeEffectVariation(w, e)
			writeTrackVariation(w, e.tracks)
		default:
			w.zero(11)
		}
	}
}

func writeEffectVariation(w *writer, e testEvent) {
	w.i16(e.pitch[0])
	w.i16(e.pitch[1])
	w.u8(e.volume[0])
	w.u8(e.volume[1])
	w.zero(16)
	w.u8(e.varFlags)
}

func writeTrackVariation(w *writer, tracks []testTrack) {
	w.u16(uint16(len(tracks)))
	w.u16(0)
	w.u32(0)
	for _, t := range tracks {
		w.u16(t.track)
		w.u8(t.bank)
		w.u8(t.min)
		w.u8(t.max)
	}
}

// Wave banks.

func pcmFormat(channels, rate int, bits16 bool) uint32 {
	f := uint32(CodecPCM) | uint32(channels)<<2 | uint32(rate)<<5
	if bits16 {
		f |= 1 << 31
	}
	return f
}

func adpcmFormat(channels, rate, blockAlign int) uint32 {
	return uint32(CodecADPCM) | uint32(channels)<<2 | uint32(rate)<<5 | uint32(blockAlign)<<23
}

type testEntry struct {
	format    uint32
	data      []byte
	loopStart uint32
	loopLen   uint32
}

type waveBankFixture struct {
	magic     uint32
	content   uint32
	name      string
	kind      uint16
	compact   bool
	stride    uint32
	alignment uint32
	entries   []testEntry
}

func pcmEntry(frames int) testEntry {
	data := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		data[2*i+1] = 0x20
	}
	return testEntry{format: pcmFormat(1, 44100, true), data: data}
}

func (f waveBankFixture) build() []byte {
	if f.magic == 0 {
		f.magic = waveBankMagic
	}
	if f.content == 0 {
		f.content = ContentVersion
	}
	if f.stride == 0 {
		f.stride = verboseEntrySize
		if f.compact {
			f.stride = 4
		}
	}
	if f.alignment == 0 {
		f.alignment = 4
	}

	// Lay out wave data first so entries know their offsets.
	var data []byte
	var offs []uint32
	for _, e := range f.entries {
		for uint32(len(data))%f.alignment != 0 {
			data = append(data, 0)
		}
		offs = append(offs, uint32(len(data)))
		data = append(data, e.data...)
	}

	w := &writer{}
	w.u32(f.magic)
	w.u32(f.content)
	w.u32(waveBankToolVer)
	segments := int(w.off())
	w.zero(8 * segmentCount)

	bankData := w.off()
	w.u16(f.kind)
	var flags uint16
	if f.compact {
		flags |= waveBankCompact
	}
	w.u16(flags)
	w.u32(uint32(len(f.entries)))
	w.fixed(f.name, 64)
	w.u32(f.stride)
	w.u32(64)
	w.u32(f.alignment)
	if len(f.entries) > 0 {
		w.u32(f.entries[0].format)
	} else {
		w.u32(0)
	}
	w.u64(0)
	bankLength := w.off() - bankData

	metadata := w.off()
	for i, e := range f.entries {
		start := w.off()
		if f.compact {
			w.u32(offs[i] / f.alignment)
		} else {
			w.u32(0)
			w.u32(e.format)
			w.u32(offs[i])
			w.u32(uint32(len(e.data)))
			w.u32(e.loopStart)
			w.u32(e.loopLen)
		}
		w.b = w.b[:start+min(f.stride, w.off()-start)]
		w.zero(int(f.stride) - int(w.off()-start))
	}
	metadataLength := w.off() - metadata

	waveData := w.off()
	w.b = append(w.b, data...)

	table := []uint32{bankData, bankLength, metadata, metadataLength, 0, 0, 0, 0, waveData, uint32(len(data))}
	for i, v := range table {
		w.put32(segments+4*i, v)
	}
	return w.b
}

// Engine wiring.

type memFiles map[string][]byte

func (m memFiles) Open(name string) (io.ReadCloser, error) {
	b, ok := m[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func seeded(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

type testRig struct {
	engine *Engine
	pool   *audio.Pool
	device *audio.Device
	clock  *testClock
	files  memFiles
}

func newRig(t *testing.T, settings []byte, maxVoices int) *testRig {
	t.Helper()
	dev, err := audio.NewDevice(audio.Config{SampleRate: 44100, MaxVoices: maxVoices, Headless: true})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if err := dev.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	pool := audio.NewPool(dev, audio.PoolConfig{Batch: 1, Baseline: 2, IdleTimeout: time.Second})
	clock := &testClock{t: time.Unix(5000, 0)}
	pool.SetClock(clock.now)

	files := memFiles{"engine.xgs": settings}
	e, err := NewEngine("engine.xgs", Options{Pool: pool, Files: files, Rand: seeded(1), Clock: clock.now})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Dispose)
	return &testRig{engine: e, pool: pool, device: dev, clock: clock, files: files}
}

func (r *testRig) waveBank(t *testing.T, f waveBankFixture) *WaveBank {
	t.Helper()
	r.files[f.name+".xwb"] = f.build()
	wb, err := NewWaveBank(r.engine, f.name+".xwb")
	if err != nil {
		t.Fatalf("NewWaveBank: %v", err)
	}
	return wb
}

func (r *testRig) soundBank(t *testing.T, f soundBankFixture) *SoundBank {
	t.Helper()
	r.files[f.name+".xsb"] = f.build()
	sb, err := NewSoundBank(r.engine, f.name+".xsb")
	if err != nil {
		t.Fatalf("NewSoundBank: %v", err)
	}
	return sb
}

// drain mixes long enough for every short test sound to finish.
func (r *testRig) drain() {
	r.device.Mix(44100)
}
