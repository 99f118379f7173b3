// Package xacttest builds small but well-formed settings, wave bank and
// sound bank files for tests outside package xact.
package xacttest

import (
	"encoding/binary"
	"math"
)

const (
	contentVersion   = 46
	settingsMagic    = 0x46534758
	settingsToolVer  = 42
	soundBankMagic   = 0x4B424453
	soundBankToolVer = 43
	waveBankMagic    = 0x444E4257
	waveBankToolVer  = 44

	varPublic = 0x01
)

type writer struct{ b []byte }

func (w *writer) u8(v uint8)    { w.b = append(w.b, v) }
func (w *writer) u16(v uint16)  { w.b = binary.LittleEndian.AppendUint16(w.b, v) }
func (w *writer) u32(v uint32)  { w.b = binary.LittleEndian.AppendUint32(w.b, v) }
func (w *writer) u64(v uint64)  { w.b = binary.LittleEndian.AppendUint64(w.b, v) }
func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }
func (w *writer) zero(n int)    { w.b = append(w.b, make([]byte, n)...) }
func (w *writer) cstr(s string) { w.b = append(append(w.b, s...), 0) }
func (w *writer) off() uint32   { return uint32(len(w.b)) }

func (w *writer) fixed(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	w.b = append(w.b, b...)
}

func (w *writer) put16(at int, v uint16) { binary.LittleEndian.PutUint16(w.b[at:], v) }
func (w *writer) put32(at int, v uint32) { binary.LittleEndian.PutUint32(w.b[at:], v) }

// Global is a public global variable.
type Global struct {
	Name     string
	Initial  float32
	Min, Max float32
}

// Settings describes an engine settings file. Every category has unit
// volume, no instance limit and no parent.
type Settings struct {
	Categories []string
	Globals    []Global
}

func (s Settings) Build() []byte {
	w := &writer{}
	w.u32(settingsMagic)
	w.u16(contentVersion)
	w.u16(settingsToolVer)
	w.u16(0)
	w.u64(0)
	w.u8(1)
	w.u16(uint16(len(s.Categories)))
	w.u16(uint16(len(s.Globals)))
	w.u16(0)
	w.u16(0)
	w.u16(0)
	w.u16(0)
	w.u16(0)
	offsets := int(w.off())
	w.zero(44)

	categoryNames := w.off()
	for _, c := range s.Categories {
		w.cstr(c)
	}
	categories := w.off()
	for range s.Categories {
		w.u8(0xFF)
		w.u16(0)
		w.u16(0)
		w.u8(0)
		w.u16(0xFFFF)
		w.u8(0xB4)
		w.u8(0)
	}
	variableNames := w.off()
	for _, g := range s.Globals {
		w.cstr(g.Name)
	}
	variables := w.off()
	for _, g := range s.Globals {
		w.u8(varPublic)
		w.f32(g.Initial)
		w.f32(g.Min)
		w.f32(g.Max)
	}
	end := w.off()

	for i, v := range []uint32{categories, variables, 0, 0, 0, 0, categoryNames, variableNames, end, end, end} {
		w.put32(offsets+4*i, v)
	}
	return w.b
}

// WaveBank describes an in-memory wave bank of mono 16-bit 44.1 kHz PCM
// entries, one per Frames element.
type WaveBank struct {
	Name   string
	Frames []int
}

const pcmMono44k = 1<<2 | 44100<<5 | 1<<31

func (b WaveBank) Build() []byte {
	var data []byte
	var offs []uint32
	for _, n := range b.Frames {
		offs = append(offs, uint32(len(data)))
		pcm := make([]byte, 2*n)
		for i := 1; i < len(pcm); i += 2 {
			pcm[i] = 0x20
		}
		data = append(data, pcm...)
	}

	w := &writer{}
	w.u32(waveBankMagic)
	w.u32(contentVersion)
	w.u32(waveBankToolVer)
	segments := int(w.off())
	w.zero(40)

	bankData := w.off()
	w.u16(0)
	w.u16(0)
	w.u32(uint32(len(b.Frames)))
	w.fixed(b.Name, 64)
	w.u32(24)
	w.u32(64)
	w.u32(4)
	w.u32(pcmMono44k)
	w.u64(0)
	bankLength := w.off() - bankData

	metadata := w.off()
	for i, n := range b.Frames {
		w.u32(0)
		w.u32(pcmMono44k)
		w.u32(offs[i])
		w.u32(uint32(2 * n))
		w.u32(0)
		w.u32(0)
	}
	metadataLength := w.off() - metadata

	waveData := w.off()
	w.b = append(w.b, data...)

	for i, v := range []uint32{bankData, bankLength, metadata, metadataLength, 0, 0, 0, 0, waveData, uint32(len(data))} {
		w.put32(segments+4*i, v)
	}
	return w.b
}

// Cue is a simple cue playing one track of the first wave bank in the
// first category.
type Cue struct {
	Name  string
	Track uint16
}

// SoundBank describes a sound bank of simple cues.
type SoundBank struct {
	Name      string
	WaveBanks []string
	Cues      []Cue
}

func (b SoundBank) Build() []byte {
	w := &writer{}
	w.u32(soundBankMagic)
	w.u16(contentVersion)
	w.u16(soundBankToolVer)
	w.u16(0)
	w.u64(0)
	w.u8(1)
	w.u16(uint16(len(b.Cues)))
	w.u16(0)
	w.u16(0)
	w.u16(uint16(len(b.Cues)))
	w.u8(uint8(len(b.WaveBanks)))
	w.u16(0)
	cueNameLength := int(w.off())
	w.u16(0)
	w.u16(0)
	offsets := int(w.off())
	w.zero(40)
	w.fixed(b.Name, 64)

	waveBankNames := w.off()
	for _, n := range b.WaveBanks {
		w.fixed(n, 64)
	}
	cueNames := w.off()
	for _, c := range b.Cues {
		w.cstr(c.Name)
	}
	w.put16(cueNameLength, uint16(w.off()-cueNames))

	sounds := make([]uint32, len(b.Cues))
	for i, c := range b.Cues {
		sounds[i] = w.off()
		w.u8(0)
		w.u16(0)
		w.u8(0xB4)
		w.u16(0)
		w.u8(0)
		w.u16(0)
		w.u16(c.Track)
		w.u8(0)
	}
	simpleCues := w.off()
	for _, off := range sounds {
		w.u8(0)
		w.u32(off)
	}
	end := w.off()

	for i, v := range []uint32{simpleCues, end, cueNames, 0, 0, 0, waveBankNames, 0, 0, 0} {
		w.put32(offsets+4*i, v)
	}
	return w.b
}
