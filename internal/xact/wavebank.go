package xact

import (
	"fmt"
	"io"
	"log"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/remeh/sizedwaitgroup"

	"xact-engine/internal/audio"
	"xact-engine/internal/chunk"
)

// Wave bank segments.
const (
	segmentBankData = iota
	segmentEntryMetadata
	segmentSeekTables
	segmentEntryNames
	segmentWaveData
	segmentCount
)

const (
	waveBankStreaming = 1
	waveBankCompact   = 0x0002

	verboseEntrySize = 24
	compactOffsetMax = 1<<21 - 1
)

// Codec is the 2-bit format tag of a wave entry.
type Codec uint8

const (
	CodecPCM Codec = iota
	CodecXMA
	CodecADPCM
	CodecWMA
)

func (c Codec) String() string {
	switch c {
	case CodecPCM:
		return "PCM"
	case CodecXMA:
		return "XMA"
	case CodecADPCM:
		return "ADPCM"
	default:
		return "WMA"
	}
}

// WaveFormat is an unpacked format word.
type WaveFormat struct {
	Codec      Codec
	Channels   int
	SampleRate int
	BlockAlign int
	Bits16     bool
}

func unpackFormat(f uint32) WaveFormat {
	return WaveFormat{
		Codec:      Codec(f & 0x3),
		Channels:   int((f >> 2) & 0x7),
		SampleRate: int((f >> 5) & 0x3FFFF),
		BlockAlign: int((f >> 23) & 0xFF),
		Bits16:     f>>31 != 0,
	}
}

// ADPCMBlockBytes returns the ADPCM block size in bytes.
func (f WaveFormat) ADPCMBlockBytes() int {
	return (f.BlockAlign + 22) * f.Channels
}

// WaveEntry is one entry's metadata.
type WaveEntry struct {
	Flags      uint32
	Duration   uint32
	Format     WaveFormat
	PlayOffset uint32
	PlayLength uint32
	LoopStart  uint32
	LoopLength uint32
	// Compact entries only.
	Deviation uint32
}

// WaveBankData is the parsed and decoded contents of a wave bank file.
type WaveBankData struct {
	Name      string
	Flags     uint16
	Alignment uint32
	Entries   []WaveEntry
	Sounds    []*audio.Sound
}

// Size returns the decoded size of every sound.
func (d *WaveBankData) Size() uint64 {
	var n uint64
	for _, s := range d.Sounds {
		n += uint64(s.Size())
	}
	return n
}

// ReadWaveBank parses a wave bank and decodes every entry.
func ReadWaveBank(r io.Reader, contentVersion uint16) (*WaveBankData, error) {
	cr, err := chunk.ReadAll(r)
	if err != nil {
		return nil, err
	}
	d, raw, err := parseWaveBank(cr, contentVersion)
	if err != nil {
		return nil, formatError("wave bank", err)
	}
	if err := decodeEntries(d, raw); err != nil {
		return nil, formatError("wave bank "+d.Name, err)
	}
	return d, nil
}

func parseWaveBank(r *chunk.Reader, contentVersion uint16) (*WaveBankData, [][]byte, error) {
	r.Expect32("magic", waveBankMagic)
	r.Expect32("content version", uint32(contentVersion))
	r.Expect32("tool version", waveBankToolVer)

	var offsets, lengths [segmentCount]uint32
	for i := range offsets {
		offsets[i] = r.U32()
		lengths[i] = r.U32()
	}
	if err := r.Err(); err != nil {
		return nil, nil, err
	}

	r.Seek(int64(offsets[segmentBankData]))
	kind := r.U16()
	flags := r.U16()
	numEntries := int(r.U32())
	d := &WaveBankData{Name: r.FixedString(64), Flags: flags}
	stride := r.U32()
	r.Skip(4) // entry name stride
	d.Alignment = r.U32()
	compactFormat := r.U32()
	r.Skip(8) // build time
	if err := r.Err(); err != nil {
		return nil, nil, err
	}
	if kind&waveBankStreaming != 0 {
		return nil, nil, notImplementedf("streaming wave bank %q", d.Name)
	}
	if stride == 0 && numEntries > 0 {
		return nil, nil, formatf("zero entry stride")
	}

	dataStart := uint64(offsets[segmentWaveData])
	dataLength := uint64(lengths[segmentWaveData])
	compact := flags&waveBankCompact != 0

	raw := make([][]byte, numEntries)
	cur := int64(offsets[segmentEntryMetadata])
	for i := 0; i < numEntries; i++ {
		r.Seek(cur)
		var e WaveEntry
		if compact {
			info := r.U32()
			e.Format = unpackFormat(compactFormat)
			e.PlayOffset = (info & compactOffsetMax) * d.Alignment
			e.Deviation = info >> 21
			end := uint32(dataLength)
			if i < numEntries-1 {
				r.Seek(cur + int64(stride))
				end = (r.U32() & compactOffsetMax) * d.Alignment
			}
			if end < e.PlayOffset {
				return nil, nil, formatf("entry %d ends before it starts", i)
			}
			e.PlayLength = end - e.PlayOffset
		} else {
			if stride >= 4 {
				fd := r.U32()
				e.Flags = fd & 0xF
				e.Duration = fd >> 4
			}
			if stride >= 8 {
				e.Format = unpackFormat(r.U32())
			}
			if stride >= 12 {
				e.PlayOffset = r.U32()
			}
			if stride >= 16 {
				e.PlayLength = r.U32()
			}
			if stride >= 20 {
				e.LoopStart = r.U32()
			}
			if stride >= verboseEntrySize {
				e.LoopLength = r.U32()
			} else {
				// Older banks carry no loop length; their single entry
				// spans the wave data segment.
				e.PlayLength = uint32(dataLength)
			}
		}
		if err := r.Err(); err != nil {
			return nil, nil, fmt.Errorf("entry %d: %w", i, err)
		}
		cur += int64(stride)

		switch e.Format.Codec {
		case CodecPCM, CodecADPCM:
		default:
			return nil, nil, notImplementedf("entry %d uses %s", i, e.Format.Codec)
		}

		start := dataStart + uint64(e.PlayOffset)
		end := start + uint64(e.PlayLength)
		if uint64(e.PlayOffset)+uint64(e.PlayLength) > dataLength || end > uint64(r.Len()) {
			return nil, nil, formatf("entry %d play region %d+%d outside wave data", i, e.PlayOffset, e.PlayLength)
		}
		r.Seek(int64(start))
		raw[i] = r.Bytes(int(e.PlayLength))
		if err := r.Err(); err != nil {
			return nil, nil, fmt.Errorf("entry %d: %w", i, err)
		}
		d.Entries = append(d.Entries, e)
	}
	return d, raw, nil
}

// decodeEntries turns raw entry bytes into sounds, several at a time.
func decodeEntries(d *WaveBankData, raw [][]byte) error {
	d.Sounds = make([]*audio.Sound, len(d.Entries))
	errs := make([]error, len(d.Entries))

	swg := sizedwaitgroup.New(runtime.NumCPU())
	for i := range d.Entries {
		swg.Add()
		go func(i int) {
			defer swg.Done()
			d.Sounds[i], errs[i] = decodeEntry(d.Entries[i], raw[i])
		}(i)
	}
	swg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		d.Sounds[i].Name = fmt.Sprintf("%s:%d", d.Name, i)
	}
	return nil
}

func decodeEntry(e WaveEntry, data []byte) (*audio.Sound, error) {
	f := e.Format
	opts := audio.SoundOptions{
		LoopStart:  int(e.LoopStart),
		LoopLength: int(e.LoopLength),
	}
	switch f.Codec {
	case CodecADPCM:
		opts.ADPCM = true
		opts.BlockAlign = f.ADPCMBlockBytes()
	case CodecPCM:
		opts.EightBit = !f.Bits16
	}
	s, err := audio.NewSound(data, f.SampleRate, f.Channels, opts)
	if err != nil {
		return nil, formatf("%v", err)
	}
	return s, nil
}

// WaveBank is a loaded wave bank registered in an engine by name.
type WaveBank struct {
	engine   *Engine
	name     string
	data     *WaveBankData
	disposed bool
}

// NewWaveBank loads the wave bank at path and registers it.
func NewWaveBank(e *Engine, path string) (*WaveBank, error) {
	f, err := e.open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wave bank: %w", err)
	}
	defer f.Close()

	d, err := ReadWaveBank(f, e.ContentVersion())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	wb, err := NewWaveBankFromData(e, d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Printf("Loaded wave bank %s: %d entries (%s)", d.Name, len(d.Sounds), humanize.IBytes(d.Size()))
	return wb, nil
}

// NewWaveBankFromData registers already decoded bank data.
func NewWaveBankFromData(e *Engine, d *WaveBankData) (*WaveBank, error) {
	wb := &WaveBank{engine: e, name: d.Name, data: d}
	if err := e.registerWaveBank(wb); err != nil {
		return nil, err
	}
	return wb, nil
}

func (wb *WaveBank) Name() string { return wb.name }

// Len returns the number of tracks.
func (wb *WaveBank) Len() int { return len(wb.data.Sounds) }

// Entry returns the metadata of a track.
func (wb *WaveBank) Entry(track int) WaveEntry { return wb.data.Entries[track] }

// Sound returns the decoded sound for a track.
func (wb *WaveBank) Sound(track int) (*audio.Sound, error) {
	if wb.disposed {
		return nil, ErrDisposed
	}
	if track < 0 || track >= len(wb.data.Sounds) {
		return nil, fmt.Errorf("%w: %d in %s", ErrTrackNotFound, track, wb.name)
	}
	return wb.data.Sounds[track], nil
}

// Dispose unregisters the bank and releases its decoded sounds. Voices
// already playing them keep their buffers until they stop.
func (wb *WaveBank) Dispose() {
	if wb.disposed {
		return
	}
	wb.disposed = true
	wb.engine.unregisterWaveBank(wb)
	for _, s := range wb.data.Sounds {
		s.Release()
		wb.engine.pool.Forget(s)
	}
}

func (wb *WaveBank) IsDisposed() bool { return wb.disposed }
