package main

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/tidwall/sjson"

	"xact-engine/internal/xact"
)

// File kinds keyed by the little-endian magic at offset 0.
var kinds = map[uint32]string{
	0x46534758: "settings",
	0x444E4257: "wavebank",
	0x4B424453: "soundbank",
}

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

var kindLabels = map[string]string{
	"settings":  "engine settings",
	"wavebank":  "wave bank",
	"soundbank": "sound bank",
}

// identify returns the kind of content file data holds.
func identify(data []byte) (string, error) {
	if len(data) < 4 {
		return "", fmt.Errorf("file too short (%d bytes)", len(data))
	}
	magic := binary.LittleEndian.Uint32(data)
	kind, ok := kinds[magic]
	if !ok {
		return "", fmt.Errorf("unrecognized magic %08X", magic)
	}
	return kind, nil
}

// report accumulates a JSON document; the first failed write sticks.
type report struct {
	data []byte
	err  error
}

func newReport() *report { return &report{data: []byte("{}")} }

func (r *report) set(path string, v any) {
	if r.err != nil {
		return
	}
	r.data, r.err = sjson.SetBytes(r.data, path, v)
}

func (r *report) setf(format string, i int, field string, v any) {
	r.set(fmt.Sprintf(format, i)+"."+field, v)
}

// inspect parses a content file and returns a JSON report of it. hexBytes
// leading bytes are included as a hex string when non-zero.
func inspect(name string, data []byte, hexBytes int) ([]byte, error) {
	r := newReport()
	r.set("file", name)
	r.set("size", len(data))
	r.set("size_human", humanize.IBytes(uint64(len(data))))
	if hexBytes > 0 {
		r.set("header_hex", hex.EncodeToString(data[:min(hexBytes, len(data))]))
	}

	kind, err := identify(data)
	if err != nil {
		return nil, err
	}
	r.set("kind", kind)

	switch kind {
	case "settings":
		err = describeSettings(r, data)
	case "wavebank":
		err = describeWaveBank(r, data)
	case "soundbank":
		err = describeSoundBank(r, data)
	}
	if err != nil {
		return nil, err
	}
	return r.data, r.err
}

func describeSettings(r *report, data []byte) error {
	s, err := xact.ReadSettings(bytes.NewReader(data))
	if err != nil {
		return err
	}
	r.set("content_version", s.ContentVersion)

	r.set("categories", []any{})
	for i, c := range s.Categories {
		r.setf("categories.%d", i, "name", c.Name)
		r.setf("categories.%d", i, "volume", c.Volume)
		r.setf("categories.%d", i, "parent", c.Parent)
		r.setf("categories.%d", i, "max_instances", c.MaxInstances)
		r.setf("categories.%d", i, "behavior", c.MaxBehavior.String())
		r.setf("categories.%d", i, "background_music", c.BackgroundMusic)
	}

	r.set("variables", []any{})
	for i, v := range s.Variables {
		r.setf("variables.%d", i, "name", v.Name)
		r.setf("variables.%d", i, "global", v.IsGlobal)
		r.setf("variables.%d", i, "public", v.IsPublic)
		r.setf("variables.%d", i, "read_only", v.IsReadOnly)
		r.setf("variables.%d", i, "initial", v.Value())
		r.setf("variables.%d", i, "min", v.Min())
		r.setf("variables.%d", i, "max", v.Max())
	}

	r.set("rpcs", []any{})
	for i, code := range s.RPCOrder {
		rpc := s.RPCs[code]
		r.setf("rpcs.%d", i, "code", rpc.Code)
		r.setf("rpcs.%d", i, "variable", rpc.Variable)
		r.setf("rpcs.%d", i, "parameter", rpc.Parameter.String())
		r.setf("rpcs.%d", i, "points", len(rpc.Points))
	}
	r.set("dsp_presets", len(s.DSPPresets))
	return nil
}

func describeWaveBank(r *report, data []byte) error {
	d, err := xact.ReadWaveBank(bytes.NewReader(data), xact.ContentVersion)
	if err != nil {
		return err
	}
	r.set("name", d.Name)
	r.set("flags", d.Flags)
	r.set("alignment", d.Alignment)
	r.set("decoded_size", d.Size())
	r.set("decoded_size_human", humanize.IBytes(d.Size()))

	var total time.Duration
	for _, s := range d.Sounds {
		total += s.Duration()
	}
	r.set("duration_ms", total.Milliseconds())
	r.set("duration_human", durafmt.Parse(total).LimitFirstN(2).Format(shortUnits))

	r.set("entries", []any{})
	for i, e := range d.Entries {
		bits := 8
		if e.Format.Bits16 {
			bits = 16
		}
		r.setf("entries.%d", i, "codec", e.Format.Codec.String())
		r.setf("entries.%d", i, "channels", e.Format.Channels)
		r.setf("entries.%d", i, "sample_rate", e.Format.SampleRate)
		r.setf("entries.%d", i, "bits", bits)
		r.setf("entries.%d", i, "frames", d.Sounds[i].Frames())
		r.setf("entries.%d", i, "duration_ms", d.Sounds[i].Duration().Milliseconds())
		r.setf("entries.%d", i, "loop_start", e.LoopStart)
		r.setf("entries.%d", i, "loop_length", e.LoopLength)
	}
	return nil
}

func describeSoundBank(r *report, data []byte) error {
	d, err := xact.ReadSoundBank(bytes.NewReader(data), xact.ContentVersion)
	if err != nil {
		return err
	}
	r.set("name", d.Name)
	r.set("wave_banks", d.WaveBankNames)
	r.set("simple_cues", d.SimpleCues)
	r.set("complex_cues", d.ComplexCues)

	r.set("cues", []any{})
	for i, name := range d.CueNames {
		r.setf("cues.%d", i, "name", name)
		c, ok := d.Cues[name]
		if !ok {
			continue
		}
		r.setf("cues.%d", i, "sounds", len(c.Sounds))
		r.setf("cues.%d", i, "category", c.Category)
		r.setf("cues.%d", i, "instance_limit", c.InstanceLimit)
		r.setf("cues.%d", i, "behavior", c.MaxBehavior.String())
	}
	return nil
}
