package xact

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// Complex cue entries are 15 bytes: flags, two offsets, limit, fades and
// instance flags with the behavior above a 3-bit fade type.
func TestReadSoundBankComplexEntries(t *testing.T) {
	data := soundBankFixture{
		name:      "Effects",
		waveBanks: []string{"Sounds"},
		complex: []testCue{
			{name: "A", sound: simpleSound(1), limit: 3, behavior: BehaviorReplaceLowestPriority, fadeType: 2},
			{name: "B", sound: simpleSound(2), limit: 5, behavior: BehaviorQueue},
			{name: "C", kind: variationWaveByte, variations: []testVariation{{track: 0, max: 255}}, limit: 1, behavior: BehaviorReplaceQuietest, fadeType: 1},
		},
	}.build()

	off := int(binary.LittleEndian.Uint32(data[38:]))
	for i, want := range []struct {
		flags, limit, instance byte
	}{
		{cueDirectSound, 3, 4<<3 | 2},
		{cueDirectSound, 5, 1 << 3},
		{0, 1, 3<<3 | 1},
	} {
		e := data[off+15*i:]
		if e[0] != want.flags || e[9] != want.limit || e[14] != want.instance {
			t.Errorf("entry %d bytes = % x", i, e[:15])
		}
	}

	d, err := ReadSoundBank(bytes.NewReader(data), ContentVersion)
	if err != nil {
		t.Fatalf("ReadSoundBank: %v", err)
	}
	tests := []struct {
		name     string
		limit    uint8
		behavior MaxInstanceBehavior
		fadeType uint8
	}{
		{"A", 3, BehaviorReplaceLowestPriority, 2},
		{"B", 5, BehaviorQueue, 0},
		{"C", 1, BehaviorReplaceQuietest, 1},
	}
	for _, tt := range tests {
		c := d.Cues[tt.name]
		if c.InstanceLimit != tt.limit || c.MaxBehavior != tt.behavior || c.FadeType != tt.fadeType {
			t.Errorf("%s: limit %d behavior %v fade %d", tt.name, c.InstanceLimit, c.MaxBehavior, c.FadeType)
		}
	}
	if ev := d.Cues["B"].Sounds[0].Clips[0].Events[0].(*PlayWaveEvent); ev.Tracks[0] != 2 {
		t.Errorf("B plays track %d", ev.Tracks[0])
	}
}

func TestReadSoundBank(t *testing.T) {
	complexSound := &testSound{
		category: 1,
		volume:   0x90,
		pitch:    -250,
		priority: 7,
		rpcCodes: []uint32{120, 140},
		clips: []testClip{
			{volume: 0xB4, events: []testEvent{
				{typ: eventPlayWave, time: 30, track: 4, bank: 1, loops: LoopInfinite},
				{typ: eventPlayWaveTrackVar, loops: 2, tracks: []testTrack{{track: 1, min: 0, max: 30}, {track: 2, bank: 1, min: 30, max: 100}}},
			}},
			{volume: 0x60, events: []testEvent{
				{typ: eventPlayWaveEffectVar, track: 9, pitch: [2]int16{-500, 500}, volume: [2]uint8{0x80, 0xB4}, varFlags: variationPitch | variationVolume},
				{typ: eventPlayWaveTrackEffVar, pitch: [2]int16{100, 200}, varFlags: variationPitch, tracks: []testTrack{{track: 5, max: 10}}},
				{typ: eventPlayWaveUndocumented, time: 12},
			}},
		},
	}
	data := soundBankFixture{
		name:      "Effects",
		waveBanks: []string{"Sounds", "Voices"},
		simple:    []testCue{{name: "Fire", sound: simpleSound(3)}},
		complex: []testCue{
			{name: "Engine", sound: complexSound, limit: 2, behavior: BehaviorReplaceOldest},
			{name: "Step", kind: variationWaveByte, variations: []testVariation{
				{track: 0, max: 200},
				{track: 1, bank: 1, min: 200, max: 255},
			}},
			{name: "Shout", kind: variationSoundFloat, variations: []testVariation{
				{sound: simpleSound(6), fmin: 0, fmax: 0.25},
				{sound: simpleSound(7), fmin: 0.25, fmax: 1},
			}},
			{name: "Door", kind: variationSoundByte, variations: []testVariation{
				{sound: simpleSound(8), max: 10},
			}},
			{name: "Click", kind: variationWaveCompact, variations: []testVariation{
				{track: 10}, {track: 11}, {track: 12},
			}},
		},
	}.build()

	d, err := ReadSoundBank(bytes.NewReader(data), ContentVersion)
	if err != nil {
		t.Fatalf("ReadSoundBank: %v", err)
	}
	if d.Name != "Effects" || len(d.WaveBankNames) != 2 || d.WaveBankNames[1] != "Voices" {
		t.Errorf("bank %q, wave banks %v", d.Name, d.WaveBankNames)
	}
	wantNames := []string{"Fire", "Engine", "Step", "Shout", "Door", "Click"}
	if len(d.CueNames) != len(wantNames) {
		t.Fatalf("cue names = %v", d.CueNames)
	}
	for i, n := range wantNames {
		if d.CueNames[i] != n {
			t.Errorf("cue name %d = %q, want %q", i, d.CueNames[i], n)
		}
	}
	if d.SimpleCues != 1 || d.ComplexCues != 5 {
		t.Errorf("simple %d complex %d", d.SimpleCues, d.ComplexCues)
	}

	fire := d.Cues["Fire"]
	if len(fire.Sounds) != 1 || fire.InstanceLimit != unlimitedInstance {
		t.Fatalf("Fire = %+v", fire)
	}
	ev := fire.Sounds[0].Clips[0].Events[0].(*PlayWaveEvent)
	if ev.Tracks[0] != 3 || ev.WaveBanks[0] != 0 {
		t.Errorf("Fire plays track %d of bank %d", ev.Tracks[0], ev.WaveBanks[0])
	}

	engine := d.Cues["Engine"]
	if engine.InstanceLimit != 2 || engine.MaxBehavior != BehaviorReplaceOldest || engine.Category != 1 {
		t.Errorf("Engine limits = %+v", engine)
	}
	s := engine.Sounds[0]
	if s.Pitch != -0.25 || s.Priority != 7 || s.Volume != DecodeVolumeByte(0x90) {
		t.Errorf("Engine sound = %+v", s)
	}
	if len(s.RPCCodes) != 2 || s.RPCCodes[1] != 140 {
		t.Errorf("rpc codes = %v", s.RPCCodes)
	}
	if len(s.Clips) != 2 || len(s.Clips[0].Events) != 2 || len(s.Clips[1].Events) != 3 {
		t.Fatalf("clips = %+v", s.Clips)
	}
	if s.Clips[1].Volume != DecodeVolumeByte(0x60) {
		t.Errorf("clip volume = %v", s.Clips[1].Volume)
	}

	loop := s.Clips[0].Events[0].(*PlayWaveEvent)
	if loop.Timestamp() != 30 || loop.Loops() != -1 || loop.Tracks[0] != 4 || loop.WaveBanks[0] != 1 {
		t.Errorf("looping event = %+v", loop)
	}
	tv := s.Clips[0].Events[1].(*PlayWaveEvent)
	if len(tv.Tracks) != 2 || tv.Weights[0] != 30 || tv.Weights[1] != 70 || tv.WaveBanks[1] != 1 || tv.Loops() != 2 {
		t.Errorf("track variation event = %+v", tv)
	}
	fx := s.Clips[1].Events[0].(*PlayWaveEvent)
	if fx.MinPitch != -0.5 || fx.MaxPitch != 0.5 || !fx.HasVolumeVariation ||
		fx.MinVolume != DecodeVolumeByte(0x80) || fx.MaxVolume != DecodeVolumeByte(0xB4) {
		t.Errorf("effect variation event = %+v", fx)
	}
	both := s.Clips[1].Events[1].(*PlayWaveEvent)
	if math.Abs(both.MinPitch-0.1) > 1e-9 || both.HasVolumeVariation || both.Tracks[0] != 5 {
		t.Errorf("track and effect variation event = %+v", both)
	}
	hack := s.Clips[1].Events[2].(*PlayWaveEvent)
	if hack.Timestamp() != 12 || hack.Tracks[0] != 0 || hack.WaveBanks[0] != 0 || hack.Loops() != 0 {
		t.Errorf("fallback event = %+v", hack)
	}

	step := d.Cues["Step"]
	if len(step.Sounds) != 2 || step.Weights[0] != 200 || step.Weights[1] != 55 {
		t.Errorf("Step weights = %v", step.Weights)
	}
	shout := d.Cues["Shout"]
	if len(shout.Weights) != 2 || shout.Weights[0] != 0.25 || shout.Weights[1] != 0.75 {
		t.Errorf("Shout weights = %v", shout.Weights)
	}
	if got := shout.Sounds[1].Clips[0].Events[0].(*PlayWaveEvent).Tracks[0]; got != 7 {
		t.Errorf("Shout second sound plays track %d", got)
	}
	if door := d.Cues["Door"]; len(door.Weights) != 1 || door.Weights[0] != 10 {
		t.Errorf("Door weights = %v", door.Weights)
	}
	click := d.Cues["Click"]
	if len(click.Weights) != 3 || click.Weights[2] != 1 {
		t.Errorf("Click weights = %v", click.Weights)
	}
}

func TestReadSoundBankErrors(t *testing.T) {
	bad := func(mutate func(*soundBankFixture)) []byte {
		f := soundBankFixture{name: "Bank", waveBanks: []string{"Sounds"}, simple: []testCue{{name: "A", sound: simpleSound(0)}}}
		mutate(&f)
		return f.build()
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"version mismatch", bad(func(f *soundBankFixture) { f.content = ContentVersion - 1 }), ErrFormat},
		{"unknown variation type", bad(func(f *soundBankFixture) {
			f.complex = []testCue{{name: "B", kind: 2, variations: []testVariation{{track: 1}}}}
		}), ErrFormat},
		{"unknown event type", bad(func(f *soundBankFixture) {
			f.complex = []testCue{{name: "B", sound: &testSound{clips: []testClip{{events: []testEvent{{typ: 2}}}}}}}
		}), ErrNotImplemented},
		{"dsp preset list", bad(func(f *soundBankFixture) {
			f.simple[0].sound.dsp = true
		}), ErrNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSoundBank(bytes.NewReader(tt.data), ContentVersion)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	data := bad(func(*soundBankFixture) {})
	if _, err := ReadSoundBank(bytes.NewReader(data[:100]), ContentVersion); !errors.Is(err, ErrFormat) {
		t.Errorf("truncated: err = %v, want ErrFormat", err)
	}
}
