package xacttest_test

import (
	"bytes"
	"testing"

	"xact-engine/internal/xact"
	"xact-engine/internal/xact/xacttest"
)

func TestBuildersParse(t *testing.T) {
	s, err := xact.ReadSettings(bytes.NewReader(xacttest.Settings{
		Categories: []string{"Default", "Music"},
		Globals:    []xacttest.Global{{Name: "Wind", Initial: 0.5, Max: 1}},
	}.Build()))
	if err != nil {
		t.Fatalf("ReadSettings: %v", err)
	}
	if len(s.Categories) != 2 || s.Categories[1].Name != "Music" {
		t.Errorf("categories = %+v", s.Categories)
	}

	wb, err := xact.ReadWaveBank(bytes.NewReader(xacttest.WaveBank{Name: "Sounds", Frames: []int{10, 20}}.Build()), xact.ContentVersion)
	if err != nil {
		t.Fatalf("ReadWaveBank: %v", err)
	}
	if wb.Name != "Sounds" || len(wb.Sounds) != 2 || wb.Sounds[1].Frames() != 20 {
		t.Errorf("wave bank %q with %d sounds", wb.Name, len(wb.Sounds))
	}

	sb, err := xact.ReadSoundBank(bytes.NewReader(xacttest.SoundBank{
		Name:      "Effects",
		WaveBanks: []string{"Sounds"},
		Cues:      []xacttest.Cue{{Name: "Fire", Track: 1}, {Name: "Ice"}},
	}.Build()), xact.ContentVersion)
	if err != nil {
		t.Fatalf("ReadSoundBank: %v", err)
	}
	if sb.Name != "Effects" || len(sb.CueNames) != 2 || sb.SimpleCues != 2 {
		t.Errorf("sound bank = %+v", sb)
	}
}
