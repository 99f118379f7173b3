package settings

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type memFS map[string]string

func (m memFS) Open(name string) (io.ReadCloser, error) {
	s, ok := m[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader([]byte(s))), nil
}

func TestManagerWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.json")
	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("defaults not saved: %v", err)
	}
	var got Config
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("saved config: %v", err)
	}
	if got.SampleRate != DefaultConfig().SampleRate || got.EngineSettings != "audio.xgs" {
		t.Errorf("saved = %+v", got)
	}
}

func TestManagerLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"sample_rate": 48000, "wave_banks": ["Sounds.xwb"], "seed": 7}`), 0644)

	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := m.GetConfig()
	if c.SampleRate != 48000 || c.Seed != 7 || len(c.WaveBanks) != 1 {
		t.Errorf("config = %+v", c)
	}
	// Unset fields keep their defaults.
	if c.MaxVoices != DefaultConfig().MaxVoices || c.UpdateRate != 60 {
		t.Errorf("defaults lost: %+v", c)
	}
}

func TestManagerLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name, body string
	}{
		{"malformed", `{"sample_rate": `},
		{"bad rate", `{"sample_rate": 12}`},
		{"no voices", `{"max_voices": -1}`},
		{"loud music", `{"music_volume": 3}`},
		{"loud master", `{"master_volume": 1.5}`},
		{"no settings", `{"engine_settings": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			os.WriteFile(path, []byte(tt.body), 0644)
			if err := NewManager(path).Load(); err == nil {
				t.Error("Load accepted a bad config")
			}
		})
	}
}

func TestDerivedConfigs(t *testing.T) {
	c := DefaultConfig()
	c.Headless = true
	c.BufferIdleMS = 1500
	c.UpdateRate = 100

	if d := c.DeviceConfig(); !d.Headless || d.SampleRate != c.SampleRate || d.MaxVoices != c.MaxVoices {
		t.Errorf("DeviceConfig = %+v", d)
	}
	if p := c.PoolConfig(); p.IdleTimeout != 1500*time.Millisecond || p.Batch != 8 {
		t.Errorf("PoolConfig = %+v", p)
	}
	if s := c.StreamConfig(); s.BufferFrames != 4096 {
		t.Errorf("StreamConfig = %+v", s)
	}
	if got := c.TickInterval(); got != 10*time.Millisecond {
		t.Errorf("TickInterval = %v", got)
	}
	c.UpdateRate = 0
	if got := c.TickInterval(); got != time.Second/60 {
		t.Errorf("TickInterval default = %v", got)
	}
}

func TestINIOverrides(t *testing.T) {
	fs := memFS{"overrides.ini": `
; local tweaks
[Audio]
sample_rate = 22050
headless = true
master_volume = 0.5
debug = yes

[content]
root = "/srv/game"
wave_banks = Sounds.xwb, Voices.xwb
seed = 42

[music]
volume = 0.25
loop = false
`}
	m := NewINIManager(fs)
	if err := m.Load("overrides.ini"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.LoadBytes([]byte("[music]\nstream = theme.ogg\n")); err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	c := DefaultConfig()
	m.Apply(c)
	if c.SampleRate != 22050 || !c.Headless || c.MaxVoices != DefaultConfig().MaxVoices ||
		c.MasterVolume != 0.5 || !c.DebugMode {
		t.Errorf("audio = %+v", c)
	}
	if c.ContentRoot != "/srv/game" || c.Seed != 42 {
		t.Errorf("content root %q seed %d", c.ContentRoot, c.Seed)
	}
	if len(c.WaveBanks) != 2 || c.WaveBanks[1] != "Voices.xwb" {
		t.Errorf("wave banks = %q", c.WaveBanks)
	}
	if c.MusicVolume != 0.25 || c.MusicLoop || c.MusicStream != "theme.ogg" {
		t.Errorf("music = %v %v %q", c.MusicVolume, c.MusicLoop, c.MusicStream)
	}

	if got := m.GetInt("audio", "sample_rate"); got != 22050 {
		t.Errorf("GetInt = %d", got)
	}
	if got := m.GetInt("audio", "missing"); got != -1 {
		t.Errorf("GetInt missing = %d", got)
	}
	if got := m.GetString("content", "root"); got != "/srv/game" {
		t.Errorf("GetString = %q", got)
	}

	if err := m.Load("nope.ini"); err == nil {
		t.Error("missing file accepted")
	}
}
