package settings

import (
	"fmt"
	"io"
	"log"
	"strings"

	"gopkg.in/ini.v1"
)

// Opener opens content files by name.
type Opener interface {
	Open(name string) (io.ReadCloser, error)
}

// INIManager reads an overrides file layered on top of the JSON config.
//
//	[audio]   sample_rate, max_voices, voice_batch, pool_baseline,
//	          buffer_idle_ms, update_rate, headless, master_volume, debug
//	[content] root, archives, engine_settings, wave_banks, sound_banks,
//	          script, seed
//	[music]   stream, volume, loop, buffer_frames
type INIManager struct {
	file *ini.File
	fs   Opener
}

var iniOptions = ini.LoadOptions{
	Insensitive:             true,
	SkipUnrecognizableLines: true,
	IgnoreInlineComment:     false,
}

// NewINIManager creates a new INI overrides manager
func NewINIManager(fs Opener) *INIManager {
	return &INIManager{file: ini.Empty(iniOptions), fs: fs}
}

// Load reads filename through the filesystem and merges it over any
// file loaded before.
func (m *INIManager) Load(filename string) error {
	log.Printf("Loading INI file: %s", filename)

	reader, err := m.fs.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open INI file %s: %w", filename, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read INI file %s: %w", filename, err)
	}
	return m.LoadBytes(data)
}

// LoadBytes merges INI data held in memory.
func (m *INIManager) LoadBytes(data []byte) error {
	if err := m.file.Append(data); err != nil {
		return fmt.Errorf("failed to parse INI data: %w", err)
	}
	return nil
}

func (m *INIManager) key(section, name string) *ini.Key {
	sec, err := m.file.GetSection(section)
	if err != nil || !sec.HasKey(name) {
		return nil
	}
	return sec.Key(name)
}

// GetString returns a string value, or "" when missing.
func (m *INIManager) GetString(section, name string) string {
	if k := m.key(section, name); k != nil {
		return strings.Trim(k.String(), `"`)
	}
	return ""
}

// GetInt returns an integer value, or -1 when missing or malformed.
func (m *INIManager) GetInt(section, name string) int {
	if k := m.key(section, name); k != nil {
		return k.MustInt(-1)
	}
	return -1
}

// Apply copies every override present in the loaded files into cfg.
func (m *INIManager) Apply(cfg *Config) {
	ints := []struct {
		section, name string
		dst           *int
	}{
		{"audio", "sample_rate", &cfg.SampleRate},
		{"audio", "max_voices", &cfg.MaxVoices},
		{"audio", "voice_batch", &cfg.VoiceBatch},
		{"audio", "pool_baseline", &cfg.PoolBaseline},
		{"audio", "buffer_idle_ms", &cfg.BufferIdleMS},
		{"audio", "update_rate", &cfg.UpdateRate},
		{"music", "buffer_frames", &cfg.StreamBufferLen},
	}
	for _, o := range ints {
		if k := m.key(o.section, o.name); k != nil {
			*o.dst = k.MustInt(*o.dst)
		}
	}

	strs := []struct {
		section, name string
		dst           *string
	}{
		{"content", "root", &cfg.ContentRoot},
		{"content", "engine_settings", &cfg.EngineSettings},
		{"content", "script", &cfg.Script},
		{"music", "stream", &cfg.MusicStream},
	}
	for _, o := range strs {
		if k := m.key(o.section, o.name); k != nil {
			*o.dst = strings.Trim(k.String(), `"`)
		}
	}

	lists := []struct {
		section, name string
		dst           *[]string
	}{
		{"content", "archives", &cfg.Archives},
		{"content", "wave_banks", &cfg.WaveBanks},
		{"content", "sound_banks", &cfg.SoundBanks},
	}
	for _, o := range lists {
		if k := m.key(o.section, o.name); k != nil {
			*o.dst = k.Strings(",")
		}
	}

	if k := m.key("audio", "headless"); k != nil {
		cfg.Headless = k.MustBool(cfg.Headless)
	}
	if k := m.key("music", "loop"); k != nil {
		cfg.MusicLoop = k.MustBool(cfg.MusicLoop)
	}
	if k := m.key("audio", "debug"); k != nil {
		cfg.DebugMode = k.MustBool(cfg.DebugMode)
	}
	if k := m.key("audio", "master_volume"); k != nil {
		cfg.MasterVolume = k.MustFloat64(cfg.MasterVolume)
	}
	if k := m.key("music", "volume"); k != nil {
		cfg.MusicVolume = k.MustFloat64(cfg.MusicVolume)
	}
	if k := m.key("content", "seed"); k != nil {
		cfg.Seed = k.MustInt64(cfg.Seed)
	}
}
