package settings

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"xact-engine/internal/audio"
	"xact-engine/internal/stream"
)

// Config holds all runtime configuration
type Config struct {
	SampleRate      int      `json:"sample_rate"`
	MaxVoices       int      `json:"max_voices"`
	VoiceBatch      int      `json:"voice_batch"`
	PoolBaseline    int      `json:"pool_baseline"`
	BufferIdleMS    int      `json:"buffer_idle_ms"`
	UpdateRate      int      `json:"update_rate"`
	MasterVolume    float64  `json:"master_volume"`
	Headless        bool     `json:"headless"`
	ContentRoot     string   `json:"content_root"`
	Archives        []string `json:"archives"`
	EngineSettings  string   `json:"engine_settings"`
	WaveBanks       []string `json:"wave_banks"`
	SoundBanks      []string `json:"sound_banks"`
	MusicStream     string   `json:"music_stream"`
	MusicVolume     float64  `json:"music_volume"`
	MusicLoop       bool     `json:"music_loop"`
	StreamBufferLen int      `json:"stream_buffer_frames"`
	Script          string   `json:"script"`
	Seed            int64    `json:"seed"`
	DebugMode       bool     `json:"debug_mode"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		SampleRate:      audio.DefaultSampleRate,
		MaxVoices:       audio.DefaultMaxVoices,
		VoiceBatch:      8,
		PoolBaseline:    16,
		BufferIdleMS:    10000,
		UpdateRate:      60,
		MasterVolume:    1.0,
		Headless:        false,
		ContentRoot:     "./content",
		EngineSettings:  "audio.xgs",
		MusicVolume:     0.8,
		MusicLoop:       true,
		StreamBufferLen: 4096,
		DebugMode:       false,
	}
}

// DeviceConfig returns the output device settings.
func (c *Config) DeviceConfig() audio.Config {
	cfg := audio.DefaultConfig()
	cfg.SampleRate = c.SampleRate
	cfg.MaxVoices = c.MaxVoices
	cfg.Headless = c.Headless
	return cfg
}

// PoolConfig returns the voice and buffer pool settings.
func (c *Config) PoolConfig() audio.PoolConfig {
	return audio.PoolConfig{
		Batch:       c.VoiceBatch,
		Baseline:    c.PoolBaseline,
		IdleTimeout: time.Duration(c.BufferIdleMS) * time.Millisecond,
	}
}

// StreamConfig returns the music streaming settings.
func (c *Config) StreamConfig() stream.Config {
	cfg := stream.DefaultConfig()
	if c.StreamBufferLen > 0 {
		cfg.BufferFrames = c.StreamBufferLen
	}
	return cfg
}

// TickInterval is the time between engine updates.
func (c *Config) TickInterval() time.Duration {
	if c.UpdateRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.UpdateRate)
}

// Validate reports settings the runtime cannot work with.
func (c *Config) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("sample rate %d out of range", c.SampleRate)
	}
	if c.MaxVoices <= 0 {
		return fmt.Errorf("max voices must be positive, got %d", c.MaxVoices)
	}
	if c.MasterVolume < 0 || c.MasterVolume > 1 {
		return fmt.Errorf("master volume %v out of range", c.MasterVolume)
	}
	if c.MusicVolume < 0 || c.MusicVolume > 2 {
		return fmt.Errorf("music volume %v out of range", c.MusicVolume)
	}
	if c.EngineSettings == "" {
		return fmt.Errorf("no engine settings file configured")
	}
	return nil
}

// Manager handles configuration loading and saving
type Manager struct {
	config     *Config
	configPath string
}

// NewManager creates a new configuration manager
func NewManager(configPath string) *Manager {
	return &Manager{
		config:     DefaultConfig(),
		configPath: configPath,
	}
}

// Load loads configuration from file, writing the defaults out when the
// file does not exist yet.
func (m *Manager) Load() error {
	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		log.Printf("Config file %s not found, using defaults", m.configPath)
		return m.Save()
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, m.config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("invalid config file %s: %w", m.configPath, err)
	}

	log.Printf("Loaded configuration from %s", m.configPath)
	return nil
}

// Save saves configuration to file
func (m *Manager) Save() error {
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Printf("Saved configuration to %s", m.configPath)
	return nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}
