package engine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"xact-engine/internal/audio"
	"xact-engine/internal/filesystem"
	"xact-engine/internal/script"
	"xact-engine/internal/settings"
	"xact-engine/internal/stream"
	"xact-engine/internal/xact"
)

// Player hosts the audio runtime: it loads content named by the config
// and ticks the engine until the context ends or the script is done.
type Player struct {
	config     *settings.Config
	filesystem *filesystem.Manager
	device     *audio.Device
	pool       *audio.Pool
	audio      *xact.Engine
	waveBanks  []*xact.WaveBank
	soundBanks map[string]*xact.SoundBank
	music      *stream.Manager
	track      *stream.Stream
	script     *script.Engine

	// Cues started by the script, keyed by bank/cue, plus variable values
	// applied to every cue started under that key afterwards.
	cues    map[string][]*xact.Cue
	cueVars map[string]map[string]float64

	debugLog    *rate.Limiter
	initialized bool
}

// NewPlayer creates a new player instance
func NewPlayer(cfg *settings.Config) *Player {
	return &Player{
		config:     cfg,
		soundBanks: make(map[string]*xact.SoundBank),
		cues:       make(map[string][]*xact.Cue),
		cueVars:    make(map[string]map[string]float64),
		debugLog:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Init initializes all subsystems and loads content
func (p *Player) Init() error {
	cfg := p.config
	var err error

	p.filesystem = filesystem.NewManager(cfg.ContentRoot)
	if err = p.filesystem.Init(); err != nil {
		return fmt.Errorf("failed to initialize filesystem: %w", err)
	}
	for _, a := range cfg.Archives {
		if err = p.filesystem.MountArchive(a); err != nil {
			return err
		}
	}

	p.device, err = audio.NewDevice(cfg.DeviceConfig())
	if err != nil {
		return fmt.Errorf("failed to create audio device: %w", err)
	}
	if err = p.device.Init(); err != nil {
		return fmt.Errorf("failed to initialize audio device: %w", err)
	}
	p.device.SetMasterVolume(cfg.MasterVolume)
	p.pool = audio.NewPool(p.device, cfg.PoolConfig())

	opts := xact.Options{Pool: p.pool, Files: p.filesystem}
	if cfg.Seed != 0 {
		opts.Rand = rand.New(rand.NewSource(cfg.Seed))
	}
	p.audio, err = xact.NewEngine(cfg.EngineSettings, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize audio engine: %w", err)
	}
	for _, name := range cfg.WaveBanks {
		wb, err := xact.NewWaveBank(p.audio, name)
		if err != nil {
			return err
		}
		p.waveBanks = append(p.waveBanks, wb)
	}
	for _, name := range cfg.SoundBanks {
		sb, err := xact.NewSoundBank(p.audio, name)
		if err != nil {
			return err
		}
		p.soundBanks[sb.Name()] = sb
		log.Printf("Sound bank %s: %d cues", sb.Name(), len(sb.CueNames()))
	}

	p.music = stream.NewManager(p.device, cfg.StreamConfig())

	if cfg.Script != "" {
		src, err := p.filesystem.ReadFile(cfg.Script)
		if err != nil {
			return fmt.Errorf("failed to read script: %w", err)
		}
		p.script = script.NewEngine(p)
		if err = p.script.LoadLuaString(string(src)); err != nil {
			return err
		}
	}

	p.initialized = true
	log.Println("Player initialized successfully")
	return nil
}

// Update advances the script and the engine by one tick.
func (p *Player) Update(now time.Time) error {
	if !p.initialized {
		return nil
	}
	if p.script != nil {
		if err := p.script.Update(now); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	p.pruneCues()
	if err := p.audio.Update(); err != nil {
		return err
	}
	if p.config.DebugMode && p.debugLog.AllowN(now, 1) {
		stats := p.pool.Stats()
		log.Printf("Debug: %d cue keys, voices %d busy/%d free, %d buffers, %d streams",
			len(p.cues), stats.Busy, stats.Free, stats.Buffers, p.music.Active())
	}
	return nil
}

// Finished reports whether the script has fired everything and all
// sound it started has ended.
func (p *Player) Finished() bool {
	if p.script == nil || !p.script.Finished() {
		return false
	}
	if p.track != nil && p.track.IsPlaying() {
		return false
	}
	return len(p.cues) == 0
}

// Run initializes the player and ticks it until ctx is cancelled or the
// script finishes.
func (p *Player) Run(ctx context.Context) error {
	defer p.Close()
	if err := p.Init(); err != nil {
		return err
	}

	p.music.Start(ctx)
	if p.config.MusicStream != "" {
		if err := p.PlayMusic(p.config.MusicStream); err != nil {
			return err
		}
	}
	interval := p.config.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	if p.script != nil {
		p.script.Start(time.Now())
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if p.config.Headless {
				p.device.Mix(int(interval * time.Duration(p.device.SampleRate()) / time.Second))
			}
			if err := p.Update(now); err != nil {
				return err
			}
			if p.Finished() {
				log.Println("Script finished")
				return nil
			}
		}
	}
}

// Close tears everything down in reverse order of Init.
func (p *Player) Close() {
	if p.music != nil {
		p.music.Close()
	}
	if p.audio != nil {
		p.audio.Dispose()
	}
	if p.pool != nil {
		p.pool.Close()
	}
	if p.device != nil {
		p.device.Close()
	}
	if p.filesystem != nil {
		p.filesystem.Close()
	}
	p.initialized = false
}

func (p *Player) soundBank(name string) (*xact.SoundBank, error) {
	sb, ok := p.soundBanks[name]
	if !ok {
		return nil, fmt.Errorf("sound bank %q is not loaded", name)
	}
	return sb, nil
}

func cueKey(bank, cue string) string { return bank + "/" + cue }

func (p *Player) pruneCues() {
	for key, cues := range p.cues {
		cues = slices.DeleteFunc(cues, func(c *xact.Cue) bool {
			if c.IsStopped() && !c.IsQueued() {
				c.Dispose()
				return true
			}
			return c.IsDisposed()
		})
		if len(cues) == 0 {
			delete(p.cues, key)
		} else {
			p.cues[key] = cues
		}
	}
}

// PlayCue starts a new instance of the cue.
func (p *Player) PlayCue(bank, cue string) error {
	sb, err := p.soundBank(bank)
	if err != nil {
		return err
	}
	c, err := sb.GetCue(cue)
	if err != nil {
		return err
	}
	key := cueKey(bank, cue)
	for name, v := range p.cueVars[key] {
		if err := c.SetVariable(name, v); err != nil {
			c.Dispose()
			return err
		}
	}
	if err := c.Play(); err != nil {
		c.Dispose()
		return err
	}
	p.cues[key] = append(p.cues[key], c)
	return nil
}

// StopCue stops every instance of the cue the script started.
func (p *Player) StopCue(bank, cue string) error {
	if _, err := p.soundBank(bank); err != nil {
		return err
	}
	for _, c := range p.cues[cueKey(bank, cue)] {
		c.Stop()
	}
	return nil
}

func (p *Player) SetGlobal(name string, value float64) error {
	return p.audio.SetGlobalVariable(name, value)
}

// SetCueVariable sets an instance variable on live instances of the cue
// and on every instance started later.
func (p *Player) SetCueVariable(bank, cue, name string, value float64) error {
	if _, err := p.soundBank(bank); err != nil {
		return err
	}
	key := cueKey(bank, cue)
	for _, c := range p.cues[key] {
		if err := c.SetVariable(name, value); err != nil {
			return err
		}
	}
	if p.cueVars[key] == nil {
		p.cueVars[key] = make(map[string]float64)
	}
	p.cueVars[key][name] = value
	return nil
}

// PlayMusic replaces the current music stream.
func (p *Player) PlayMusic(name string) error {
	if p.track != nil {
		p.track.Close()
		p.track = nil
	}
	rc, err := p.filesystem.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open music: %w", err)
	}
	s, err := p.music.Open(name, rc)
	if err != nil {
		return err
	}
	s.SetLooping(p.config.MusicLoop)
	s.SetVolume(p.config.MusicVolume)
	if err := s.Play(); err != nil {
		s.Close()
		return err
	}
	p.track = s
	return nil
}

func (p *Player) StopMusic() error {
	if p.track != nil {
		p.track.Stop()
	}
	return nil
}
