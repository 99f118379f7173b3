// Package xact plays XACT engine settings, sound banks and wave banks.
//
// An Engine is loaded from a settings file, wave banks and sound banks
// register against it, and cues obtained from sound banks play through an
// audio.Pool. Everything here is single-threaded: the goroutine calling
// Engine.Update owns the whole graph.
package xact

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"time"

	"xact-engine/internal/audio"
)

// FileOpener opens bank and settings files by name.
type FileOpener interface {
	Open(name string) (io.ReadCloser, error)
}

type osOpener struct{}

func (osOpener) Open(name string) (io.ReadCloser, error) { return os.Open(name) }

// Options wires an Engine to its collaborators.
type Options struct {
	// Pool supplies voices; required.
	Pool *audio.Pool
	// Files opens settings and bank files; defaults to the OS filesystem.
	Files FileOpener
	// Rand drives variation choices; defaults to a time-seeded source.
	Rand Rand
	// Clock drives event delays; defaults to time.Now.
	Clock func() time.Time
}

// Engine owns categories, variables, RPC curves, DSP presets and the wave
// bank registry.
type Engine struct {
	categories []*Category
	globals    []*Variable
	instance   []*Variable
	rpcs       map[uint32]*RPC
	dspParams  []DSPParameter
	dspPresets map[uint32]*DSPPreset
	waveBanks  map[string]*WaveBank

	pool  *audio.Pool
	files FileOpener
	rng   Rand
	now   func() time.Time

	playSeq  uint64
	disposed bool
}

// NewEngine loads the settings file at path.
func NewEngine(path string, opts Options) (*Engine, error) {
	files := opts.Files
	if files == nil {
		files = osOpener{}
	}
	f, err := files.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine settings: %w", err)
	}
	defer f.Close()

	s, err := ReadSettings(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	opts.Files = files
	e, err := NewEngineFromSettings(s, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("Audio engine initialized from %s: %d categories, %d variables, %d RPC curves",
		path, len(e.categories), len(e.globals)+len(e.instance), len(e.rpcs))
	return e, nil
}

// NewEngineFromSettings builds an engine from already parsed settings.
func NewEngineFromSettings(s *Settings, opts Options) (*Engine, error) {
	if opts.Pool == nil {
		return nil, fmt.Errorf("engine needs a voice pool")
	}
	if opts.Files == nil {
		opts.Files = osOpener{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	e := &Engine{
		rpcs:       s.RPCs,
		dspParams:  s.DSPParameters,
		dspPresets: s.DSPPresets,
		waveBanks:  make(map[string]*WaveBank),
		pool:       opts.Pool,
		files:      opts.Files,
		rng:        opts.Rand,
		now:        opts.Clock,
	}
	for i, cs := range s.Categories {
		e.categories = append(e.categories, newCategory(e, i, cs))
	}
	for _, v := range s.Variables {
		if v.IsGlobal {
			e.globals = append(e.globals, v.Clone())
		} else {
			e.instance = append(e.instance, v.Clone())
		}
	}
	return e, nil
}

// ContentVersion returns the bank content version this engine accepts.
func (e *Engine) ContentVersion() uint16 { return ContentVersion }

// Update ticks every live cue and tidies the voice pool. Call it once per
// frame.
func (e *Engine) Update() error {
	if e.disposed {
		return ErrDisposed
	}
	for _, c := range e.categories {
		c.update()
	}
	e.pool.Tidy()
	return nil
}

// GetCategory returns the category called name.
func (e *Engine) GetCategory(name string) (*Category, error) {
	if e.disposed {
		return nil, ErrDisposed
	}
	for _, c := range e.categories {
		if c.name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrCategoryNotFound, name)
}

// Categories returns the categories in file order.
func (e *Engine) Categories() []*Category { return e.categories }

// GetGlobalVariable returns the value of a global variable.
func (e *Engine) GetGlobalVariable(name string) (float64, error) {
	v, err := e.globalVariable(name)
	if err != nil {
		return 0, err
	}
	return v.Value(), nil
}

// SetGlobalVariable sets a global variable, clamped to its bounds.
func (e *Engine) SetGlobalVariable(name string, value float64) error {
	v, err := e.globalVariable(name)
	if err != nil {
		return err
	}
	if v.IsReadOnly {
		return fmt.Errorf("%w: %q", ErrReadOnly, name)
	}
	v.SetValue(value)
	return nil
}

func (e *Engine) globalVariable(name string) (*Variable, error) {
	if e.disposed {
		return nil, ErrDisposed
	}
	if v := findVariable(e.globals, name); v != nil {
		return v, nil
	}
	if findVariable(e.instance, name) != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotGlobal, name)
	}
	return nil, fmt.Errorf("%w: %q", ErrVariableNotFound, name)
}

// RPC returns the curve stored at code.
func (e *Engine) RPC(code uint32) (*RPC, bool) {
	r, ok := e.rpcs[code]
	return r, ok
}

// DSPPreset returns the preset stored at code.
func (e *Engine) DSPPreset(code uint32) (*DSPPreset, bool) {
	p, ok := e.dspPresets[code]
	return p, ok
}

// WaveBank returns a registered wave bank.
func (e *Engine) WaveBank(name string) (*WaveBank, error) {
	if e.disposed {
		return nil, ErrDisposed
	}
	wb, ok := e.waveBanks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrWaveBankNotFound, name)
	}
	return wb, nil
}

func (e *Engine) registerWaveBank(wb *WaveBank) error {
	if e.disposed {
		return ErrDisposed
	}
	if _, ok := e.waveBanks[wb.name]; ok {
		return formatf("wave bank %q already loaded", wb.name)
	}
	e.waveBanks[wb.name] = wb
	return nil
}

func (e *Engine) unregisterWaveBank(wb *WaveBank) {
	if e.waveBanks[wb.name] == wb {
		delete(e.waveBanks, wb.name)
	}
}

func (e *Engine) category(index int) (*Category, error) {
	if index < 0 || index >= len(e.categories) {
		return nil, fmt.Errorf("%w: index %d", ErrCategoryNotFound, index)
	}
	return e.categories[index], nil
}

func (e *Engine) nextSeq() uint64 {
	e.playSeq++
	return e.playSeq
}

func (e *Engine) open(path string) (io.ReadCloser, error) {
	if e.disposed {
		return nil, ErrDisposed
	}
	return e.files.Open(path)
}

// Dispose stops every cue, releases every wave bank and clears all
// tables. The engine cannot be used afterwards.
func (e *Engine) Dispose() {
	if e.disposed {
		return
	}
	for _, c := range e.categories {
		for _, cue := range append([]*Cue(nil), c.cues...) {
			cue.Dispose()
		}
	}
	for _, wb := range e.waveBanks {
		wb.Dispose()
	}
	e.categories = nil
	e.globals = nil
	e.instance = nil
	e.rpcs = nil
	e.dspParams = nil
	e.dspPresets = nil
	e.waveBanks = nil
	e.disposed = true
	log.Println("Audio engine disposed")
}

func (e *Engine) IsDisposed() bool { return e.disposed }
