package xact

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"golang.org/x/time/rate"

	"xact-engine/internal/audio"
)

// CueState is the lifecycle state of a cue.
type CueState int

const (
	CueCreated CueState = iota
	CuePlaying
	CuePaused
	CueStopped
	CueDisposed
)

func (s CueState) String() string {
	switch s {
	case CueCreated:
		return "created"
	case CuePlaying:
		return "playing"
	case CuePaused:
		return "paused"
	case CueStopped:
		return "stopped"
	case CueDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Voice exhaustion can hit every frame; keep the log readable.
var noVoiceLog = rate.NewLimiter(rate.Every(time.Second), 5)

// Cue is one playable instance of a cue. A cue is created by
// SoundBank.GetCue and lives until Dispose; it can be played again after
// it stops.
type Cue struct {
	engine   *Engine
	bank     *SoundBank
	name     string
	data     *CueData
	category *Category

	variables []*Variable
	sound     *Sound
	instances []*waveInstance

	state       CueState
	queued      bool
	autoDispose bool
	// heldByCategory marks a pause made by the category, which its
	// Resume may undo.
	heldByCategory bool

	positional   bool
	listener     Listener
	emitter      Emitter
	pan          float64
	dopplerPitch float64

	playSeq  uint64
	started  time.Time
	pausedAt time.Time
}

func newCue(b *SoundBank, name string, data *CueData) (*Cue, error) {
	cat, err := b.engine.category(int(data.Category))
	if err != nil {
		return nil, fmt.Errorf("cue %q: %w", name, err)
	}
	c := &Cue{
		engine:    b.engine,
		bank:      b,
		name:      name,
		data:      data,
		category:  cat,
		variables: cloneVariables(b.engine.instance),
	}
	cat.add(c)
	return c, nil
}

func (c *Cue) Name() string { return c.name }

// Category returns the category the cue plays in.
func (c *Cue) Category() *Category { return c.category }

func (c *Cue) State() CueState { return c.state }

func (c *Cue) IsPlaying() bool  { return c.state == CuePlaying }
func (c *Cue) IsPaused() bool   { return c.state == CuePaused }
func (c *Cue) IsStopped() bool  { return c.state == CueStopped }
func (c *Cue) IsDisposed() bool { return c.state == CueDisposed }

// IsQueued reports whether the cue waits for an instance slot.
func (c *Cue) IsQueued() bool { return c.queued }

// Sound returns the sound chosen by the last Play, or nil.
func (c *Cue) Sound() *Sound { return c.sound }

// WaveSounds returns the decoded sound behind every live voice.
func (c *Cue) WaveSounds() []*audio.Sound {
	out := make([]*audio.Sound, 0, len(c.instances))
	for _, w := range c.instances {
		out = append(out, w.sound)
	}
	return out
}

// Play picks a sound and starts its voices. When the instance limit is
// reached the cue fails, queues or replaces another cue depending on the
// authored behavior. Running out of voices is not an error: the cue just
// does not play.
func (c *Cue) Play() error {
	switch {
	case c.state == CueDisposed:
		return ErrDisposed
	case c.state == CuePlaying, c.state == CuePaused, c.queued:
		return fmt.Errorf("%w: %s", ErrAlreadyPlaying, c.name)
	}

	admitted, err := c.admit()
	if err != nil {
		return err
	}
	if !admitted {
		c.queued = true
		c.state = CueCreated
		c.category.pending = append(c.category.pending, c)
		return nil
	}
	return c.start()
}

// admit makes room for the cue under its own limit and then under its
// category's. It reports false when the cue has to queue.
func (c *Cue) admit() (bool, error) {
	ok, err := c.makeRoom(c.data.InstanceLimit, c.data.MaxBehavior, c.siblings)
	if !ok || err != nil {
		return ok, err
	}
	return c.makeRoom(c.category.maxInstances, c.category.maxBehavior, c.category.active)
}

func (c *Cue) makeRoom(limit uint8, behavior MaxInstanceBehavior, active func() []*Cue) (bool, error) {
	if limit == unlimitedInstance {
		return true, nil
	}
	for {
		cues := active()
		if len(cues) < int(limit) {
			return true, nil
		}
		switch behavior {
		case BehaviorQueue:
			return false, nil
		case BehaviorReplaceOldest, BehaviorReplaceQuietest, BehaviorReplaceLowestPriority:
			if victim := pickVictim(cues, behavior); victim != nil {
				victim.Stop()
				continue
			}
		}
		return false, fmt.Errorf("%w: %s (limit %d)", ErrInstanceLimit, c.name, limit)
	}
}

func pickVictim(cues []*Cue, behavior MaxInstanceBehavior) *Cue {
	var victim *Cue
	for _, cue := range cues {
		if victim == nil {
			victim = cue
			continue
		}
		switch behavior {
		case BehaviorReplaceOldest:
			if cue.playSeq < victim.playSeq {
				victim = cue
			}
		case BehaviorReplaceQuietest:
			v, w := cue.currentVolume(), victim.currentVolume()
			if v < w || (v == w && cue.playSeq < victim.playSeq) {
				victim = cue
			}
		case BehaviorReplaceLowestPriority:
			// Larger priority bytes are less important.
			p, q := cue.priority(), victim.priority()
			if p > q || (p == q && cue.playSeq < victim.playSeq) {
				victim = cue
			}
		}
	}
	return victim
}

// siblings returns live cues of the same name from the same bank.
func (c *Cue) siblings() []*Cue {
	var out []*Cue
	for _, cue := range c.category.active() {
		if cue.bank == c.bank && cue.name == c.name {
			out = append(out, cue)
		}
	}
	return out
}

// hasRoom reports whether a queued cue could start now.
func (c *Cue) hasRoom() bool {
	if lim := c.data.InstanceLimit; lim != unlimitedInstance && len(c.siblings()) >= int(lim) {
		return false
	}
	if lim := c.category.maxInstances; lim != unlimitedInstance && len(c.category.active()) >= int(lim) {
		return false
	}
	return true
}

func (c *Cue) start() error {
	if c.bank.disposed {
		return ErrDisposed
	}
	c.sound = c.data.Sounds[chooseWeighted(c.engine.rng, c.data.Weights)]
	c.playSeq = c.engine.nextSeq()
	c.started = c.engine.now()

	if err := c.generateInstances(); err != nil {
		c.releaseInstances()
		c.state = CueStopped
		return err
	}
	if len(c.instances) == 0 {
		c.state = CueStopped
		return nil
	}
	c.state = CuePlaying
	if c.category.effectivelyPaused() {
		c.holdForCategory()
	}
	return nil
}

// generateInstances expands every PlayWave event of the chosen sound into
// one voice. Events due later are acquired now and started by update.
func (c *Cue) generateInstances() error {
	rng := c.engine.rng
	params := c.rpcParams()
	for _, clip := range c.sound.Clips {
		for _, ev := range clip.Events {
			switch ev := ev.(type) {
			case *PlayWaveEvent:
				if len(ev.Tracks) == 0 {
					continue
				}
				i := chooseWeighted(rng, ev.Weights)
				snd, err := c.bank.resolveTrack(ev.WaveBanks[i], ev.Tracks[i])
				if err != nil {
					return fmt.Errorf("cue %q: %w", c.name, err)
				}

				voice, err := c.engine.pool.Acquire(snd)
				if errors.Is(err, audio.ErrNoVoices) {
					if noVoiceLog.Allow() {
						log.Printf("Warning: no free voice for cue %s, skipping remaining events", c.name)
					}
					return nil
				}
				if err != nil {
					return fmt.Errorf("cue %q: %w", c.name, err)
				}
				voice.SetLoopCount(ev.Loops())

				w := &waveInstance{
					voice:      voice,
					sound:      snd,
					baseVolume: c.sound.Volume * clip.Volume,
					basePitch:  c.sound.Pitch,
					delay:      time.Duration(ev.Time) * time.Millisecond,
				}
				if ev.HasVolumeVariation {
					w.baseVolume *= uniform(rng, ev.MinVolume, ev.MaxVolume)
				}
				if ev.MinPitch != ev.MaxPitch {
					w.basePitch += uniform(rng, ev.MinPitch, ev.MaxPitch)
				} else {
					w.basePitch += ev.MinPitch
				}
				c.instances = append(c.instances, w)

				if w.delay == 0 {
					if err := c.startInstance(w, params); err != nil {
						return err
					}
				}
			default:
				return notImplementedf("event %T", ev)
			}
		}
	}
	return nil
}

func (c *Cue) startInstance(w *waveInstance, p rpcParams) error {
	w.apply(p, c.category.EffectiveVolume(), c.dopplerPitch, c.pan)
	if err := w.voice.Play(); err != nil {
		return fmt.Errorf("cue %q: %w", c.name, err)
	}
	w.started = true
	return nil
}

func (c *Cue) releaseInstances() {
	for _, w := range c.instances {
		c.engine.pool.Release(w.voice)
	}
	c.instances = nil
}

// rpcParams evaluates every curve attached to the active sound.
func (c *Cue) rpcParams() rpcParams {
	p := rpcParams{gain: 1}
	if c.sound == nil {
		return p
	}
	for _, code := range c.sound.RPCCodes {
		rpc, ok := c.engine.RPC(code)
		if !ok {
			continue
		}
		x, ok := c.variableValue(rpc.Variable)
		if !ok {
			continue
		}
		r := rpc.Evaluate(x)
		switch rpc.Parameter {
		case ParamVolume:
			p.gain *= rpcGain(r)
		case ParamPitch:
			p.pitch += r / 1000
		case ParamFilterFrequency:
			// A cutoff at or below zero leaves the filter off; the
			// voice clamps the top end below Nyquist.
			p.filter = r > 0
			p.cutoff = max(r, 0)
		case ParamFilterQFactor:
			p.q = r
		}
	}
	return p
}

// variableValue looks name up among the cue's instance variables first
// and among the engine's globals second.
func (c *Cue) variableValue(name string) (float64, bool) {
	if v := findVariable(c.variables, name); v != nil {
		return v.Value(), true
	}
	if v := findVariable(c.engine.globals, name); v != nil {
		return v.Value(), true
	}
	return 0, false
}

// refresh pushes volume, pitch, pan and filter to every started voice.
func (c *Cue) refresh() {
	p := c.rpcParams()
	vol := c.category.EffectiveVolume()
	for _, w := range c.instances {
		if w.started {
			w.apply(p, vol, c.dopplerPitch, c.pan)
		}
	}
}

func (c *Cue) update() {
	switch c.state {
	case CuePlaying:
	case CueStopped:
		if c.autoDispose {
			c.Dispose()
		}
		return
	default:
		return
	}

	elapsed := c.engine.now().Sub(c.started)
	params := c.rpcParams()
	live := c.instances[:0]
	for _, w := range c.instances {
		if !w.started {
			if elapsed >= w.delay {
				if err := c.startInstance(w, params); err != nil {
					log.Printf("Delayed event of cue %s failed: %v", c.name, err)
					c.engine.pool.Release(w.voice)
					continue
				}
			}
			live = append(live, w)
			continue
		}
		if w.voice.State() == audio.Stopped {
			c.engine.pool.Release(w.voice)
			continue
		}
		live = append(live, w)
	}
	clear(c.instances[len(live):])
	c.instances = live

	if len(c.instances) == 0 {
		c.state = CueStopped
		if c.autoDispose {
			c.Dispose()
		}
		return
	}
	if c.positional {
		c.apply3D()
	}
	c.refresh()
}

// Pause pauses every started voice and holds back delayed ones.
func (c *Cue) Pause() {
	c.heldByCategory = false
	c.pause()
}

func (c *Cue) Resume() {
	c.heldByCategory = false
	c.resume()
}

// holdForCategory pauses a playing cue on behalf of its category.
func (c *Cue) holdForCategory() {
	if c.state == CuePlaying {
		c.pause()
		c.heldByCategory = true
	}
}

// releaseForCategory undoes holdForCategory once no enclosing category is
// paused. Cues paused directly stay paused.
func (c *Cue) releaseForCategory() {
	if !c.heldByCategory || c.category.effectivelyPaused() {
		return
	}
	c.heldByCategory = false
	c.resume()
}

func (c *Cue) pause() {
	if c.state != CuePlaying {
		return
	}
	for _, w := range c.instances {
		if w.started {
			w.voice.Pause()
		}
	}
	c.pausedAt = c.engine.now()
	c.state = CuePaused
}

func (c *Cue) resume() {
	if c.state != CuePaused {
		return
	}
	c.started = c.started.Add(c.engine.now().Sub(c.pausedAt))
	for _, w := range c.instances {
		if w.started {
			w.voice.Resume()
		}
	}
	c.state = CuePlaying
}

// Stop stops every voice immediately and takes the cue out of its
// category's queue.
func (c *Cue) Stop() {
	if c.queued {
		c.queued = false
		c.category.pending = removeCue(c.category.pending, c)
		c.state = CueStopped
	}
	if c.state != CuePlaying && c.state != CuePaused {
		return
	}
	c.releaseInstances()
	c.state = CueStopped
	c.heldByCategory = false
}

// Dispose stops the cue and detaches it from its category. Any later call
// returns ErrDisposed.
func (c *Cue) Dispose() {
	if c.state == CueDisposed {
		return
	}
	c.Stop()
	c.category.remove(c)
	c.variables = nil
	c.sound = nil
	c.state = CueDisposed
}

// GetVariable returns the value of an instance variable.
func (c *Cue) GetVariable(name string) (float64, error) {
	v, err := c.instanceVariable(name)
	if err != nil {
		return 0, err
	}
	return v.Value(), nil
}

// SetVariable sets an instance variable, clamped to its bounds. Curves
// driven by it apply on the next Update.
func (c *Cue) SetVariable(name string, value float64) error {
	v, err := c.instanceVariable(name)
	if err != nil {
		return err
	}
	if v.IsReadOnly {
		return fmt.Errorf("%w: %q", ErrReadOnly, name)
	}
	v.SetValue(value)
	return nil
}

func (c *Cue) instanceVariable(name string) (*Variable, error) {
	if c.state == CueDisposed {
		return nil, ErrDisposed
	}
	if v := findVariable(c.variables, name); v != nil {
		return v, nil
	}
	if findVariable(c.engine.globals, name) != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotInstance, name)
	}
	return nil, fmt.Errorf("%w: %q", ErrVariableNotFound, name)
}

// Apply3D positions the cue. The reserved Distance, OrientationAngle and
// DopplerPitchScalar variables are updated when the cue has them, and the
// placement is reapplied every Update until the next call.
func (c *Cue) Apply3D(listener Listener, emitter Emitter) error {
	if c.state == CueDisposed {
		return ErrDisposed
	}
	c.listener, c.emitter = listener, emitter
	c.positional = true
	c.apply3D()
	if c.state == CuePlaying || c.state == CuePaused {
		c.refresh()
	}
	return nil
}

func (c *Cue) apply3D() {
	p := compute3D(c.listener, c.emitter)
	if v := findVariable(c.variables, varDistance); v != nil {
		v.SetValue(p.distance)
	}
	if v := findVariable(c.variables, varOrientationAngle); v != nil {
		v.SetValue(p.angle)
	}
	if v := findVariable(c.variables, varDopplerPitch); v != nil {
		v.SetValue(p.doppler)
	}
	c.pan = p.pan
	c.dopplerPitch = math.Log2(p.doppler)
}

func (c *Cue) currentVolume() float64 {
	var v float64
	for _, w := range c.instances {
		v = math.Max(v, w.volume())
	}
	return v
}

func (c *Cue) priority() uint8 {
	if c.sound == nil {
		return 0
	}
	return c.sound.Priority
}
