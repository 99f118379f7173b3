package xact

import (
	"log"
	"slices"
	"time"
)

// MaxInstanceBehavior decides what happens when a cue would exceed its
// instance limit.
type MaxInstanceBehavior uint8

const (
	BehaviorFail MaxInstanceBehavior = iota
	BehaviorQueue
	BehaviorReplaceOldest
	BehaviorReplaceQuietest
	BehaviorReplaceLowestPriority
)

func (b MaxInstanceBehavior) String() string {
	switch b {
	case BehaviorFail:
		return "fail"
	case BehaviorQueue:
		return "queue"
	case BehaviorReplaceOldest:
		return "replace-oldest"
	case BehaviorReplaceQuietest:
		return "replace-quietest"
	case BehaviorReplaceLowestPriority:
		return "replace-lowest-priority"
	default:
		return "unknown"
	}
}

// Category groups cues for shared volume, pause and stop control.
type Category struct {
	engine *Engine
	index  int
	parent int

	name            string
	baseVolume      float64
	volume          float64
	backgroundMusic bool
	public          bool

	maxInstances uint8
	maxBehavior  MaxInstanceBehavior
	fadeIn       time.Duration
	fadeOut      time.Duration
	fadeType     uint8

	cues    []*Cue
	pending []*Cue
	paused  bool
}

func newCategory(e *Engine, index int, s CategorySettings) *Category {
	return &Category{
		engine:          e,
		index:           index,
		parent:          s.Parent,
		name:            s.Name,
		baseVolume:      s.Volume,
		volume:          s.Volume,
		backgroundMusic: s.BackgroundMusic,
		public:          s.Public,
		maxInstances:    s.MaxInstances,
		maxBehavior:     s.MaxBehavior,
		fadeIn:          time.Duration(s.FadeInMS) * time.Millisecond,
		fadeOut:         time.Duration(s.FadeOutMS) * time.Millisecond,
		fadeType:        s.FadeType,
	}
}

func (c *Category) Name() string { return c.name }

// Volume returns the category's own volume.
func (c *Category) Volume() float64 { return c.volume }

// BaseVolume returns the authored volume.
func (c *Category) BaseVolume() float64 { return c.baseVolume }

// SetVolume sets the category volume. Live cues pick it up on the next
// Update.
func (c *Category) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	c.volume = volume
}

// EffectiveVolume multiplies the volumes of the category and its parents.
func (c *Category) EffectiveVolume() float64 {
	v := c.volume
	for p := c.Parent(); p != nil; p = p.Parent() {
		v *= p.volume
	}
	return v
}

// Parent returns the parent category or nil for a root.
func (c *Category) Parent() *Category {
	if c.parent < 0 || c.engine == nil || c.parent >= len(c.engine.categories) {
		return nil
	}
	return c.engine.categories[c.parent]
}

func (c *Category) IsBackgroundMusic() bool { return c.backgroundMusic }
func (c *Category) IsPublic() bool          { return c.public }
func (c *Category) IsPaused() bool          { return c.paused }

// MaxInstances returns the instance limit; 255 means unlimited.
func (c *Category) MaxInstances() int                { return int(c.maxInstances) }
func (c *Category) MaxBehavior() MaxInstanceBehavior { return c.maxBehavior }

// Pause pauses every playing cue in the category and its children.
func (c *Category) Pause() {
	c.paused = true
	for _, cat := range c.subtree() {
		for _, cue := range cat.cues {
			cue.holdForCategory()
		}
	}
}

// Resume resumes the cues a category Pause held, unless a parent category
// is still paused. Cues paused on their own stay paused.
func (c *Category) Resume() {
	c.paused = false
	for _, cat := range c.subtree() {
		for _, cue := range cat.cues {
			cue.releaseForCategory()
		}
	}
}

// Stop stops every cue in the category and its children, including queued
// ones.
func (c *Category) Stop() {
	for _, cat := range c.subtree() {
		for _, cue := range slices.Clone(cat.cues) {
			cue.Stop()
		}
		cat.pending = nil
	}
}

func (c *Category) subtree() []*Category {
	out := []*Category{c}
	if c.engine == nil {
		return out
	}
	for _, other := range c.engine.categories {
		if other == c {
			continue
		}
		for p := other.Parent(); p != nil; p = p.Parent() {
			if p == c {
				out = append(out, other)
				break
			}
		}
	}
	return out
}

// Paused categories apply to parents too.
func (c *Category) effectivelyPaused() bool {
	for p := c; p != nil; p = p.Parent() {
		if p.paused {
			return true
		}
	}
	return false
}

func (c *Category) add(cue *Cue) {
	c.cues = append(c.cues, cue)
}

func (c *Category) remove(cue *Cue) {
	c.cues = removeCue(c.cues, cue)
	c.pending = removeCue(c.pending, cue)
}

func removeCue(cues []*Cue, cue *Cue) []*Cue {
	return slices.DeleteFunc(cues, func(x *Cue) bool { return x == cue })
}

// active returns the cues counting toward the category limit.
func (c *Category) active() []*Cue {
	var out []*Cue
	for _, cue := range c.cues {
		if cue.state == CuePlaying || cue.state == CuePaused {
			out = append(out, cue)
		}
	}
	return out
}

func (c *Category) update() {
	for len(c.pending) > 0 {
		cue := c.pending[0]
		if !cue.hasRoom() {
			break
		}
		c.pending = c.pending[1:]
		cue.queued = false
		if err := cue.start(); err != nil {
			log.Printf("Queued cue %s failed to start: %v", cue.name, err)
		}
	}

	for _, cue := range slices.Clone(c.cues) {
		cue.update()
	}
}
