package script

import (
	"fmt"
	"log"
	"sort"
	"time"
)

// Event types
const (
	EventPlayCue = iota
	EventStopCue
	EventSetGlobal
	EventSetCueVariable
	EventPlayMusic
	EventStopMusic
)

// Event states
const (
	EventWait = iota
	EventEnd
)

var eventNames = [...]string{
	EventPlayCue:        "play",
	EventStopCue:        "stop",
	EventSetGlobal:      "set_global",
	EventSetCueVariable: "set_var",
	EventPlayMusic:      "music",
	EventStopMusic:      "stop_music",
}

// Event is one timed action on the audio runtime.
type Event struct {
	Type  int
	State int
	// At is the offset from Start.
	At    time.Duration
	Bank  string
	Cue   string
	Name  string
	Value float64
}

func (e *Event) String() string {
	name := "unknown"
	if e.Type >= 0 && e.Type < len(eventNames) {
		name = eventNames[e.Type]
	}
	return fmt.Sprintf("%s@%v", name, e.At)
}

// Target carries out script events.
type Target interface {
	PlayCue(bank, cue string) error
	StopCue(bank, cue string) error
	SetGlobal(name string, value float64) error
	SetCueVariable(bank, cue, name string, value float64) error
	PlayMusic(name string) error
	StopMusic() error
}

// Engine fires events in time order against a Target.
type Engine struct {
	target    Target
	events    []*Event
	running   bool
	startTime time.Time
}

// NewEngine creates a new script engine
func NewEngine(target Target) *Engine {
	return &Engine{target: target}
}

// Start starts the timeline at now.
func (e *Engine) Start(now time.Time) {
	e.running = true
	e.startTime = now
	log.Printf("Script started with %d events", len(e.events))
}

// Stop stops the script engine
func (e *Engine) Stop() {
	e.running = false
	log.Println("Script stopped")
}

// AddEvent inserts ev, keeping events ordered by time. Events at the same
// time fire in the order they were added.
func (e *Engine) AddEvent(ev Event) {
	ev.State = EventWait
	i := sort.Search(len(e.events), func(i int) bool { return e.events[i].At > ev.At })
	e.events = append(e.events, nil)
	copy(e.events[i+1:], e.events[i:])
	e.events[i] = &ev
}

// Update fires every event that is due at now. The first failing event
// stops the pass; it is not retried.
func (e *Engine) Update(now time.Time) error {
	if !e.running {
		return nil
	}
	elapsed := now.Sub(e.startTime)

	for _, ev := range e.events {
		if ev.State == EventEnd {
			continue
		}
		if ev.At > elapsed {
			break
		}
		ev.State = EventEnd
		if err := e.fire(ev); err != nil {
			return fmt.Errorf("script event %s: %w", ev, err)
		}
	}
	return nil
}

func (e *Engine) fire(ev *Event) error {
	switch ev.Type {
	case EventPlayCue:
		return e.target.PlayCue(ev.Bank, ev.Cue)
	case EventStopCue:
		return e.target.StopCue(ev.Bank, ev.Cue)
	case EventSetGlobal:
		return e.target.SetGlobal(ev.Name, ev.Value)
	case EventSetCueVariable:
		return e.target.SetCueVariable(ev.Bank, ev.Cue, ev.Name, ev.Value)
	case EventPlayMusic:
		return e.target.PlayMusic(ev.Name)
	case EventStopMusic:
		return e.target.StopMusic()
	}
	return fmt.Errorf("unknown event type %d", ev.Type)
}

// Finished reports whether every event has fired.
func (e *Engine) Finished() bool {
	for _, ev := range e.events {
		if ev.State != EventEnd {
			return false
		}
	}
	return true
}

// Clear removes all events
func (e *Engine) Clear() {
	e.events = e.events[:0]
}

// GetEvents returns the timeline in firing order.
func (e *Engine) GetEvents() []*Event {
	return e.events
}

// IsRunning returns whether the engine is running
func (e *Engine) IsRunning() bool {
	return e.running
}
