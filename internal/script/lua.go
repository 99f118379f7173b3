package script

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// LoadLua runs a Lua file whose calls build the timeline:
//
//	play(t, bank, cue)          stop(t, bank, cue)
//	set_global(t, name, value)  set_var(t, bank, cue, name, value)
//	music(t, stream)            stop_music(t)
//
// t is in seconds from Start.
func (e *Engine) LoadLua(path string) error {
	l := e.newLuaState()
	defer l.Close()
	if err := l.DoFile(path); err != nil {
		return fmt.Errorf("failed to run script %s: %w", path, err)
	}
	return nil
}

// LoadLuaString is LoadLua for source held in memory.
func (e *Engine) LoadLuaString(src string) error {
	l := e.newLuaState()
	defer l.Close()
	if err := l.DoString(src); err != nil {
		return fmt.Errorf("failed to run script: %w", err)
	}
	return nil
}

func (e *Engine) newLuaState() *lua.LState {
	l := lua.NewState()
	luaRegister(l, "play", func(l *lua.LState) int {
		e.AddEvent(Event{Type: EventPlayCue, At: timeArg(l, 1), Bank: strArg(l, 2), Cue: strArg(l, 3)})
		return 0
	})
	luaRegister(l, "stop", func(l *lua.LState) int {
		e.AddEvent(Event{Type: EventStopCue, At: timeArg(l, 1), Bank: strArg(l, 2), Cue: strArg(l, 3)})
		return 0
	})
	luaRegister(l, "set_global", func(l *lua.LState) int {
		e.AddEvent(Event{Type: EventSetGlobal, At: timeArg(l, 1), Name: strArg(l, 2), Value: numArg(l, 3)})
		return 0
	})
	luaRegister(l, "set_var", func(l *lua.LState) int {
		e.AddEvent(Event{
			Type:  EventSetCueVariable,
			At:    timeArg(l, 1),
			Bank:  strArg(l, 2),
			Cue:   strArg(l, 3),
			Name:  strArg(l, 4),
			Value: numArg(l, 5),
		})
		return 0
	})
	luaRegister(l, "music", func(l *lua.LState) int {
		e.AddEvent(Event{Type: EventPlayMusic, At: timeArg(l, 1), Name: strArg(l, 2)})
		return 0
	})
	luaRegister(l, "stop_music", func(l *lua.LState) int {
		e.AddEvent(Event{Type: EventStopMusic, At: timeArg(l, 1)})
		return 0
	})
	return l
}

func luaRegister(l *lua.LState, name string, f func(*lua.LState) int) {
	l.Register(name, f)
}

func strArg(l *lua.LState, argi int) string {
	if !lua.LVCanConvToString(l.Get(argi)) {
		l.RaiseError("argument %v is not a string: %v", argi, l.Get(argi))
	}
	return l.ToString(argi)
}

func numArg(l *lua.LState, argi int) float64 {
	num, ok := l.Get(argi).(lua.LNumber)
	if !ok {
		l.RaiseError("argument %v is not a number: %v", argi, l.Get(argi))
	}
	return float64(num)
}

func timeArg(l *lua.LState, argi int) time.Duration {
	s := numArg(l, argi)
	if s < 0 {
		l.RaiseError("negative time %v", s)
	}
	return time.Duration(s * float64(time.Second))
}
