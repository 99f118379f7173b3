package xact

import (
	"fmt"
)

// Variable is a named, bounded scalar. Global variables live once in the
// engine; instance variables are cloned into every cue.
type Variable struct {
	Name       string
	IsPublic   bool
	IsReadOnly bool
	IsGlobal   bool
	IsReserved bool

	value float64
	min   float64
	max   float64
}

// NewVariable creates a variable holding initial clamped into [min, max].
func NewVariable(name string, public, readOnly, global, reserved bool, initial, min, max float64) *Variable {
	v := &Variable{
		Name:       name,
		IsPublic:   public,
		IsReadOnly: readOnly,
		IsGlobal:   global,
		IsReserved: reserved,
		min:        min,
		max:        max,
	}
	v.SetValue(initial)
	return v
}

// SetValue stores value clamped into the variable's bounds.
func (v *Variable) SetValue(value float64) {
	if value < v.min {
		value = v.min
	} else if value > v.max {
		value = v.max
	}
	v.value = value
}

func (v *Variable) Value() float64 { return v.value }
func (v *Variable) Min() float64   { return v.min }
func (v *Variable) Max() float64   { return v.max }

// Clone returns an independent copy.
func (v *Variable) Clone() *Variable {
	c := *v
	return &c
}

func (v *Variable) String() string {
	return fmt.Sprintf("%s=%g [%g,%g]", v.Name, v.value, v.min, v.max)
}

func findVariable(vars []*Variable, name string) *Variable {
	for _, v := range vars {
		if v.Name == name {
			return v
		}
	}
	return nil
}

func cloneVariables(vars []*Variable) []*Variable {
	out := make([]*Variable, len(vars))
	for i, v := range vars {
		out[i] = v.Clone()
	}
	return out
}
